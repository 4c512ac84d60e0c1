// =============================================================================
// CSV to OFX Converter - Validation Engine
// =============================================================================
//
// This module checks the main configuration and the bank profiles before
// any file is converted, so that a broken profile is reported once with
// every problem listed instead of failing on the first row.
//
// VALIDATION STRATEGY:
//   Struct tags on the config types declare the rules; go-playground's
//   validator applies them. Two domain rules are registered on top:
//   - accttype : OFX account types (CHECKING, SAVINGS, ...)
//   - datefmt  : date_fmt directives the transaction package understands
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each error names the profile, the YAML field path and the rule
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/go-playground/validator/v10"
)

// AccountTypes are the ACCTTYPE values accepted in a profile.
var AccountTypes = []string{"CHECKING", "SAVINGS", "MONEYMRKT", "CREDITLINE", "CD"}

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Profile is the profile code, or "config" for the main configuration.
	Profile string

	// Field is the YAML path of the offending field, e.g. "account.bankid".
	Field string

	// Rule is the validation rule that was violated.
	Rule string

	// Value is the actual value that failed validation.
	Value string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s (value: '%s')", e.Profile, e.Field, e.Message, e.Value)
}

// ValidationErrors is a list of validation errors.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	messages := make([]string, len(e))
	for i, ve := range e {
		messages[i] = ve.Error()
	}
	return strings.Join(messages, "; ")
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator validates configuration structures.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the domain rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report YAML names instead of Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("accttype", validateAcctType)
	_ = v.RegisterValidation("datefmt", validateDateFormat)

	return &Validator{validate: v}
}

// ValidateMainConfig validates the main configuration.
func (v *Validator) ValidateMainConfig(cfg *config.MainConfig) error {
	return v.check("config", cfg)
}

// ValidateProfile validates one bank profile.
func (v *Validator) ValidateProfile(profile *config.Profile) error {
	return v.check(profile.ProfileCode, profile)
}

// ValidateProfiles validates every profile and returns all errors, ordered
// by profile code.
func (v *Validator) ValidateProfiles(profiles map[string]*config.Profile) error {
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var all ValidationErrors
	for _, code := range codes {
		err := v.ValidateProfile(profiles[code])
		var errs ValidationErrors
		if errors.As(err, &errs) {
			all = append(all, errs...)
		} else if err != nil {
			return err
		}
	}

	if len(all) == 0 {
		return nil
	}
	return all
}

// check runs the struct validation and converts the result.
func (v *Validator) check(owner string, s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("failed to validate %s: %w", owner, err)
	}

	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, &ValidationError{
			Profile: owner,
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: message(fe),
		})
	}
	return result
}

// =============================================================================
// RULES
// =============================================================================

func validateAcctType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, t := range AccountTypes {
		if value == t {
			return true
		}
	}
	return false
}

func validateDateFormat(fl validator.FieldLevel) bool {
	return transaction.ValidateDateFormat(fl.Field().String()) == nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// fieldPath drops the root struct name from a namespace:
// "Profile.account.bankid" -> "account.bankid".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// message renders a short explanation for a failed rule.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "uppercase":
		return "must be uppercase"
	case "gte":
		return "must be at least " + fe.Param()
	case "accttype":
		return "must be one of: " + strings.Join(AccountTypes, " ")
	case "datefmt":
		return "is not a supported date format"
	default:
		return "failed rule " + fe.Tag()
	}
}
