// =============================================================================
// CSV to OFX Converter - Transaction Errors
// =============================================================================
//
// Errors returned while building a Record from a raw row. All of them are
// returned to the caller immediately; nothing in this package retries or
// skips a bad row.
//
//   - MalformedDateError   : the date cell does not match the configured format
//   - MalformedAmountError : the amount cell is not a decimal after substitutions
//   - MissingFieldError    : a required mapping/constant key, or the mapped
//                            column itself, is missing
//
// Use errors.As to inspect them.
//
// =============================================================================

package transaction

import "fmt"

// MalformedDateError is returned when the raw date cannot be parsed.
type MalformedDateError struct {
	// Value is the trimmed raw date string.
	Value string

	// Format is the configured date_fmt, or empty for the ISO default.
	Format string

	// Err is the underlying parse error.
	Err error
}

func (e *MalformedDateError) Error() string {
	format := e.Format
	if format == "" {
		format = "YYYY-MM-DD"
	}
	return fmt.Sprintf("malformed date %q (format %q): %v", e.Value, format, e.Err)
}

func (e *MalformedDateError) Unwrap() error { return e.Err }

// MalformedAmountError is returned when the raw amount cannot be parsed as
// an exact decimal.
type MalformedAmountError struct {
	// Value is the trimmed raw amount string.
	Value string

	// Normalized is Value after the amount_replace substitutions.
	Normalized string

	// Err is the underlying parse error.
	Err error
}

func (e *MalformedAmountError) Error() string {
	return fmt.Sprintf("malformed amount %q (normalized %q): %v", e.Value, e.Normalized, e.Err)
}

func (e *MalformedAmountError) Unwrap() error { return e.Err }

// Sources reported by MissingFieldError.
const (
	SourceColumns = "columns"
	SourceAccount = "account"
	SourceRow     = "row"
)

// MissingFieldError is returned when a required key is absent.
//
// Source tells where it was expected:
//   - "columns": a required ColumnMap entry (date, amount) is empty
//   - "account": a required AccountConstants entry (bankid, acctid) is empty
//   - "row":     the row has no cell for a mapped required column
type MissingFieldError struct {
	Source string
	Field  string
}

func (e *MissingFieldError) Error() string {
	if e.Source == SourceRow {
		return fmt.Sprintf("row has no column %q", e.Field)
	}
	return fmt.Sprintf("missing required %s field %q", e.Source, e.Field)
}
