// =============================================================================
// CSV to OFX Converter - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   csv2ofx validate
//
// Loads the main configuration and every bank profile and reports all
// validation errors at once. Nothing is converted.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/validation"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and bank profiles",
	Long: `Validate the main configuration file and every profile in the profiles
directory: required columns and account constants, account types, currency
codes, date formats and amount replacement pairs.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		mainConfig, log, err := loadMainConfig()
		if err != nil {
			return err
		}

		v := validation.New()
		var problems validation.ValidationErrors

		if err := collect(&problems, v.ValidateMainConfig(mainConfig)); err != nil {
			return err
		}

		profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		if err := collect(&problems, v.ValidateProfiles(profiles)); err != nil {
			return err
		}

		codes := make([]string, 0, len(profiles))
		for code := range profiles {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			log.Debug().
				Str("profile", code).
				Str("bank", profiles[code].DisplayName()).
				Str("path", profiles[code].Path()).
				Msg("checked profile")
		}

		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(out, "  ✗ %s\n", p.Error())
			}
			return fmt.Errorf("%d validation error(s)", len(problems))
		}

		fmt.Fprintf(out, "Configuration OK: %d profile(s) in %s\n", len(profiles), mainConfig.ProfilesDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// collect appends validation errors to problems and returns any other error.
func collect(problems *validation.ValidationErrors, err error) error {
	var errs validation.ValidationErrors
	if errors.As(err, &errs) {
		*problems = append(*problems, errs...)
		return nil
	}
	return err
}
