// =============================================================================
// CSV to OFX Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the main command of the tool.
//
// COMMAND USAGE:
//   csv2ofx convert [flags]
//
// FLAGS:
//   --file      : Convert only this file (otherwise every file in input_dir)
//   --profile   : Use this profile instead of matching by file name
//   --dry-run   : Build the documents but write and archive nothing
//   --stdout    : Print the document instead of writing a file (needs --file)
//
// BATCH PIPELINE (no --file):
//   1. Load the main configuration and the bank profiles
//   2. Discover files in the input directory
//   3. Match each file to a profile; unmatched files are skipped
//   4. Validate the profiles in use
//   5. Convert every file concurrently
//   6. Write the error log and the processing summary
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/converter"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/validation"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// filePath is a single file to convert.
	filePath string

	// profileCode forces a profile.
	profileCode string

	// dryRun builds documents without writing anything.
	dryRun bool

	// toStdout prints the document instead of writing a file.
	toStdout bool
)

// errConversionFailed is returned when at least one file of a batch failed.
var errConversionFailed = errors.New("conversion failed")

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert statement exports to OFX",
	Long: `The convert command turns statement exports into OFX documents.

With --file, only that file is converted. Otherwise every file in the input
directory is matched to a bank profile by its file_matching_patterns and
converted; files no profile matches are skipped.

Files are converted concurrently. An error in one file does not affect the
others. On success the OFX document is placed in the output directory and,
with archive_on_success, the export is moved to the input archive. Failed
files stay where they are and are listed in an error log.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if toStdout && filePath == "" {
			return fmt.Errorf("--stdout requires --file")
		}

		mainConfig, log, err := loadMainConfig()
		if err != nil {
			return err
		}

		v := validation.New()
		if err := v.ValidateMainConfig(mainConfig); err != nil {
			return fmt.Errorf("invalid main config: %w", err)
		}

		profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		log.Debug().Int("profiles", len(profiles)).Msg("loaded profiles")

		if filePath != "" {
			return runSingle(cmd.OutOrStdout(), mainConfig, profiles, v, log)
		}
		return runBatch(cmd.OutOrStdout(), mainConfig, profiles, v, log)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&filePath, "file", "f", "", "Convert only this file")
	convertCmd.Flags().StringVarP(&profileCode, "profile", "p", "", "Profile code to use instead of matching by file name")
	convertCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build the documents without writing or archiving anything")
	convertCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the OFX document instead of writing a file (requires --file)")
}

// =============================================================================
// SINGLE FILE
// =============================================================================

func runSingle(out io.Writer, mainConfig *config.MainConfig, profiles map[string]*config.Profile, v *validation.Validator, log zerolog.Logger) error {
	profile, err := config.FindProfile(profiles, profileCode, filePath)
	if err != nil {
		return err
	}
	if err := v.ValidateProfile(profile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	var opts []converter.Option
	switch {
	case dryRun:
		opts = append(opts, converter.WithDryRun())
	case toStdout:
		opts = append(opts, converter.WithOutput(out))
	default:
		if err := mainConfig.EnsureDirectories(); err != nil {
			return err
		}
	}

	result := converter.New(filePath, profile, mainConfig, log, opts...).Run()
	if result.Error != nil {
		return result.Error
	}

	if result.OutputFile != "" {
		fmt.Fprintf(out, "%s -> %s\n", filepath.Base(result.FilePath), result.OutputFile)
	}
	return nil
}

// =============================================================================
// BATCH
// =============================================================================

func runBatch(out io.Writer, mainConfig *config.MainConfig, profiles map[string]*config.Profile, v *validation.Validator, log zerolog.Logger) error {
	startTime := time.Now()

	files := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir, mainConfig.ArchiveOnSuccess)
	inputFiles, err := files.DiscoverInputFiles()
	if err != nil {
		return err
	}

	jobs, skipped, err := converter.Plan(inputFiles, profiles, profileCode)
	if err != nil {
		return err
	}
	for _, file := range skipped {
		log.Warn().Str("file", file).Msg("no matching profile, skipped")
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No files to convert in the input directory.")
		return nil
	}

	used := make(map[string]*config.Profile)
	for _, job := range jobs {
		used[job.Profile.ProfileCode] = job.Profile
	}
	if err := v.ValidateProfiles(used); err != nil {
		return fmt.Errorf("invalid profiles: %w", err)
	}

	var opts []converter.Option
	if dryRun {
		opts = append(opts, converter.WithDryRun())
	} else if err := mainConfig.EnsureDirectories(); err != nil {
		return err
	}

	log.Info().Int("files", len(jobs)).Msg("converting")
	results := converter.RunAll(jobs, mainConfig, log, opts...)

	for _, r := range results {
		if r.Success {
			fmt.Fprintf(out, "  ✓ %s -> %s\n", filepath.Base(r.FilePath), r.OutputFile)
		} else {
			fmt.Fprintf(out, "  ✗ %s: %v\n", filepath.Base(r.FilePath), r.Error)
		}
	}

	summary := converter.Summarize(results, skipped, startTime, time.Now())

	fmt.Fprintln(out, "\n=== Conversion Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Skipped:         %d\n", summary.SkippedFiles)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	if dryRun {
		return batchError(summary)
	}

	if logPath, err := utils.WriteErrorLog(converter.ErrorEntries(results, time.Now()), mainConfig.OutputDir); err != nil {
		log.Warn().Err(err).Msg("failed to write error log")
	} else if logPath != "" {
		fmt.Fprintf(out, "Error log:       %s\n", logPath)
	}

	if _, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir); err != nil {
		log.Warn().Err(err).Msg("failed to write summary")
	}

	return batchError(summary)
}

func batchError(summary utils.ProcessingSummary) error {
	if summary.FailedFiles > 0 {
		return fmt.Errorf("%w: %d of %d files", errConversionFailed, summary.FailedFiles, summary.TotalFiles-summary.SkippedFiles)
	}
	return nil
}
