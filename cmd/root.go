// =============================================================================
// CSV to OFX Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (csv2ofx)
//   ├── convertCmd  (csv2ofx convert)
//   ├── validateCmd (csv2ofx validate)
//   └── versionCmd  (csv2ofx version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading a .env file, so CSV2OFX_* overrides can live next to the binary
//   3. Loading the main configuration and building the logger on demand
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "csv2ofx",
	Short: "CSV to OFX Converter - Turn bank statement exports into OFX files",
	Long: `CSV to OFX Converter reads bank and card statement exports (CSV or XLSX)
and writes OFX documents that personal finance software can import.

Each export layout is described by a bank profile: how to read the file,
which column holds the date, amount, payee and memo, and the account the
rows belong to.

Example Usage:
  csv2ofx convert                              # Convert every file in the input directory
  csv2ofx convert --file releve.csv            # Convert one file, profile matched by name
  csv2ofx convert --file x.csv --profile koho --stdout
  csv2ofx validate                             # Validate configuration and profiles`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	cobra.OnInitialize(loadEnvFile)
}

// loadEnvFile loads .env from the working directory when there is one.
func loadEnvFile() {
	// A missing .env is the normal case.
	_ = godotenv.Load()
}

// loadMainConfig loads the main configuration and builds the logger.
func loadMainConfig() (*config.MainConfig, zerolog.Logger, error) {
	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, logger.Nop(), fmt.Errorf("failed to load main config: %w", err)
	}

	level := mainConfig.LogLevel
	if verbose {
		level = "debug"
	}

	log := logger.New(level)
	log.Debug().Str("config", cfgFile).Msg("loaded main config")

	return mainConfig, log, nil
}
