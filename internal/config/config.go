// =============================================================================
// CSV to OFX Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the bank profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings. Loaded with
//      viper, so every key can be overridden by a CSV2OFX_<KEY> variable.
//   2. Bank Profiles (profiles/*.yaml): One file per statement export
//      layout. Each profile says how to read the file (delimiter, encoding,
//      sheet), which column holds which field, and the account constants.
//
// The core packages never read these files. A Profile is turned into the
// in-memory transaction.ColumnMap and transaction.AccountConstants before
// any row is converted.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides of main config keys.
const EnvPrefix = "CSV2OFX"

// ErrNoMatchingProfile is returned by FindProfile when no profile pattern
// matches the input file name.
var ErrNoMatchingProfile = errors.New("no profile matches")

// Source formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where statement exports are dropped.
	// Default: "./input"
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	// OutputDir is where generated OFX files are written.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" validate:"required"`

	// InputArchiveDir receives converted exports when ArchiveOnSuccess is set.
	// Default: "./input_archive"
	InputArchiveDir string `mapstructure:"input_archive_dir" yaml:"input_archive_dir"`

	// ProfilesDir contains the bank profile YAML files.
	// Default: "./profiles"
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir" validate:"required"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the output file name.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYYMMDD)
	//   {profile}   - Profile code
	//   {original}  - Input file name without extension
	// Default: "{profile}_{timestamp}_{uuid}.ofx"
	OutputNameFormat string `mapstructure:"output_name_format" yaml:"output_name_format" validate:"required"`

	// PrettyPrint indents the OFX document, one element per line.
	// Default: false (compact)
	PrettyPrint bool `mapstructure:"pretty_print" yaml:"pretty_print"`

	// ArchiveOnSuccess moves the input file to InputArchiveDir after a
	// successful conversion.
	// Default: false
	ArchiveOnSuccess bool `mapstructure:"archive_on_success" yaml:"archive_on_success"`

	// ArchiveDateSubdirs files archived exports under YYYY/MM/DD
	// subdirectories of InputArchiveDir.
	// Default: false
	ArchiveDateSubdirs bool `mapstructure:"archive_date_subdirs" yaml:"archive_date_subdirs"`
}

// =============================================================================
// BANK PROFILE STRUCTURE
// =============================================================================

// Profile describes one statement export layout.
type Profile struct {
	// ProfileName is the human-readable name used in logs.
	ProfileName string `yaml:"profile_name"`

	// ProfileCode is the short key used on the command line and in output
	// file names. Defaults to the file name without extension.
	ProfileCode string `yaml:"profile_code" validate:"required"`

	// FileMatchingPatterns are glob patterns matched against input file
	// names when no profile is given explicitly.
	// Examples: "releve_*.csv", "koho-*.csv"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Source contains the settings for reading the export.
	Source CSVSettings `yaml:"source"`

	// Columns maps transaction fields to source column headers.
	Columns ColumnSettings `yaml:"columns"`

	// Account holds the per-export constants.
	Account AccountSettings `yaml:"account"`

	// path is the file the profile was loaded from.
	path string
}

// CSVSettings contains settings for reading an export file. The same
// settings serve CSV and XLSX sources.
type CSVSettings struct {
	// Format is "csv" or "xlsx".
	// Default: "csv"
	Format string `yaml:"format" validate:"oneof=csv xlsx"`

	// Delimiter is the character used to separate fields in the CSV.
	// Common values: "," (comma), ";" (semicolon), "|" (pipe), "tab"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the CSV file.
	// Common values: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// SkipRows is the number of preamble rows above the header row.
	// Default: 0
	SkipRows int `yaml:"skip_rows" validate:"gte=0"`

	// Sheet is the XLSX sheet to read. Empty selects the first sheet.
	Sheet string `yaml:"sheet"`
}

// ColumnSettings maps transaction fields to source column headers.
type ColumnSettings struct {
	Date   string `yaml:"date" validate:"required"`
	Amount string `yaml:"amount" validate:"required"`
	Payee  string `yaml:"payee"`
	Memo   string `yaml:"memo"`
	ExtID  string `yaml:"ext_id"`
}

// AccountSettings holds the account constants of a profile.
type AccountSettings struct {
	BankID   string `yaml:"bankid" validate:"required"`
	AcctID   string `yaml:"acctid" validate:"required"`
	AcctType string `yaml:"accttype" validate:"omitempty,accttype"`
	Currency string `yaml:"currency" validate:"omitempty,len=3,uppercase"`

	// DateFormat is a strftime pattern such as "%d/%m/%Y".
	DateFormat string `yaml:"date_fmt" validate:"omitempty,datefmt"`

	// AmountReplace is a list of [find, replace] pairs. Leave it out for
	// the default comma-decimal rules; set it to [] for none.
	AmountReplace [][]string `yaml:"amount_replace" validate:"omitempty,dive,len=2"`
}

// =============================================================================
// CONVERSION TO CORE STRUCTURES
// =============================================================================

// ColumnMap returns the column mapping for the transaction package.
func (p *Profile) ColumnMap() transaction.ColumnMap {
	return transaction.ColumnMap{
		Date:   p.Columns.Date,
		Amount: p.Columns.Amount,
		Payee:  p.Columns.Payee,
		Memo:   p.Columns.Memo,
		ExtID:  p.Columns.ExtID,
	}
}

// AccountConstants returns the account constants for the transaction
// package.
func (p *Profile) AccountConstants() transaction.AccountConstants {
	constants := transaction.AccountConstants{
		BankID:     p.Account.BankID,
		AcctID:     p.Account.AcctID,
		AcctType:   p.Account.AcctType,
		Currency:   p.Account.Currency,
		DateFormat: p.Account.DateFormat,
	}

	if p.Account.AmountReplace != nil {
		constants.AmountReplace = make([]transaction.Replacement, 0, len(p.Account.AmountReplace))
		for _, pair := range p.Account.AmountReplace {
			if len(pair) != 2 {
				continue
			}
			constants.AmountReplace = append(constants.AmountReplace,
				transaction.Replacement{Find: pair[0], Replace: pair[1]})
		}
	}

	return constants
}

// Path returns the file the profile was loaded from.
func (p *Profile) Path() string {
	return p.path
}

// DisplayName returns the profile name, or its code when unnamed.
func (p *Profile) DisplayName() string {
	if p.ProfileName != "" {
		return p.ProfileName
	}
	return p.ProfileCode
}

// Matches reports whether fileName matches one of the profile patterns.
func (p *Profile) Matches(fileName string) bool {
	fileName = filepath.Base(fileName)
	for _, pattern := range p.FileMatchingPatterns {
		matched, err := filepath.Match(pattern, fileName)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file
//     is not an error; defaults and environment overrides still apply.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file exists but cannot be read or parsed.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setMainConfigDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// setMainConfigDefaults registers the default for every main config key.
// Registering every key also lets AutomaticEnv see it during Unmarshal.
func setMainConfigDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("input_archive_dir", "./input_archive")
	v.SetDefault("profiles_dir", "./profiles")
	v.SetDefault("log_level", "info")
	v.SetDefault("output_name_format", "{profile}_{timestamp}_{uuid}.ofx")
	v.SetDefault("pretty_print", false)
	v.SetDefault("archive_on_success", false)
	v.SetDefault("archive_date_subdirs", false)
}

// EnsureDirectories creates the output and archive directories.
func (c *MainConfig) EnsureDirectories() error {
	dirs := []string{c.OutputDir}
	if c.ArchiveOnSuccess {
		dirs = append(dirs, c.InputArchiveDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LoadProfiles loads all bank profiles from a directory.
//
// PARAMETERS:
//   - profilesDir: The directory containing profile files.
//
// RETURNS:
//   - A map of profiles keyed by profile code.
//   - An error if a file cannot be parsed or two files share a code.
func LoadProfiles(profilesDir string) (map[string]*Profile, error) {
	profiles := make(map[string]*Profile)

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		if existing, ok := profiles[profile.ProfileCode]; ok {
			return nil, fmt.Errorf("profile code %q defined in both %s and %s",
				profile.ProfileCode, existing.path, file)
		}
		profiles[profile.ProfileCode] = profile
	}

	return profiles, nil
}

// LoadProfile loads a single profile file.
func LoadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	profile.path = filePath
	applyProfileDefaults(&profile)

	return &profile, nil
}

// applyProfileDefaults sets default values for a profile.
func applyProfileDefaults(profile *Profile) {
	if profile.ProfileCode == "" {
		base := filepath.Base(profile.path)
		profile.ProfileCode = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if profile.Source.Format == "" {
		profile.Source.Format = formatFromPatterns(profile.FileMatchingPatterns)
	}
	profile.Source.Format = strings.ToLower(profile.Source.Format)

	if profile.Source.Delimiter == "" {
		profile.Source.Delimiter = ","
	}
	if profile.Source.Encoding == "" {
		profile.Source.Encoding = "UTF-8"
	}
}

// formatFromPatterns guesses xlsx when every pattern ends in .xlsx.
func formatFromPatterns(patterns []string) string {
	if len(patterns) == 0 {
		return FormatCSV
	}
	for _, pattern := range patterns {
		if !strings.HasSuffix(strings.ToLower(pattern), ".xlsx") {
			return FormatCSV
		}
	}
	return FormatXLSX
}

// =============================================================================
// PROFILE SELECTION
// =============================================================================

// FindProfile returns the profile for an input file.
//
// When code is set, that profile is returned. Otherwise the profiles are
// tried in code order and the first whose patterns match the file name
// wins.
func FindProfile(profiles map[string]*Profile, code, inputPath string) (*Profile, error) {
	if code != "" {
		profile, ok := profiles[code]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", code)
		}
		return profile, nil
	}

	codes := make([]string, 0, len(profiles))
	for c := range profiles {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	for _, c := range codes {
		if profiles[c].Matches(inputPath) {
			return profiles[c], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoMatchingProfile, filepath.Base(inputPath))
}
