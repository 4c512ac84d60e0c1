package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const desjardinsProfile = `
profile_name: Desjardins chequing
profile_code: desjardins
file_matching_patterns:
  - "releve_*.csv"
source:
  delimiter: ";"
  encoding: Windows-1252
columns:
  date: Date
  amount: Montant
  payee: Description
account:
  bankid: "815"
  acctid: "12345"
  currency: CAD
  date_fmt: "%Y/%m/%d"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMainConfig_Defaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "./input_archive", cfg.InputArchiveDir)
	assert.Equal(t, "./profiles", cfg.ProfilesDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "{profile}_{timestamp}_{uuid}.ofx", cfg.OutputNameFormat)
	assert.False(t, cfg.PrettyPrint)
	assert.False(t, cfg.ArchiveOnSuccess)
	assert.False(t, cfg.ArchiveDateSubdirs)
}

func TestLoadMainConfig_FileAndEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "output_dir: ./ofx\nlog_level: debug\npretty_print: true\narchive_date_subdirs: true\n")
	t.Setenv("CSV2OFX_LOG_LEVEL", "warn")

	cfg, err := LoadMainConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "./ofx", cfg.OutputDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.PrettyPrint)
	assert.True(t, cfg.ArchiveDateSubdirs)
	assert.Equal(t, "./profiles", cfg.ProfilesDir)
}

func TestLoadMainConfig_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "output_dir: [unclosed\n")

	_, err := LoadMainConfig(path)

	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := &MainConfig{
		OutputDir:        filepath.Join(root, "out"),
		InputArchiveDir:  filepath.Join(root, "archive"),
		ArchiveOnSuccess: true,
	}

	require.NoError(t, cfg.EnsureDirectories())

	assert.DirExists(t, cfg.OutputDir)
	assert.DirExists(t, cfg.InputArchiveDir)
}

func TestLoadProfile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "desjardins.yaml", desjardinsProfile)

	profile, err := LoadProfile(path)

	require.NoError(t, err)
	assert.Equal(t, "desjardins", profile.ProfileCode)
	assert.Equal(t, "Desjardins chequing", profile.DisplayName())
	assert.Equal(t, path, profile.Path())
	assert.Equal(t, FormatCSV, profile.Source.Format)
	assert.Equal(t, ";", profile.Source.Delimiter)
	assert.Equal(t, "Windows-1252", profile.Source.Encoding)

	assert.Equal(t, transaction.ColumnMap{Date: "Date", Amount: "Montant", Payee: "Description"}, profile.ColumnMap())

	constants := profile.AccountConstants()
	assert.Equal(t, "815", constants.BankID)
	assert.Equal(t, "12345", constants.AcctID)
	assert.Equal(t, "", constants.AcctType)
	assert.Equal(t, "CAD", constants.Currency)
	assert.Equal(t, "%Y/%m/%d", constants.DateFormat)
	assert.Nil(t, constants.AmountReplace)
}

func TestLoadProfile_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "koho.yml", "file_matching_patterns: [\"koho-*.xlsx\"]\ncolumns: {date: d, amount: a}\naccount: {bankid: b, acctid: c}\n")

	profile, err := LoadProfile(path)

	require.NoError(t, err)
	assert.Equal(t, "koho", profile.ProfileCode)
	assert.Equal(t, "koho", profile.DisplayName())
	assert.Equal(t, FormatXLSX, profile.Source.Format)
	assert.Equal(t, ",", profile.Source.Delimiter)
	assert.Equal(t, "UTF-8", profile.Source.Encoding)
}

func TestLoadProfile_AmountReplace(t *testing.T) {
	dir := t.TempDir()

	custom := writeFile(t, dir, "custom.yaml", "account:\n  amount_replace:\n    - [\"$\", \"\"]\n    - [\",\", \"\"]\n")
	profile, err := LoadProfile(custom)
	require.NoError(t, err)
	assert.Equal(t, []transaction.Replacement{{Find: "$", Replace: ""}, {Find: ",", Replace: ""}},
		profile.AccountConstants().AmountReplace)

	none := writeFile(t, dir, "none.yaml", "account:\n  amount_replace: []\n")
	profile, err = LoadProfile(none)
	require.NoError(t, err)
	replace := profile.AccountConstants().AmountReplace
	assert.NotNil(t, replace)
	assert.Empty(t, replace)
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "desjardins.yaml", desjardinsProfile)
	writeFile(t, dir, "koho.yml", "file_matching_patterns: [\"koho-*.csv\"]\n")
	writeFile(t, dir, "notes.txt", "ignored")

	profiles, err := LoadProfiles(dir)

	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Contains(t, profiles, "desjardins")
	assert.Contains(t, profiles, "koho")
}

func TestLoadProfiles_DuplicateCode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "profile_code: same\n")
	writeFile(t, dir, "b.yaml", "profile_code: same\n")

	_, err := LoadProfiles(dir)

	assert.ErrorContains(t, err, "same")
}

func TestFindProfile(t *testing.T) {
	profiles := map[string]*Profile{
		"desjardins": {ProfileCode: "desjardins", FileMatchingPatterns: []string{"releve_*.csv"}},
		"koho":       {ProfileCode: "koho", FileMatchingPatterns: []string{"koho-*.csv", "*.koho.csv"}},
	}

	p, err := FindProfile(profiles, "", "/tmp/in/koho-2024-01.csv")
	require.NoError(t, err)
	assert.Equal(t, "koho", p.ProfileCode)

	p, err = FindProfile(profiles, "", "releve_janvier.csv")
	require.NoError(t, err)
	assert.Equal(t, "desjardins", p.ProfileCode)

	p, err = FindProfile(profiles, "desjardins", "anything.csv")
	require.NoError(t, err)
	assert.Equal(t, "desjardins", p.ProfileCode)

	_, err = FindProfile(profiles, "", "unknown.csv")
	assert.ErrorIs(t, err, ErrNoMatchingProfile)

	_, err = FindProfile(profiles, "missing", "koho-1.csv")
	assert.Error(t, err)
}
