// =============================================================================
// CSV to OFX Converter - Converter Module
// =============================================================================
//
// This module contains the conversion pipeline for a single statement
// export, from reading the rows to writing the OFX document.
//
// CONVERSION PIPELINE:
//   1. Read the rows (CSV or XLSX, per the profile's source settings)
//   2. Build one transaction record per row
//   3. Assemble the OFX document
//   4. Write the output file (or stdout, or nothing on a dry run)
//   5. Archive the input file
//
// The first bad row aborts the file. The error names the 1-based data row.
//
// CONCURRENCY:
//   A Converter handles one file. Batch runs create one Converter per file
//   and run them in separate goroutines; converters share no mutable state.
//
// =============================================================================

package converter

import (
	"fmt"
	"io"
	"time"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/csvparser"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/ofx"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/xlsxparser"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/pkg/utils"
	"github.com/rs/zerolog"
)

// prettyIndent is the indentation used when pretty_print is on.
const prettyIndent = "  "

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Profile is the code of the profile used.
	Profile string

	// OutputFile is the path to the generated OFX file.
	// This is empty on failure, on a dry run and when writing to a stream.
	OutputFile string

	// ArchivePath is where the input file was moved, if it was.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of data rows read from the source.
	RowsRead int

	// Transactions is the number of STMTTRN entries in the document.
	Transactions int

	// Statements is the number of account statements in the document.
	Statements int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// RowError is a conversion failure on one data row.
type RowError struct {
	// Row is the 1-based data row number (the header row is not counted).
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single export file to OFX.
type Converter struct {
	inputPath  string
	profile    *config.Profile
	mainConfig *config.MainConfig
	logger     zerolog.Logger

	files     *utils.FileManager
	clock     func() time.Time
	dryRun    bool
	output    io.Writer
	noArchive bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithDryRun builds the document but writes and archives nothing.
func WithDryRun() Option {
	return func(c *Converter) { c.dryRun = true }
}

// WithOutput writes the document to w instead of a file in the output
// directory. The input file is not archived.
func WithOutput(w io.Writer) Option {
	return func(c *Converter) {
		c.output = w
		c.noArchive = true
	}
}

// WithClock replaces the clock used for the document's server time.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.clock = now }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - inputPath: The path to the statement export.
//   - profile: The bank profile describing the export.
//   - mainConfig: The main application configuration.
//   - logger: The logger; file, profile and bank fields are added to it.
//   - opts: Optional behavior (dry run, stream output, clock).
func New(inputPath string, profile *config.Profile, mainConfig *config.MainConfig, logger zerolog.Logger, opts ...Option) *Converter {
	files := utils.NewFileManager(
		mainConfig.InputDir,
		mainConfig.OutputDir,
		mainConfig.InputArchiveDir,
		mainConfig.ArchiveOnSuccess,
	)
	files.UseTimestampSubdirs = mainConfig.ArchiveDateSubdirs

	c := &Converter{
		inputPath:  inputPath,
		profile:    profile,
		mainConfig: mainConfig,
		logger: logger.With().
			Str("file", inputPath).
			Str("profile", profile.ProfileCode).
			Str("bank", profile.DisplayName()).
			Logger(),
		files: files,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the file.
func (c *Converter) Run() Result {
	startTime := time.Now()
	result := Result{
		FilePath: c.inputPath,
		Profile:  c.profile.ProfileCode,
	}

	// =========================================================================
	// STEP 1: READ ROWS
	// =========================================================================

	c.logger.Debug().Str("format", c.profile.Source.Format).Msg("reading rows")

	rows, err := c.readRows()
	if err != nil {
		result.Error = fmt.Errorf("failed to read %s: %w", c.inputPath, err)
		return result
	}
	result.Stats.RowsRead = len(rows)

	// =========================================================================
	// STEP 2: BUILD RECORDS
	// =========================================================================

	records, err := c.buildRecords(rows)
	if err != nil {
		result.Error = err
		return result
	}
	result.Stats.Transactions = len(records)
	result.Stats.Statements = len(ofx.Accounts(records))

	c.logger.Debug().Int("rows", len(rows)).Int("statements", result.Stats.Statements).Msg("built records")

	// =========================================================================
	// STEP 3: ASSEMBLE DOCUMENT
	// =========================================================================

	opts := []ofx.Option{ofx.WithClock(c.clock)}
	if c.mainConfig.PrettyPrint {
		opts = append(opts, ofx.WithIndent(prettyIndent))
	}
	document := ofx.NewAssembler(opts...).Build(records)

	// =========================================================================
	// STEP 4: WRITE OUTPUT
	// =========================================================================

	switch {
	case c.dryRun:
		c.logger.Info().Int("bytes", len(document)).Msg("dry run, nothing written")

	case c.output != nil:
		if _, err := io.WriteString(c.output, document); err != nil {
			result.Error = fmt.Errorf("failed to write output: %w", err)
			return result
		}

	default:
		name := utils.GenerateOutputFileName(c.mainConfig.OutputNameFormat, map[string]string{
			"profile":  c.profile.ProfileCode,
			"original": utils.OriginalName(c.inputPath),
		})
		outputPath, err := c.files.WriteOutput(name, []byte(document))
		if err != nil {
			result.Error = fmt.Errorf("failed to write output: %w", err)
			return result
		}
		result.OutputFile = outputPath
	}

	// =========================================================================
	// STEP 5: ARCHIVE INPUT
	// =========================================================================

	if !c.dryRun && !c.noArchive && c.mainConfig.ArchiveOnSuccess {
		archivePath, err := c.files.ArchiveInputFile(c.inputPath)
		if err != nil {
			// The document is already written; a failed move is not fatal.
			c.logger.Warn().Err(err).Msg("failed to archive input")
		} else {
			result.ArchivePath = archivePath
		}
	}

	// =========================================================================
	// COMPLETE
	// =========================================================================

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)

	c.logger.Info().
		Int("rows", result.Stats.RowsRead).
		Int("statements", result.Stats.Statements).
		Str("output", result.OutputFile).
		Dur("elapsed", result.Stats.ProcessingTime).
		Msg("converted")

	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readRows reads the data rows of the input file.
func (c *Converter) readRows() ([]map[string]string, error) {
	source := c.profile.Source

	switch source.Format {
	case config.FormatXLSX:
		data, err := xlsxparser.ParseSheet(c.inputPath, source.Sheet, source.SkipRows)
		if err != nil {
			return nil, err
		}
		return data.Rows, nil

	case config.FormatCSV, "":
		data, err := csvparser.Parse(c.inputPath, source)
		if err != nil {
			return nil, err
		}
		return data.Rows, nil

	default:
		return nil, fmt.Errorf("unsupported source format %q", source.Format)
	}
}

// buildRecords converts every row. The first failing row aborts the file.
func (c *Converter) buildRecords(rows []map[string]string) ([]transaction.Record, error) {
	columns := c.profile.ColumnMap()
	account := c.profile.AccountConstants()

	records := make([]transaction.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := transaction.New(transaction.Row(row), columns, account)
		if err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}
