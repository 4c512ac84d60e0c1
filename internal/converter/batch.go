package converter

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/pkg/utils"
	"github.com/rs/zerolog"
)

// Job pairs an input file with the profile that reads it.
type Job struct {
	Path    string
	Profile *config.Profile
}

// Plan matches every file to a profile. With a non-empty code, every file
// uses that profile. Files no profile matches are returned as skipped.
func Plan(files []string, profiles map[string]*config.Profile, code string) (jobs []Job, skipped []string, err error) {
	for _, file := range files {
		profile, err := config.FindProfile(profiles, code, file)
		if errors.Is(err, config.ErrNoMatchingProfile) {
			skipped = append(skipped, file)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		jobs = append(jobs, Job{Path: file, Profile: profile})
	}
	return jobs, skipped, nil
}

// RunAll converts every job in its own goroutine. Results come back in
// job order. A failure in one file does not affect the others.
func RunAll(jobs []Job, mainConfig *config.MainConfig, logger zerolog.Logger, opts ...Option) []Result {
	type indexed struct {
		i      int
		result Result
	}

	var wg sync.WaitGroup
	results := make(chan indexed, len(jobs))

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			conv := New(job.Path, job.Profile, mainConfig, logger, opts...)
			results <- indexed{i: i, result: conv.Run()}
		}(i, job)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]Result, len(jobs))
	for r := range results {
		ordered[r.i] = r.result
	}
	return ordered
}

// Summarize aggregates batch results for the summary log.
func Summarize(results []Result, skipped []string, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:    start,
		EndTime:      end,
		TotalFiles:   len(results) + len(skipped),
		SkippedFiles: len(skipped),
	}

	for _, r := range results {
		if !r.Success {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    r.FilePath,
				ErrorMessage: r.Error.Error(),
			})
			continue
		}

		summary.SuccessfulFiles++
		summary.TotalRows += r.Stats.RowsRead
		summary.TotalTransactions += r.Stats.Transactions
		summary.TotalStatements += r.Stats.Statements
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:    r.FilePath,
			OutputFile:   r.OutputFile,
			Profile:      r.Profile,
			Rows:         r.Stats.RowsRead,
			Transactions: r.Stats.Transactions,
			Statements:   r.Stats.Statements,
			ProcessTime:  r.Stats.ProcessingTime,
		})
	}

	return summary
}

// ErrorEntries turns failed results into error log entries, pulling the
// row number and offending field out of the typed errors.
func ErrorEntries(results []Result, at time.Time) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry

	for _, r := range results {
		if r.Success {
			continue
		}

		entry := utils.ErrorLogEntry{
			Timestamp:    at,
			FileName:     filepath.Base(r.FilePath),
			ErrorType:    "conversion",
			ErrorMessage: r.Error.Error(),
		}

		var rowErr *RowError
		if errors.As(r.Error, &rowErr) {
			entry.RowNumber = rowErr.Row
		}

		var missing *transaction.MissingFieldError
		var badDate *transaction.MalformedDateError
		var badAmount *transaction.MalformedAmountError
		switch {
		case errors.As(r.Error, &missing):
			entry.ErrorType = "missing field"
			entry.FieldName = missing.Field
		case errors.As(r.Error, &badDate):
			entry.ErrorType = "malformed date"
			entry.FieldName = "date"
			entry.FieldValue = badDate.Value
		case errors.As(r.Error, &badAmount):
			entry.ErrorType = "malformed amount"
			entry.FieldName = "amount"
			entry.FieldValue = badAmount.Value
		}

		entries = append(entries, entry)
	}

	return entries
}
