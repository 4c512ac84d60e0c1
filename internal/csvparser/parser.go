// =============================================================================
// CSV to OFX Converter - CSV Parser Module
// =============================================================================
//
// This module reads delimited statement exports into rows. The first row
// (after any skipped preamble lines) holds the column headers; every
// following non-empty row becomes a map of header -> cell value.
//
// FEATURES:
//   - Different delimiters (comma, semicolon, pipe, tab)
//   - Legacy encodings used by bank exports (ISO-8859-1, Windows-1252, UTF-16)
//   - UTF-8 byte order mark removal
//   - Preamble lines before the header (account summaries, titles)
//
// Cell values are passed through as they are. Trimming and number/date
// parsing belong to the transaction package.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/config"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// byteOrderMark is stripped from the first header cell.
const byteOrderMark = "\ufeff"

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the column headers from the CSV file.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	// Cells missing from short rows are absent from the map.
	Rows []map[string]string

	// SourceFile is the path to the source CSV file, empty for readers.
	SourceFile string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV settings from the bank profile.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed data.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}

	data.SourceFile = filePath
	return data, nil
}

// ParseReader parses CSV content from r.
func ParseReader(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	enc, err := getDecoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(transform.NewReader(r, enc.NewDecoder()))
	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if settings.SkipRows > 0 {
		if settings.SkipRows >= len(allRows) {
			return nil, fmt.Errorf("CSV file has no header row after skipping %d rows", settings.SkipRows)
		}
		allRows = allRows[settings.SkipRows:]
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := cleanHeaders(allRows[0])
	for _, header := range headers {
		if !utf8.ValidString(header) {
			return nil, fmt.Errorf("header %q is not valid %s", header, encodingName(settings.Encoding))
		}
	}

	rows, err := extractDataRows(allRows[1:], headers)
	if err != nil {
		return nil, fmt.Errorf("%w (check the profile encoding, currently %s)", err, encodingName(settings.Encoding))
	}

	return &CSVData{
		Headers: headers,
		Rows:    rows,
	}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Bank exports often have a preamble with fewer columns than the data.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// getDecoder returns the decoder for a profile encoding name.
func getDecoder(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "_", "-")) {
	case "", "UTF-8", "UTF8":
		return encoding.Nop, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "ISO-8859-15":
		return charmap.ISO8859_15, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "UTF-16", "UTF16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// cleanHeaders trims headers and names empty ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, byteOrderMark)
		}
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// encodingName names the encoding used for error messages.
func encodingName(name string) string {
	if name == "" {
		return "UTF-8"
	}
	return name
}

// extractDataRows converts rows to maps keyed by header.
//
// Rows are numbered from 1 in the order they are returned; a cell that is
// not valid UTF-8 after decoding fails the whole file with that number.
func extractDataRows(rows [][]string, headers []string) ([]map[string]string, error) {
	dataRows := make([]map[string]string, 0, len(rows))

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex >= len(row) {
				continue
			}
			if !utf8.ValidString(row[colIndex]) {
				return nil, fmt.Errorf("row %d: invalid UTF-8 in column %q", len(dataRows)+1, header)
			}
			rowMap[header] = row[colIndex]
		}

		dataRows = append(dataRows, rowMap)
	}

	return dataRows, nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
