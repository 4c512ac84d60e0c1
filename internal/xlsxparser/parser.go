// =============================================================================
// CSV to OFX Converter - XLSX Parser Module
// =============================================================================
//
// Some banks only offer spreadsheet downloads. This module reads one sheet
// of an XLSX export the same way csvparser reads a delimited file: the
// first row (after skipped preamble rows) holds the headers and each
// following non-empty row becomes a map of header -> cell value.
//
// Cell values are the formatted strings excelize returns, so a date cell
// comes back in the sheet's display format and date_fmt in the bank
// profile must match that format.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// SHEET DATA STRUCTURE
// =============================================================================

// SheetData represents the parsed sheet.
type SheetData struct {
	// SourceFile is the path to the workbook.
	SourceFile string

	// SheetName is the sheet that was read.
	SheetName string

	// Headers contains the column headers from the header row.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseSheet reads one sheet of an XLSX file.
//
// PARAMETERS:
//   - filePath: The path to the XLSX file.
//   - sheetName: The sheet to read; empty selects the first sheet.
//   - skipRows: Number of preamble rows above the header row.
//
// RETURNS:
//   - A pointer to the SheetData struct.
//   - An error if the file or sheet cannot be read.
func ParseSheet(filePath, sheetName string, skipRows int) (*SheetData, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}

	// Leading blank rows are common above the table.
	for len(rows) > 0 && isRowEmpty(rows[0]) {
		rows = rows[1:]
	}

	if skipRows > 0 {
		if skipRows >= len(rows) {
			return nil, fmt.Errorf("sheet %q has no header row after skipping %d rows", sheetName, skipRows)
		}
		rows = rows[skipRows:]
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	headers := cleanHeaders(rows[0])

	data := &SheetData{
		SourceFile: filePath,
		SheetName:  sheetName,
		Headers:    headers,
		Rows:       make([]map[string]string, 0, len(rows)-1),
	}

	for _, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}

		// GetRows trims trailing empty cells, so short rows are normal here.
		rowMap := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(row) {
				rowMap[header] = row[i]
			}
		}
		data.Rows = append(data.Rows, rowMap)
	}

	return data, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
