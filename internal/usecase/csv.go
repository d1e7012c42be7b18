package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ExtractCSVContext renders an uploaded CSV file as a markdown table. Empty
// input yields "". A parse failure is logged and returned as readable text so
// the prompt can still be sent.
func ExtractCSVContext(ctx context.Context, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	rows, err := parseCSV(data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse csv file", "err", err)
		return "Error parsing CSV file: " + err.Error()
	}
	if len(rows) == 0 {
		return ""
	}
	return RenderMarkdownTable(rows)
}

// parseCSV reads strictly first. A bare quote inside an unquoted field, as in
// 5'10", is retried with lazy quoting; unterminated quoted fields still fail.
func parseCSV(data []byte) ([][]string, error) {
	rows, err := readCSV(data, false)
	if errors.Is(err, csv.ErrBareQuote) {
		rows, err = readCSV(data, true)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readCSV(data []byte, lazyQuotes bool) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazyQuotes
	return r.ReadAll()
}

// RenderMarkdownTable writes rows[0] as the header, a separator sized to the
// header, then the remaining rows in order. Rows are not padded or truncated
// to the header width.
func RenderMarkdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	header := rows[0]

	writeRow(&b, header)

	b.WriteString("| ")
	for range header {
		b.WriteString("--- | ")
	}
	b.WriteString("\n")

	for _, row := range rows[1:] {
		writeRow(&b, row)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	for _, cell := range cells {
		b.WriteString(cell)
		b.WriteString(" | ")
	}
	b.WriteString("\n")
}
