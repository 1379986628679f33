// Package csvio tokenizes and serializes the CSV dialect used by the
// back-office import/export flows. The stdlib encoding/csv reader is not used
// because the import contract differs from it on three points: cells are
// trimmed, structurally-empty rows are dropped, and the delimiter is
// auto-detected against the known header vocabulary.
package csvio

import "strings"

// Parse tokenizes comma-delimited text into rows of trimmed cells.
func Parse(text string) [][]string {
	return ParseDelim(text, ',')
}

// ParseDelim tokenizes text with an explicit delimiter. Quoted fields may
// contain the delimiter, newlines and doubled-quote escapes. Bare carriage
// returns are stripped. Rows whose cells are all empty are dropped.
func ParseDelim(text string, delim rune) [][]string {
	var (
		rows     [][]string
		row      []string
		cell     strings.Builder
		inQuotes bool
	)

	runes := []rune(text)
	endCell := func() {
		row = append(row, strings.TrimSpace(cell.String()))
		cell.Reset()
	}
	endRow := func() {
		endCell()
		for _, c := range row {
			if c != "" {
				rows = append(rows, row)
				break
			}
		}
		row = nil
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes {
				if i+1 < len(runes) && runes[i+1] == '"' {
					// Doubled quote inside a quoted field is a literal quote.
					cell.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				inQuotes = true
			}
		case r == delim && !inQuotes:
			endCell()
		case r == '\n' && !inQuotes:
			endRow()
		case r == '\r' && !inQuotes:
			// stripped
		default:
			cell.WriteRune(r)
		}
	}
	if cell.Len() > 0 || len(row) > 0 {
		endRow()
	}

	return rows
}

// Serialize renders rows as RFC 4180 CSV, round-trippable with Parse. Cells
// containing the delimiter, quotes or line breaks are wrapped in double
// quotes with internal quotes doubled.
func Serialize(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(cell, ",\"\n\r") {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
				b.WriteByte('"')
			} else {
				b.WriteString(cell)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
