package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/coolbeans/inelegis/pkg/record"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a comma, semicolon or tab separated table. When the first
// line names a norma column, columns are mapped by header; otherwise the
// columns are taken positionally as norma, excecoes, crime.
func ReadCSV(r io.Reader, source string) ([]record.RawRow, []Issue, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// TrimLeadingSpace would also consume empty tab-separated fields.
	reader.TrimLeadingSpace = reader.Comma != '\t'

	var (
		rows    []record.RawRow
		issues  []Issue
		columns []column
		width   int
	)

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				issues = append(issues, Issue{Source: source, Row: parseErr.StartLine, Kind: IssueCorrupt, Detail: parseErr.Err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if columns == nil {
			if header, ok := headerColumns(fields); ok {
				columns = header
				width = len(fields)
				continue
			}
			columns = []column{columnNorma, columnExcecoes, columnCrime}
			width = len(fields)
		}

		if blankRecord(fields) {
			continue
		}
		if len(fields) != width {
			issues = append(issues, Issue{
				Source: source,
				Row:    line,
				Kind:   IssueCorrupt,
				Detail: fmt.Sprintf("expected %d fields, got %d", width, len(fields)),
			})
			continue
		}

		row := rowFromColumns(columns, fields)
		if strings.TrimSpace(row.Norma) == "" {
			issues = append(issues, Issue{Source: source, Row: line, Kind: IssueMissing, Detail: "row has no norma"})
			continue
		}
		rows = append(rows, row)
	}

	return rows, issues, nil
}

// headerColumns reports whether fields form a header naming a norma column.
func headerColumns(fields []string) ([]column, bool) {
	columns := make([]column, len(fields))
	hasNorma := false
	for i, name := range fields {
		columns[i] = columnFor(name)
		if columns[i] == columnNorma {
			hasNorma = true
		}
	}
	return columns, hasNorma
}

func rowFromColumns(columns []column, fields []string) record.RawRow {
	var row record.RawRow
	for i, value := range fields {
		if i >= len(columns) {
			break
		}
		switch columns[i] {
		case columnNorma:
			row.Norma = value
		case columnExcecoes:
			row.Excecoes = value
		case columnCrime:
			row.Crime = value
		}
	}
	return row
}

func blankRecord(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// detectDelimiter picks the separator that occurs most on the first line.
func detectDelimiter(data []byte) rune {
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestCount := ',', bytes.Count(firstLine, []byte(","))
	for _, candidate := range []rune{';', '\t'} {
		if n := bytes.Count(firstLine, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}
