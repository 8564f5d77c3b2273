package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coolbeans/inelegis/pkg/normalize"
	"github.com/coolbeans/inelegis/pkg/record"
)

type column int

const (
	columnUnknown column = iota
	columnNorma
	columnExcecoes
	columnCrime
)

// columnAliases maps normalized header names to table columns.
var columnAliases = map[string]column{
	"norma":               columnNorma,
	"normas":              columnNorma,
	"lei":                 columnNorma,
	"dispositivo":         columnNorma,
	"excecoes":            columnExcecoes,
	"excecao":             columnExcecoes,
	"excecoes aplicaveis": columnExcecoes,
	"ressalvas":           columnExcecoes,
	"crime":               columnCrime,
	"crimes":              columnCrime,
	"descricao":           columnCrime,
	"tipo penal":          columnCrime,
}

func columnFor(name string) column {
	key := strings.Trim(normalize.Normalize(name), " _-:")
	key = strings.ReplaceAll(key, "_", " ")
	return columnAliases[key]
}

// canonicalColumnNames are preferred when an object carries several aliases
// for the same column.
var canonicalColumnNames = map[column]string{
	columnNorma:    "norma",
	columnExcecoes: "excecoes",
	columnCrime:    "crime",
}

// rowFromFields builds a row from a decoded JSON/YAML object. Exceptions may
// be a string or a list of strings. When several keys map to one column the
// canonical name wins, then the alphabetically first key.
func rowFromFields(fields map[string]any) (record.RawRow, *Issue) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := isCanonicalName(names[i]), isCanonicalName(names[j])
		if ci != cj {
			return ci
		}
		return names[i] < names[j]
	})

	var row record.RawRow
	filled := make(map[column]bool)
	for _, name := range names {
		col := columnFor(name)
		if col == columnUnknown || filled[col] {
			continue
		}
		filled[col] = true

		text, err := fieldText(fields[name])
		if err != nil {
			return row, &Issue{Kind: IssueCorrupt, Detail: fmt.Sprintf("field %q: %v", name, err)}
		}

		switch col {
		case columnNorma:
			row.Norma = text
		case columnExcecoes:
			row.Excecoes = text
		case columnCrime:
			row.Crime = text
		}
	}

	if strings.TrimSpace(row.Norma) == "" {
		return row, &Issue{Kind: IssueMissing, Detail: "row has no norma"}
	}
	return row, nil
}

func isCanonicalName(name string) bool {
	col := columnFor(name)
	return col != columnUnknown && normalize.Normalize(name) == canonicalColumnNames[col]
}

func fieldText(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("list item of type %T", item)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "; "), nil
	default:
		return "", fmt.Errorf("unexpected type %T", value)
	}
}
