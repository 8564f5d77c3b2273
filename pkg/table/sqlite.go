package table

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/coolbeans/inelegis/pkg/record"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DefaultSQLiteQuery reads the conventional "tabela" table.
const DefaultSQLiteQuery = `SELECT
	COALESCE(norma, '')    AS norma,
	COALESCE(excecoes, '') AS excecoes,
	COALESCE(crime, '')    AS crime
FROM tabela
ORDER BY rowid`

// ReadSQLite reads rows from a SQLite database. The query must return the
// columns norma, excecoes and crime; an empty query uses DefaultSQLiteQuery.
func ReadSQLite(ctx context.Context, path, query string) ([]record.RawRow, []Issue, error) {
	if query == "" {
		query = DefaultSQLiteQuery
	}

	// Opening a missing file would create an empty database.
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var selected []record.RawRow
	if err := db.SelectContext(ctx, &selected, query); err != nil {
		return nil, nil, fmt.Errorf("query sqlite table: %w", err)
	}

	var (
		rows   []record.RawRow
		issues []Issue
	)
	for i, row := range selected {
		if strings.TrimSpace(row.Norma) == "" {
			issues = append(issues, Issue{Source: path, Row: i + 1, Kind: IssueMissing, Detail: "row has no norma"})
			continue
		}
		rows = append(rows, row)
	}
	return rows, issues, nil
}
