// Package table loads the published ineligibility table into raw rows.
//
// Rows that cannot be used are skipped and reported as Issues rather than
// failing the load. An issue is either "missing" (the row has no norma) or
// "corrupt" (the row could not be decoded), so callers can tell an
// incomplete table from a damaged one.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/coolbeans/inelegis/pkg/record"
)

// Format identifies a table encoding.
type Format string

const (
	FormatAuto   Format = ""
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

var (
	// ErrUnsupportedFormat is returned for unknown formats or extensions.
	ErrUnsupportedFormat = errors.New("unsupported table format")
	// ErrNoSources is returned when the source patterns match no file.
	ErrNoSources = errors.New("no table sources found")
)

// IssueKind classifies a skipped row.
type IssueKind string

const (
	// IssueMissing marks a row without a norma.
	IssueMissing IssueKind = "missing"
	// IssueCorrupt marks a row that could not be decoded.
	IssueCorrupt IssueKind = "corrupt"
)

// Issue describes a skipped row. Row is 1-based within its source; header
// lines count.
type Issue struct {
	Source string    `json:"source"`
	Row    int       `json:"row"`
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", i.Source, i.Row, i.Detail, i.Kind)
}

// LoadResult holds the rows read from every source, in source order.
type LoadResult struct {
	Sources []string        `json:"sources"`
	Rows    []record.RawRow `json:"-"`
	Issues  []Issue         `json:"issues"`
}

// CountByKind tallies issues per kind.
func (r *LoadResult) CountByKind() map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, issue := range r.Issues {
		counts[issue.Kind]++
	}
	return counts
}

// Options configure a Loader.
type Options struct {
	// Format forces a format; FormatAuto detects it from the extension.
	Format Format
	// SQLiteQuery overrides DefaultSQLiteQuery.
	SQLiteQuery string
}

// Loader reads table sources.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{opts: opts, logger: logger}
}

// Load expands patterns and reads every matching source.
func (l *Loader) Load(ctx context.Context, patterns []string) (*LoadResult, error) {
	sources, err := Expand(patterns)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Sources: sources}
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, issues, err := l.LoadFile(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", source, err)
		}
		l.logger.Debug("Loaded table source",
			"source", source,
			"rows", len(rows),
			"issues", len(issues))
		result.Rows = append(result.Rows, rows...)
		result.Issues = append(result.Issues, issues...)
	}

	for _, issue := range result.Issues {
		l.logger.Warn("Skipped table row",
			"source", issue.Source,
			"row", issue.Row,
			"kind", string(issue.Kind),
			"detail", issue.Detail)
	}

	return result, nil
}

// LoadFile reads a single source.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]record.RawRow, []Issue, error) {
	format := l.opts.Format
	if format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, nil, err
		}
		format = detected
	}

	if format == FormatSQLite {
		return ReadSQLite(ctx, path, l.opts.SQLiteQuery)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		return ReadCSV(f, path)
	case FormatJSON:
		return ReadJSON(f, path)
	case FormatYAML:
		return ReadYAML(f, path)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatAuto, FormatCSV, FormatJSON, FormatYAML, FormatSQLite:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "db", "sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Expand resolves file paths and doublestar glob patterns ("tabelas/**/*.csv")
// into a de-duplicated, ordered list of files.
func Expand(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if !containsGlob(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("table source %q: %w", pattern, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("table source %q is a directory", pattern)
			}
			add(filepath.Clean(pattern))
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			add(match)
		}
	}

	if len(files) == 0 {
		return nil, ErrNoSources
	}
	return files, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
