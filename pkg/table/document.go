package table

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/coolbeans/inelegis/pkg/record"
	"gopkg.in/yaml.v3"
)

// ReadJSON reads a JSON array of row objects.
func ReadJSON(r io.Reader, source string) ([]record.RawRow, []Issue, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, nil, fmt.Errorf("decode json table: %w", err)
	}

	decoded := make([]any, len(items))
	for i, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			decoded[i] = err
			continue
		}
		decoded[i] = fields
	}
	rows, issues := collectRows(decoded, source)
	return rows, issues, nil
}

// ReadYAML reads a YAML sequence of row mappings.
func ReadYAML(r io.Reader, source string) ([]record.RawRow, []Issue, error) {
	var items []yaml.Node
	if err := yaml.NewDecoder(r).Decode(&items); err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("decode yaml table: %w", err)
	}

	decoded := make([]any, len(items))
	for i := range items {
		var fields map[string]any
		if err := items[i].Decode(&fields); err != nil {
			decoded[i] = err
			continue
		}
		decoded[i] = fields
	}
	rows, issues := collectRows(decoded, source)
	return rows, issues, nil
}

// collectRows converts decoded items, each either a field map or the error
// that prevented decoding it.
func collectRows(items []any, source string) ([]record.RawRow, []Issue) {
	var (
		rows   []record.RawRow
		issues []Issue
	)
	for i, item := range items {
		position := i + 1
		switch v := item.(type) {
		case error:
			issues = append(issues, Issue{Source: source, Row: position, Kind: IssueCorrupt, Detail: v.Error()})
		case map[string]any:
			row, issue := rowFromFields(v)
			if issue != nil {
				issue.Source = source
				issue.Row = position
				issues = append(issues, *issue)
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows, issues
}
