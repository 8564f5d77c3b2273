// Package query indexes legal records by law code and answers the lookups
// the consultation UI needs: law listing, article suggestions and filtered
// record queries.
package query

import (
	"strings"

	"github.com/coolbeans/inelegis/pkg/extract"
	"github.com/coolbeans/inelegis/pkg/record"
)

// MaxSuggestions caps the number of article suggestions returned.
const MaxSuggestions = 20

// Index is an immutable view over a record set. It is built once by
// NewIndex and may be shared by any number of concurrent readers.
type Index struct {
	records []*record.LegalRecord
	byCode  map[string][]*record.LegalRecord
	laws    []record.LawSummary
}

// NewIndex indexes records by law code. The slice is copied; the records
// themselves are shared and must not be modified afterwards.
func NewIndex(records []*record.LegalRecord) *Index {
	idx := &Index{
		records: make([]*record.LegalRecord, 0, len(records)),
		byCode:  make(map[string][]*record.LegalRecord),
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		idx.records = append(idx.records, rec)
		if _, seen := idx.byCode[rec.Codigo]; !seen {
			label := record.CleanLabel(rec.Norma)
			if label == "" {
				label = rec.Codigo
			}
			idx.laws = append(idx.laws, record.LawSummary{Codigo: rec.Codigo, Label: label})
		}
		idx.byCode[rec.Codigo] = append(idx.byCode[rec.Codigo], rec)
	}

	return idx
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Records returns every indexed record in original order.
func (idx *Index) Records() []*record.LegalRecord {
	out := make([]*record.LegalRecord, len(idx.records))
	copy(out, idx.records)
	return out
}

// Laws returns one summary per distinct law code, in first-seen order.
func (idx *Index) Laws() []record.LawSummary {
	out := make([]record.LawSummary, len(idx.laws))
	copy(out, idx.laws)
	return out
}

// RecordsForLaw returns the records whose code equals codigo exactly.
func (idx *Index) RecordsForLaw(codigo string) []*record.LegalRecord {
	matches := idx.byCode[codigo]
	out := make([]*record.LegalRecord, len(matches))
	copy(out, matches)
	return out
}

// Suggestions returns up to MaxSuggestions "Art. <n>" strings for articles
// of the given law whose number starts with prefix. The prefix may carry
// an article marker ("Art. 12"). An empty prefix yields no suggestions.
func (idx *Index) Suggestions(codigo, prefix string) []string {
	suggestions := []string{}
	prefix = extract.StripArticleMarker(prefix)
	if prefix == "" {
		return suggestions
	}

	seen := make(map[string]bool)
	for _, rec := range idx.byCode[codigo] {
		for _, artigo := range rec.Artigos {
			if seen[artigo] || !strings.HasPrefix(strings.ToLower(artigo), prefix) {
				continue
			}
			seen[artigo] = true
			suggestions = append(suggestions, extract.FormatArticle(artigo))
			if len(suggestions) == MaxSuggestions {
				return suggestions
			}
		}
	}

	return suggestions
}

// Query returns the records matching filter, in original order. Codigo is
// compared exactly; Artigo must be an exact member of the record's
// article list. Empty filter fields match everything.
func (idx *Index) Query(filter record.Query) []*record.LegalRecord {
	candidates := idx.records
	if filter.Codigo != "" {
		candidates = idx.byCode[filter.Codigo]
	}

	results := []*record.LegalRecord{}
	for _, rec := range candidates {
		if filter.Artigo != "" && !rec.HasArticle(filter.Artigo) {
			continue
		}
		results = append(results, rec)
	}
	return results
}
