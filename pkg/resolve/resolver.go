// Package resolve answers whether a (law code, article) pair makes a
// candidate ineligible, applying the exceptions listed in the matched
// record.
package resolve

import (
	"regexp"
	"strings"

	"github.com/coolbeans/inelegis/pkg/extract"
	"github.com/coolbeans/inelegis/pkg/normalize"
	"github.com/coolbeans/inelegis/pkg/query"
	"github.com/coolbeans/inelegis/pkg/record"
)

// ResolutionStatus indicates how a query was answered.
type ResolutionStatus string

const (
	// StatusIndexed means the record was found through the index.
	StatusIndexed ResolutionStatus = "indexed"
	// StatusFallback means the index had no candidate and the record was
	// found by re-reading the norma text of the full record set.
	StatusFallback ResolutionStatus = "fallback"
	// StatusNotFound means no rule applies: the candidate is presumed
	// eligible. This is not an error.
	StatusNotFound ResolutionStatus = "not_found"
	// StatusInvalidQuery means the law code was empty or the article
	// reference had no number.
	StatusInvalidQuery ResolutionStatus = "invalid_query"
)

// MotivoCaput is reported when an exception targets the head of the
// article ("Art. 121 caput").
const MotivoCaput = "caput"

var (
	exceptionMarkerPattern = regexp.MustCompile(`^arts?\b\.?\s*`)
	caputSuffixPattern     = regexp.MustCompile(`\s+caput$`)
	bareNumberPattern      = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})+|\d+)$`)
)

// Resolution is the outcome of Resolve. Verdict is nil unless Found.
type Resolution struct {
	Status  ResolutionStatus `json:"status"`
	Codigo  string           `json:"codigo"`
	Artigo  string           `json:"artigo"`
	Verdict *record.Verdict  `json:"verdict,omitempty"`
}

// Found reports whether a rule was matched.
func (r Resolution) Found() bool {
	return r.Verdict != nil
}

// Resolver matches queries against an index, falling back to a linear scan
// of the full record set when the index has no candidate.
type Resolver struct {
	index   *query.Index
	records []*record.LegalRecord
}

// New creates a resolver. records is the unfiltered set scanned by the
// fallback path; when nil, the index's own records are used.
func New(index *query.Index, records []*record.LegalRecord) *Resolver {
	if records == nil {
		records = index.Records()
	}
	return &Resolver{index: index, records: records}
}

// Resolve answers a query for codigo and artigo. The article may be given
// as "121", "Art. 121" or "121-A"; it is reduced to its number first. An
// empty codigo or an article without a number is an invalid query.
func (r *Resolver) Resolve(codigo, artigo string) Resolution {
	codigo = strings.TrimSpace(codigo)
	canonical, ok := extract.CanonicalArticle(artigo)
	if !ok || codigo == "" {
		return Resolution{Status: StatusInvalidQuery, Codigo: codigo, Artigo: strings.TrimSpace(artigo)}
	}

	res := Resolution{Codigo: codigo, Artigo: canonical}

	var matched *record.LegalRecord
	if candidates := r.index.Query(record.Query{Codigo: codigo, Artigo: canonical}); len(candidates) > 0 {
		matched = candidates[0]
		res.Status = StatusIndexed
	} else if rec := r.scan(codigo, canonical); rec != nil {
		matched = rec
		res.Status = StatusFallback
	} else {
		res.Status = StatusNotFound
		return res
	}

	inelegivel, motivo := EvaluateExceptions(matched, canonical)
	res.Verdict = &record.Verdict{
		Inelegivel: inelegivel,
		Record:     matched,
		Motivo:     motivo,
	}
	return res
}

// ResolveQuery is Resolve for a record.Query.
func (r *Resolver) ResolveQuery(q record.Query) Resolution {
	return r.Resolve(q.Codigo, q.Artigo)
}

// scan re-extracts articles from each record's norma, guarding against
// records whose article list is stale or missing.
func (r *Resolver) scan(codigo, artigo string) *record.LegalRecord {
	for _, rec := range r.records {
		if rec == nil || rec.Codigo != codigo {
			continue
		}
		for _, a := range extract.ExtractArticles(rec.Norma) {
			if a == artigo {
				return rec
			}
		}
	}
	return nil
}

// EvaluateExceptions checks the record's exceptions against the canonical
// article number. It returns inelegivel=false and the matching phrase (or
// MotivoCaput) when an exception names exactly that article. A phrase
// followed by a lone "caput" ("Art. 121, caput" split on its comma) counts
// as a caput exception.
func EvaluateExceptions(rec *record.LegalRecord, artigo string) (bool, string) {
	target := exceptionKey(extract.FormatArticle(artigo))
	for i, phrase := range rec.Excecoes {
		key := exceptionKey(phrase)
		if key == target {
			if i+1 < len(rec.Excecoes) && exceptionKey(rec.Excecoes[i+1]) == MotivoCaput {
				return false, MotivoCaput
			}
			return false, strings.TrimSpace(phrase)
		}
		if base := caputSuffixPattern.ReplaceAllString(key, ""); base != key && base == target {
			return false, MotivoCaput
		}
	}
	return true, ""
}

// exceptionKey normalizes an exception phrase for comparison: accents and
// case folded, trailing periods dropped, the article marker spelled "art. "
// and a bare article number canonicalized.
func exceptionKey(phrase string) string {
	key := strings.TrimRight(normalize.Normalize(phrase), ". ")
	loc := exceptionMarkerPattern.FindStringIndex(key)
	if loc == nil {
		return key
	}
	rest := key[loc[1]:]
	number, qualifier, _ := strings.Cut(rest, " ")
	if bareNumberPattern.MatchString(number) {
		if canonical, ok := extract.CanonicalArticle(number); ok {
			number = canonical
		}
	}
	if qualifier != "" {
		return "art. " + number + " " + qualifier
	}
	return "art. " + number
}
