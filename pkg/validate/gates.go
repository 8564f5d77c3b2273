package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/coolbeans/inelegis/pkg/extract"
	"github.com/coolbeans/inelegis/pkg/normalize"
	"github.com/coolbeans/inelegis/pkg/record"
	"github.com/coolbeans/inelegis/pkg/resolve"
)

func newResult(gate ValidationGate) *GateResult {
	return &GateResult{
		Gate:     gate.Name(),
		Metrics:  make(map[string]float64),
		Warnings: make([]GateWarning, 0),
		Errors:   make([]GateError, 0),
	}
}

func finish(result *GateResult, ctx *ValidationContext, gate ValidationGate, start time.Time) *GateResult {
	evaluateMetrics(result, ctx.Config, gate)
	result.Duration = time.Since(start)
	return result
}

// IngestionGate (V0) checks that the sources produced records and that few
// rows were skipped.
type IngestionGate struct{}

// NewIngestionGate creates the V0 gate.
func NewIngestionGate() *IngestionGate { return &IngestionGate{} }

// Name returns "V0".
func (g *IngestionGate) Name() string { return "V0" }

// Thresholds returns the V0 defaults.
func (g *IngestionGate) Thresholds() map[string]float64 {
	return map[string]float64{
		"has_records": 1.0,
		"row_yield":   0.95,
	}
}

// Run computes has_records and row_yield (records over records plus
// skipped rows).
func (g *IngestionGate) Run(ctx *ValidationContext) *GateResult {
	start := time.Now()
	result := newResult(g)
	sess := ctx.Session

	records := len(sess.Records)
	if records > 0 {
		result.Metrics["has_records"] = 1.0
	} else {
		result.Metrics["has_records"] = 0.0
	}
	result.Metrics["row_yield"] = ratio(records, records+len(sess.Issues))

	for _, issue := range sess.Issues {
		result.Findings = append(result.Findings, issue.String())
	}
	return finish(result, ctx, g, start)
}

// StructureGate (V1) checks that normas name a recognizable law and cite
// at least one article.
type StructureGate struct{}

// NewStructureGate creates the V1 gate.
func NewStructureGate() *StructureGate { return &StructureGate{} }

// Name returns "V1".
func (g *StructureGate) Name() string { return "V1" }

// Thresholds returns the V1 defaults.
func (g *StructureGate) Thresholds() map[string]float64 {
	return map[string]float64{
		"law_recognition":  0.90,
		"article_coverage": 0.90,
	}
}

// Run computes law_recognition and article_coverage over all records.
func (g *StructureGate) Run(ctx *ValidationContext) *GateResult {
	start := time.Now()
	result := newResult(g)

	recognized, covered := 0, 0
	for _, rec := range ctx.Session.Records {
		if rec.Codigo != record.UnknownLawCode {
			recognized++
		} else {
			result.Findings = append(result.Findings, fmt.Sprintf("unrecognized law: %q", rec.Norma))
		}
		if len(rec.Artigos) > 0 {
			covered++
		} else {
			result.Findings = append(result.Findings, fmt.Sprintf("no article numbers: %q", rec.Norma))
		}
	}

	total := len(ctx.Session.Records)
	result.Metrics["law_recognition"] = ratio(recognized, total)
	result.Metrics["article_coverage"] = ratio(covered, total)
	return finish(result, ctx, g, start)
}

// ExceptionGate (V2) checks that exceptions name articles the record
// actually cites. An exception for an article the record does not cite can
// never lift a verdict.
type ExceptionGate struct{}

// NewExceptionGate creates the V2 gate.
func NewExceptionGate() *ExceptionGate { return &ExceptionGate{} }

// Name returns "V2".
func (g *ExceptionGate) Name() string { return "V2" }

// Thresholds returns the V2 defaults.
func (g *ExceptionGate) Thresholds() map[string]float64 {
	return map[string]float64{
		"exception_targets": 0.80,
	}
}

// Run computes exception_targets: the share of exception phrases that name
// at least one article of their record.
func (g *ExceptionGate) Run(ctx *ValidationContext) *GateResult {
	start := time.Now()
	result := newResult(g)

	total, targeted := 0, 0
	for _, rec := range ctx.Session.Records {
		for _, phrase := range rec.Excecoes {
			// A lone "caput" qualifies the phrase before it.
			if strings.Trim(normalize.Normalize(phrase), ". ") == resolve.MotivoCaput {
				continue
			}
			total++
			if namesRecordArticle(rec, phrase) {
				targeted++
				continue
			}
			result.Findings = append(result.Findings,
				fmt.Sprintf("%s: exception %q names no article of %q", rec.Codigo, phrase, rec.Norma))
		}
	}

	result.Metrics["exception_targets"] = ratio(targeted, total)
	return finish(result, ctx, g, start)
}

func namesRecordArticle(rec *record.LegalRecord, phrase string) bool {
	if !extract.HasArticleMarker(phrase) {
		if canonical, ok := extract.CanonicalArticle(phrase); ok {
			return rec.HasArticle(canonical)
		}
		return false
	}
	for _, artigo := range extract.ExtractArticles(phrase) {
		if rec.HasArticle(artigo) {
			return true
		}
	}
	return false
}

// ReachabilityGate (V3) checks that each article a record cites resolves to
// that record. A query returns the first matching record, so an article
// repeated in a later row of the same law is shadowed.
type ReachabilityGate struct{}

// NewReachabilityGate creates the V3 gate.
func NewReachabilityGate() *ReachabilityGate { return &ReachabilityGate{} }

// Name returns "V3".
func (g *ReachabilityGate) Name() string { return "V3" }

// Thresholds returns the V3 defaults.
func (g *ReachabilityGate) Thresholds() map[string]float64 {
	return map[string]float64{
		"article_reachability": 0.90,
	}
}

// Run resolves every (code, article) pair cited by the table.
func (g *ReachabilityGate) Run(ctx *ValidationContext) *GateResult {
	start := time.Now()
	result := newResult(g)
	resolver := ctx.Session.Resolver

	total, reachable := 0, 0
	for _, rec := range ctx.Session.Records {
		for _, artigo := range rec.Artigos {
			total++
			res := resolver.Resolve(rec.Codigo, artigo)
			if res.Found() && res.Verdict.Record == rec {
				reachable++
				continue
			}
			result.Findings = append(result.Findings,
				fmt.Sprintf("%s Art. %s of %q is shadowed by an earlier record", rec.Codigo, artigo, rec.Norma))
		}
	}

	result.Metrics["article_reachability"] = ratio(reachable, total)
	return finish(result, ctx, g, start)
}
