// Package validate scores a loaded table session through a pipeline of
// quality gates. Each gate computes ratios in [0, 1] and compares them to
// thresholds; a table that loads fine can still fail a gate when, for
// example, most of its normas name no recognizable law.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coolbeans/inelegis/pkg/session"
)

// ValidationGate is one checkpoint of the pipeline.
type ValidationGate interface {
	// Name returns the gate identifier ("V0" to "V3").
	Name() string

	// Run evaluates the gate against the context.
	Run(ctx *ValidationContext) *GateResult

	// Thresholds returns the default minimum score per metric.
	Thresholds() map[string]float64
}

// ValidationContext is the data gates evaluate.
type ValidationContext struct {
	Session *session.Session
	Config  *ValidationConfig
}

// ValidationConfig holds user settings for gate execution.
type ValidationConfig struct {
	// Thresholds overrides per-gate thresholds, keyed "Gate.metric"
	// (e.g. "V1.law_recognition").
	Thresholds map[string]float64

	// SkipGates lists gate names to skip.
	SkipGates []string

	// StrictMode halts the pipeline on the first failed gate.
	StrictMode bool

	// FailOnWarn halts the pipeline on any warning.
	FailOnWarn bool
}

// DefaultValidationConfig returns a config with no overrides.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		Thresholds: make(map[string]float64),
		SkipGates:  make([]string, 0),
	}
}

// GateResult is the outcome of one gate.
type GateResult struct {
	Gate       string             `json:"gate"`
	Passed     bool               `json:"passed"`
	Score      float64            `json:"score"`
	Metrics    map[string]float64 `json:"metrics"`
	Warnings   []GateWarning      `json:"warnings,omitempty"`
	Errors     []GateError        `json:"errors,omitempty"`
	Findings   []string           `json:"findings,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Skipped    bool               `json:"skipped,omitempty"`
	SkipReason string             `json:"skip_reason,omitempty"`
}

// GateWarning is a metric close to its threshold.
type GateWarning struct {
	Metric  string  `json:"metric"`
	Message string  `json:"message"`
	Value   float64 `json:"value,omitempty"`
}

// GateError is a metric below its threshold.
type GateError struct {
	Metric  string  `json:"metric"`
	Message string  `json:"message"`
	Value   float64 `json:"value,omitempty"`
}

// GateReport aggregates the results of a pipeline run.
type GateReport struct {
	Results      []*GateResult `json:"results"`
	OverallPass  bool          `json:"overall_pass"`
	TotalScore   float64       `json:"total_score"`
	GatesPassed  int           `json:"gates_passed"`
	GatesFailed  int           `json:"gates_failed"`
	GatesSkipped int           `json:"gates_skipped"`
	Duration     time.Duration `json:"duration"`
	HaltedAt     string        `json:"halted_at,omitempty"`
}

// ToJSON serializes the report as indented JSON.
func (gateReport *GateReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(gateReport, "", "  ")
}

// maxFindingsShown caps the findings String prints per gate.
const maxFindingsShown = 10

// String returns a human-readable report.
func (gateReport *GateReport) String() string {
	var b strings.Builder

	b.WriteString("Table Validation Report\n")
	b.WriteString("=======================\n\n")

	for _, result := range gateReport.Results {
		status := "PASS"
		if result.Skipped {
			status = "SKIP"
		} else if !result.Passed {
			status = "FAIL"
		}

		fmt.Fprintf(&b, "[%s] Gate %s (score: %.1f%%)\n", status, result.Gate, result.Score*100)
		if result.Skipped {
			fmt.Fprintf(&b, "  Reason: %s\n", result.SkipReason)
		}
		for _, name := range sortedMetricNames(result.Metrics) {
			fmt.Fprintf(&b, "  %s: %.1f%%\n", name, result.Metrics[name]*100)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  WARNING [%s]: %s\n", w.Metric, w.Message)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "  ERROR [%s]: %s\n", e.Metric, e.Message)
		}
		for i, finding := range result.Findings {
			if i == maxFindingsShown {
				fmt.Fprintf(&b, "  ... and %d more\n", len(result.Findings)-maxFindingsShown)
				break
			}
			fmt.Fprintf(&b, "  - %s\n", finding)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Summary: %d passed, %d failed, %d skipped\n",
		gateReport.GatesPassed, gateReport.GatesFailed, gateReport.GatesSkipped)
	fmt.Fprintf(&b, "Overall Score: %.1f%%\n", gateReport.TotalScore*100)

	overall := "PASS"
	if !gateReport.OverallPass {
		overall = "FAIL"
	}
	fmt.Fprintf(&b, "Status: %s\n", overall)
	if gateReport.HaltedAt != "" {
		fmt.Fprintf(&b, "Pipeline halted at: %s\n", gateReport.HaltedAt)
	}

	return b.String()
}

// GatePipeline runs gates in registration order.
type GatePipeline struct {
	gates  []ValidationGate
	config *ValidationConfig
}

// NewGatePipeline creates a pipeline. A nil config uses the defaults.
func NewGatePipeline(config *ValidationConfig) *GatePipeline {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &GatePipeline{
		gates:  make([]ValidationGate, 0),
		config: config,
	}
}

// RegisterGate appends a gate.
func (gatePipeline *GatePipeline) RegisterGate(gate ValidationGate) {
	gatePipeline.gates = append(gatePipeline.gates, gate)
}

// RegisterDefaultGates registers the four standard gates (V0-V3).
func (gatePipeline *GatePipeline) RegisterDefaultGates() {
	gatePipeline.RegisterGate(NewIngestionGate())
	gatePipeline.RegisterGate(NewStructureGate())
	gatePipeline.RegisterGate(NewExceptionGate())
	gatePipeline.RegisterGate(NewReachabilityGate())
}

// Run executes every registered gate against sess.
func (gatePipeline *GatePipeline) Run(sess *session.Session) *GateReport {
	start := time.Now()
	ctx := &ValidationContext{Session: sess, Config: gatePipeline.config}

	report := &GateReport{
		Results:     make([]*GateResult, 0, len(gatePipeline.gates)),
		OverallPass: true,
	}

	for _, gate := range gatePipeline.gates {
		if gatePipeline.isGateSkipped(gate.Name()) {
			report.Results = append(report.Results, &GateResult{
				Gate:       gate.Name(),
				Skipped:    true,
				SkipReason: "skipped by configuration",
				Metrics:    make(map[string]float64),
			})
			report.GatesSkipped++
			continue
		}

		result := gate.Run(ctx)
		report.Results = append(report.Results, result)

		if result.Passed {
			report.GatesPassed++
		} else {
			report.GatesFailed++
			report.OverallPass = false
			if gatePipeline.config.StrictMode {
				report.HaltedAt = gate.Name()
				break
			}
		}

		if gatePipeline.config.FailOnWarn && len(result.Warnings) > 0 {
			report.OverallPass = false
			report.HaltedAt = gate.Name()
			break
		}
	}

	scored := 0
	total := 0.0
	for _, result := range report.Results {
		if !result.Skipped {
			total += result.Score
			scored++
		}
	}
	if scored > 0 {
		report.TotalScore = total / float64(scored)
	}

	report.Duration = time.Since(start)
	return report
}

func (gatePipeline *GatePipeline) isGateSkipped(name string) bool {
	for _, skip := range gatePipeline.config.SkipGates {
		if strings.EqualFold(skip, name) {
			return true
		}
	}
	return false
}

// effectiveThreshold prefers a config override over the gate default.
func effectiveThreshold(config *ValidationConfig, gate ValidationGate, metric string) float64 {
	if config != nil && config.Thresholds != nil {
		if threshold, ok := config.Thresholds[gate.Name()+"."+metric]; ok {
			return threshold
		}
	}
	if threshold, ok := gate.Thresholds()[metric]; ok {
		return threshold
	}
	return 0.80
}

// evaluateMetrics scores the result and records warnings (within 10% of a
// threshold) and errors (below it).
func evaluateMetrics(result *GateResult, config *ValidationConfig, gate ValidationGate) {
	if len(result.Metrics) == 0 {
		result.Score = 1.0
		result.Passed = true
		return
	}

	total := 0.0
	passed := true
	for _, name := range sortedMetricNames(result.Metrics) {
		value := result.Metrics[name]
		threshold := effectiveThreshold(config, gate, name)
		total += value

		if value < threshold {
			passed = false
			result.Errors = append(result.Errors, GateError{
				Metric:  name,
				Message: fmt.Sprintf("%s (%.1f%%) below threshold (%.1f%%)", name, value*100, threshold*100),
				Value:   value,
			})
		} else if value < threshold*1.1 && value < 1.0 {
			result.Warnings = append(result.Warnings, GateWarning{
				Metric:  name,
				Message: fmt.Sprintf("%s (%.1f%%) close to threshold (%.1f%%)", name, value*100, threshold*100),
				Value:   value,
			})
		}
	}

	result.Score = total / float64(len(result.Metrics))
	result.Passed = passed
}

func sortedMetricNames(metrics map[string]float64) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ratio returns part/whole, or 1 when whole is zero.
func ratio(part, whole int) float64 {
	if whole == 0 {
		return 1.0
	}
	return float64(part) / float64(whole)
}
