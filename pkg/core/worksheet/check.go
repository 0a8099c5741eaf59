package worksheet

import (
	"fmt"
	"math"

	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formula"
	"property_appraisal/pkg/core/method"
)

// =============================================================================
// CONSISTENCY CHECKS
// =============================================================================

// DefaultTolerance is the absolute tolerance of the weight check.
const DefaultTolerance = 1e-6

// CheckReport collects the consistency checks of one worksheet.
type CheckReport struct {
	Method       method.Kind    `json:"method"`
	Weights      *WeightCheck   `json:"weights,omitempty"`
	Rounding     *RoundingCheck `json:"rounding"`
	AllPassed    bool           `json:"all_passed"`
	FailedChecks []string       `json:"failed_checks,omitempty"`
}

// WeightCheck validates: Σ weights == 1 (Sale Grid columns, WQS rows).
type WeightCheck struct {
	Sum        float64 `json:"sum"`
	Difference float64 `json:"difference"`
	Tolerance  float64 `json:"tolerance"`
	Passed     bool    `json:"passed"`
}

// RoundingCheck validates: rounded == floor(final / granularity) × granularity,
// unless the user typed the rounded value.
type RoundingCheck struct {
	FinalValue  float64 `json:"final_value"`
	Rounded     float64 `json:"rounded"`
	Expected    float64 `json:"expected"`
	Overridden  bool    `json:"overridden"`
	Passed      bool    `json:"passed"`
	Granularity float64 `json:"granularity"`
}

// Check runs every check that applies to the worksheet's method.
func (w *Worksheet) Check(tolerance float64) *CheckReport {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	report := &CheckReport{Method: w.Kind, AllPassed: true}

	// 1. Weights
	switch w.Kind {
	case method.KindSaleGrid:
		if len(w.surveys) > 0 {
			report.Weights = w.checkWeights(w.sheet.Cols(len(w.surveys), method.FieldWeight), tolerance)
		}
	case method.KindWQS:
		if len(w.rows) > 0 {
			report.Weights = w.checkWeights(w.sheet.Rows(len(w.rows), method.FieldRowWeight), tolerance)
		}
	}
	if report.Weights != nil && !report.Weights.Passed {
		report.AllPassed = false
		report.FailedChecks = append(report.FailedChecks, fmt.Sprintf("Σ weights = %.4f, want 1", report.Weights.Sum))
	}

	// 2. Rounding
	report.Rounding = w.checkRounding()
	if !report.Rounding.Passed {
		report.AllPassed = false
		report.FailedChecks = append(report.FailedChecks, "rounded final value does not match the final value")
	}

	return report
}

func (w *Worksheet) checkWeights(paths []fieldpath.Path, tolerance float64) *WeightCheck {
	var sum float64
	for _, p := range paths {
		sum += w.Number(p)
	}
	diff := sum - 1
	return &WeightCheck{
		Sum:        sum,
		Difference: diff,
		Tolerance:  tolerance,
		Passed:     math.Abs(diff) <= tolerance,
	}
}

func (w *Worksheet) checkRounding() *RoundingCheck {
	final := w.Number(w.sheet.Line(method.FieldFinalValue))
	roundedPath := w.sheet.Line(method.FieldRoundedFinalValue)
	c := &RoundingCheck{
		FinalValue:  final,
		Rounded:     w.Number(roundedPath),
		Expected:    formula.FloorToGranularity(final, w.settings.Granularity),
		Overridden:  w.Dirty(roundedPath),
		Granularity: w.settings.Granularity,
	}
	c.Passed = c.Overridden || c.Rounded == c.Expected
	return c
}
