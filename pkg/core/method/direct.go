package method

import (
	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/formula"
)

// =============================================================================
// DIRECT COMPARISON
// =============================================================================
//
// Same column chain as the Sale Adjustment Grid without weighting: the final
// value is the plain sum of the column totals.

var directComparison = KindDirect.Sheet()

// BuildDirectComparisonSeedRules copy survey data into the input cells.
func BuildDirectComparisonSeedRules(in Input) []derived.Rule {
	return seedRules(directComparison, in)
}

// BuildDirectComparisonCalculationRules derive adjusted values and the
// second revision per column.
func BuildDirectComparisonCalculationRules(in Input) []derived.Rule {
	return append(adjustedValueRules(directComparison, in), secondRevisionRules(directComparison, in)...)
}

// BuildDirectComparisonQualitativeRules derive factor adjustments and
// column totals.
func BuildDirectComparisonQualitativeRules(in Input) []derived.Rule {
	return qualitativeRules(directComparison, in)
}

// BuildDirectComparisonFinalRules sum the column totals and round.
func BuildDirectComparisonFinalRules(in Input) []derived.Rule {
	totals := directComparison.Cols(len(in.Surveys), FieldTotalAdjustValue)
	final := derived.Rule{
		Target: directComparison.Line(FieldFinalValue),
		Deps:   totals,
		Compute: numeric(func(s derived.Scope) float64 {
			return formula.CalcFinalValue(numbers(s, totals))
		}),
	}
	return append([]derived.Rule{final}, roundingRules(directComparison, in)...)
}

// BuildDirectComparisonRules returns the complete Direct Comparison rule set.
func BuildDirectComparisonRules(in Input) []derived.Rule {
	return concatRules(
		BuildDirectComparisonSeedRules(in),
		BuildDirectComparisonCalculationRules(in),
		BuildDirectComparisonQualitativeRules(in),
		BuildDirectComparisonFinalRules(in),
	)
}
