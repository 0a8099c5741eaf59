package method

import (
	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formula"
)

// =============================================================================
// SALE ADJUSTMENT GRID
// =============================================================================
//
// Column chain:
//   adjustedValue → totalSecondRevision → qualitative amounts →
//   totalAdjustAmt → totalAdjustValue → weightedAdjustValue
// Section chain:
//   finalValue = Σ weightedAdjustValue → roundedFinalValue →
//   appraisalPrice → appraisalPriceRounded

var saleGrid = KindSaleGrid.Sheet()

// BuildSaleGridSeedRules copy survey data into the grid's input cells.
func BuildSaleGridSeedRules(in Input) []derived.Rule {
	return seedRules(saleGrid, in)
}

// BuildSaleGridCalculationRules derive adjusted values and the second
// revision per column.
func BuildSaleGridCalculationRules(in Input) []derived.Rule {
	return append(adjustedValueRules(saleGrid, in), secondRevisionRules(saleGrid, in)...)
}

// BuildSaleGridQualitativeRules derive factor adjustments and column totals.
func BuildSaleGridQualitativeRules(in Input) []derived.Rule {
	return qualitativeRules(saleGrid, in)
}

// BuildSaleGridWeightRules seed equal weights and weight each column total.
//
// The default weight is 1/n. It is written while the cell is blank and clean,
// or whenever it leaves [0, 1]. Until then the weighted value falls back to
// the same 1/n, so the grid never weighs a column by an invalid number.
func BuildSaleGridWeightRules(in Input) []derived.Rule {
	n := len(in.Surveys)
	if n == 0 {
		return nil
	}
	equal := 1 / float64(n)

	rules := make([]derived.Rule, 0, 2*n)
	for c := 0; c < n; c++ {
		weight := saleGrid.Col(c, FieldWeight)
		total := saleGrid.Col(c, FieldTotalAdjustValue)
		rules = append(rules,
			derived.Rule{
				Target:  weight,
				When:    AutoDefault(weight, UnitInterval),
				Compute: constant(equal),
			},
			derived.Rule{
				Target: saleGrid.Col(c, FieldWeightedAdjustValue),
				Deps:   []fieldpath.Path{total, weight},
				Compute: numeric(func(s derived.Scope) float64 {
					return formula.CalcWeightedAdjustValue(s.Number(total), effectiveWeight(s, weight, equal))
				}),
			},
		)
	}
	return rules
}

// BuildSaleGridFinalRules sum the weighted column values and round.
func BuildSaleGridFinalRules(in Input) []derived.Rule {
	n := len(in.Surveys)
	weighted := saleGrid.Cols(n, FieldWeightedAdjustValue)
	weights := saleGrid.Cols(n, FieldWeight)

	rules := []derived.Rule{
		{
			Target: saleGrid.Line(FieldFinalValue),
			Deps:   weighted,
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcFinalValue(numbers(s, weighted))
			}),
		},
		{
			Target: saleGrid.Line(FieldTotalWeight),
			Deps:   weights,
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcSum(numbers(s, weights))
			}),
		},
	}
	return append(rules, roundingRules(saleGrid, in)...)
}

// BuildSaleGridRules returns the complete Sale Adjustment Grid rule set.
func BuildSaleGridRules(in Input) []derived.Rule {
	return concatRules(
		BuildSaleGridSeedRules(in),
		BuildSaleGridCalculationRules(in),
		BuildSaleGridQualitativeRules(in),
		BuildSaleGridWeightRules(in),
		BuildSaleGridFinalRules(in),
	)
}

// effectiveWeight is the typed weight when it is usable, else the equal
// share. A weight the user explicitly set to 0 stays 0.
func effectiveWeight(s derived.Scope, weight fieldpath.Path, equal float64) float64 {
	w := s.Number(weight)
	if w < 0 || w > 1 {
		return equal
	}
	if w == 0 && !s.Dirty(weight) {
		return equal
	}
	return w
}

func concatRules(sets ...[]derived.Rule) []derived.Rule {
	var out []derived.Rule
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
