package method

import (
	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formula"
)

// =============================================================================
// WEIGHTED QUALITY SCORE
// =============================================================================
//
// Each qualitative row carries a weight and a score per comparable plus a
// score for the subject. A comparable's weighted score is its x, its
// adjusted value is its y; the final value is the least-squares line through
// those points evaluated at the subject's weighted score.

var wqs = KindWQS.Sheet()

// BuildWQSSeedRules copy survey data into the input cells.
func BuildWQSSeedRules(in Input) []derived.Rule {
	return seedRules(wqs, in)
}

// BuildWQSCalculationRules derive each comparable's adjusted value, its
// area compensation and its adjustment totals.
func BuildWQSCalculationRules(in Input) []derived.Rule {
	return concatRules(
		adjustedValueRules(wqs, in),
		secondRevisionRules(wqs, in),
		adjustmentTotalRules(wqs, in),
	)
}

// BuildWQSScoreRules seed equal row weights and derive the weighted scores.
func BuildWQSScoreRules(in Input) []derived.Rule {
	rows := len(in.QualitativeRows)
	weights := wqs.Rows(rows, FieldRowWeight)

	var rules []derived.Rule
	if rows > 0 {
		equal := 1 / float64(rows)
		for r := range in.QualitativeRows {
			weight := wqs.Row(r, FieldRowWeight)
			rules = append(rules, derived.Rule{
				Target:  weight,
				When:    AutoDefault(weight, UnitInterval),
				Compute: constant(equal),
			})
		}
	}

	for c := range in.Surveys {
		scores := wqs.RowCells(rows, c, FieldScore)
		rules = append(rules, weightedScoreRule(wqs.Col(c, FieldWeightedScore), scores, weights))
	}

	rules = append(rules,
		weightedScoreRule(wqs.Line(FieldPropertyWeightedScore), wqs.Rows(rows, FieldPropertyScore), weights),
		derived.Rule{
			Target: wqs.Line(FieldTotalWeight),
			Deps:   weights,
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcSum(numbers(s, weights))
			}),
		},
	)
	return rules
}

func weightedScoreRule(target fieldpath.Path, scores, weights []fieldpath.Path) derived.Rule {
	return derived.Rule{
		Target: target,
		Deps:   concat(scores, weights),
		Compute: numeric(func(s derived.Scope) float64 {
			return formula.CalcWeightedScore(numbers(s, scores), numbers(s, weights))
		}),
	}
}

// BuildWQSFinalRules forecast the subject's value and round.
//
// A comparable contributes a point only when its adjusted value is positive.
// With fewer than two points the final value is 0.
func BuildWQSFinalRules(in Input) []derived.Rule {
	n := len(in.Surveys)
	ys := wqs.Cols(n, FieldAdjustedValue)
	xs := wqs.Cols(n, FieldWeightedScore)
	subject := wqs.Line(FieldPropertyWeightedScore)

	final := derived.Rule{
		Target: wqs.Line(FieldFinalValue),
		Deps:   concat(ys, xs, []fieldpath.Path{subject}),
		Compute: numeric(func(s derived.Scope) float64 {
			knownYs := make([]float64, 0, n)
			knownXs := make([]float64, 0, n)
			for c := 0; c < n; c++ {
				y := s.Number(ys[c])
				if y <= 0 {
					continue
				}
				knownYs = append(knownYs, y)
				knownXs = append(knownXs, s.Number(xs[c]))
			}
			if len(knownYs) < 2 {
				return 0
			}
			return formula.Forecast(s.Number(subject), knownYs, knownXs)
		}),
	}
	return append([]derived.Rule{final}, roundingRules(wqs, in)...)
}

// BuildWQSRules returns the complete WQS rule set.
func BuildWQSRules(in Input) []derived.Rule {
	return concatRules(
		BuildWQSSeedRules(in),
		BuildWQSCalculationRules(in),
		BuildWQSScoreRules(in),
		BuildWQSFinalRules(in),
	)
}
