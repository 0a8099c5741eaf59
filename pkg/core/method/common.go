package method

import (
	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formula"
	"property_appraisal/pkg/core/survey"
)

// numeric adapts a float computation to a rule compute function.
func numeric(fn func(s derived.Scope) float64) derived.ComputeFunc {
	return func(s derived.Scope) (any, error) {
		return fn(s), nil
	}
}

func constant(v any) derived.ComputeFunc {
	return func(derived.Scope) (any, error) { return v, nil }
}

func numbers(s derived.Scope, paths []fieldpath.Path) []float64 {
	out := make([]float64, len(paths))
	for i, p := range paths {
		out[i] = s.Number(p)
	}
	return out
}

func concat(lists ...[]fieldpath.Path) []fieldpath.Path {
	var out []fieldpath.Path
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// =============================================================================
// SEEDS
// =============================================================================

var surveyInputs = []struct {
	field string
	code  survey.Code
}{
	{FieldOfferingPrice, survey.CodeOfferingPrice},
	{FieldSellingPrice, survey.CodeSellingPrice},
	{FieldNumberOfYears, survey.CodeNumberOfYears},
	{FieldAdjustmentPerYearPct, survey.CodeAdjustmentPerYear},
	{FieldLandArea, survey.CodeLandArea},
	{FieldUsableArea, survey.CodeUsableArea},
}

// seedRules copy survey and subject data into the input cells and seed the
// default offering-price discount. Seeds run once per bind and never replace
// a value the user corrected.
func seedRules(sh Sheet, in Input) []derived.Rule {
	var rules []derived.Rule
	for c, sv := range in.Surveys {
		for _, f := range surveyInputs {
			target := sh.Col(c, f.field)
			rules = append(rules, derived.Rule{
				Target:  target,
				When:    UnlessOverridden(target),
				Compute: constant(sv.Factors.Number(f.code)),
			})
		}

		offering := sh.Col(c, FieldOfferingPrice)
		pct := sh.Col(c, FieldOfferingAdjustPct)
		defaultPct := in.Settings.DefaultOfferingAdjustPct
		rules = append(rules, derived.Rule{
			Target: pct,
			Deps:   []fieldpath.Path{offering},
			When:   AutoDefault(pct, &Bound{Min: 0, Max: 100}),
			Compute: numeric(func(s derived.Scope) float64 {
				if s.Number(offering) > 0 {
					return defaultPct
				}
				return 0
			}),
		})
	}

	for _, f := range []struct {
		field string
		code  survey.Code
	}{
		{FieldSubjectLandArea, survey.CodeLandArea},
		{FieldSubjectUsableArea, survey.CodeUsableArea},
	} {
		target := sh.Line(f.field)
		rules = append(rules, derived.Rule{
			Target:  target,
			When:    UnlessOverridden(target),
			Compute: constant(in.Property.Factors.Number(f.code)),
		})
	}
	return rules
}

// =============================================================================
// ADJUSTED VALUE & SECOND REVISION
// =============================================================================

// adjustedValueRules derive each column's adjusted value. An offering price
// takes the percent-or-amount branch; otherwise a selling price takes the
// per-year time adjustment; otherwise the value is 0.
func adjustedValueRules(sh Sheet, in Input) []derived.Rule {
	rules := make([]derived.Rule, 0, len(in.Surveys))
	for c := range in.Surveys {
		offering := sh.Col(c, FieldOfferingPrice)
		pct := sh.Col(c, FieldOfferingAdjustPct)
		amt := sh.Col(c, FieldOfferingAdjustAmt)
		selling := sh.Col(c, FieldSellingPrice)
		years := sh.Col(c, FieldNumberOfYears)
		perYear := sh.Col(c, FieldAdjustmentPerYearPct)

		rules = append(rules, derived.Rule{
			Target: sh.Col(c, FieldAdjustedValue),
			Deps:   []fieldpath.Path{offering, pct, amt, selling, years, perYear},
			Compute: numeric(func(s derived.Scope) float64 {
				if price := s.Number(offering); price > 0 {
					return formula.CalcAdjustedValue(price, s.Number(pct), s.Number(amt))
				}
				if price := s.Number(selling); price > 0 {
					return formula.CalcAdjustedValueFromSellingPrice(price, s.Number(years), s.Number(perYear))
				}
				return 0
			}),
		})
	}
	return rules
}

// secondRevisionRules compensate land and usable-area differences for
// collateral types that carry a building. Other types pass the adjusted
// value straight through to the total second revision.
func secondRevisionRules(sh Sheet, in Input) []derived.Rule {
	var rules []derived.Rule
	withRevision := in.Property.CollateralType.HasSecondRevision()

	for c := range in.Surveys {
		adjusted := sh.Col(c, FieldAdjustedValue)
		total := sh.Col(c, FieldTotalSecondRevision)

		if !withRevision {
			rules = append(rules, derived.Rule{
				Target: total,
				Deps:   []fieldpath.Path{adjusted},
				Compute: numeric(func(s derived.Scope) float64 {
					return formula.CalcTotalSecondRevision(s.Number(adjusted), 0, 0)
				}),
			})
			continue
		}

		landDelta := sh.Col(c, FieldLandIncreaseDecrease)
		buildingDelta := sh.Col(c, FieldBuildingIncreaseDecrease)
		rules = append(rules, areaRules(sh, c, FieldSubjectLandArea, FieldLandArea, FieldLandAreaDiff, FieldLandUnitPrice, FieldLandIncreaseDecrease)...)
		rules = append(rules, areaRules(sh, c, FieldSubjectUsableArea, FieldUsableArea, FieldUsableAreaDiff, FieldBuildingUnitPrice, FieldBuildingIncreaseDecrease)...)
		rules = append(rules, derived.Rule{
			Target: total,
			Deps:   []fieldpath.Path{adjusted, buildingDelta, landDelta},
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcTotalSecondRevision(s.Number(adjusted), s.Number(buildingDelta), s.Number(landDelta))
			}),
		})
	}
	return rules
}

// areaRules build one compensation line: diff = subject − survey,
// amount = unit price × diff.
func areaRules(sh Sheet, c int, subjectField, surveyField, diffField, unitPriceField, amountField string) []derived.Rule {
	subject := sh.Line(subjectField)
	area := sh.Col(c, surveyField)
	diff := sh.Col(c, diffField)
	unitPrice := sh.Col(c, unitPriceField)
	return []derived.Rule{
		{
			Target: diff,
			Deps:   []fieldpath.Path{subject, area},
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcDiff(s.Number(subject), s.Number(area))
			}),
		},
		{
			Target: sh.Col(c, amountField),
			Deps:   []fieldpath.Path{unitPrice, diff},
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcIncreaseDecrease(s.Number(unitPrice), s.Number(diff))
			}),
		},
	}
}

// =============================================================================
// QUALITATIVE FACTORS
// =============================================================================

// qualitativeRules seed each factor row and derive the per-cell percent and
// amount from the chosen level, then the per-column totals.
func qualitativeRules(sh Sheet, in Input) []derived.Rule {
	var rules []derived.Rule
	levels := in.Settings.Levels
	defaultLevel := in.Settings.DefaultLevel

	for r, row := range in.QualitativeRows {
		rules = append(rules, derived.Rule{
			Target:  sh.Row(r, FieldPropertyValue),
			Compute: constant(in.Property.Factors.Value(row.Code).Any()),
		})

		for c, sv := range in.Surveys {
			level := sh.Cell(r, c, FieldLevel)
			pct := sh.Cell(r, c, FieldAdjustPct)
			amt := sh.Cell(r, c, FieldAdjustAmt)
			base := sh.Col(c, FieldTotalSecondRevision)

			rules = append(rules,
				derived.Rule{
					Target:  sh.Cell(r, c, FieldSurveyValue),
					Compute: constant(sv.Factors.Value(row.Code).Any()),
				},
				derived.Rule{
					Target:  level,
					When:    AutoDefault(level, nil),
					Compute: constant(defaultLevel),
				},
				derived.Rule{
					Target: pct,
					Deps:   []fieldpath.Path{level},
					When:   UnlessOverridden(pct),
					Compute: numeric(func(s derived.Scope) float64 {
						return levels.Percent(s.Text(level))
					}),
				},
				derived.Rule{
					Target: amt,
					Deps:   []fieldpath.Path{base, pct},
					When:   UnlessOverridden(amt),
					Compute: numeric(func(s derived.Scope) float64 {
						return formula.Round2(s.Number(base) * s.Number(pct) / 100)
					}),
				},
			)
		}
	}
	return append(rules, adjustmentTotalRules(sh, in)...)
}

// adjustmentTotalRules sum each column's factor percents and amounts and add
// the amounts to the total second revision.
func adjustmentTotalRules(sh Sheet, in Input) []derived.Rule {
	var rules []derived.Rule
	rows := len(in.QualitativeRows)
	for c := range in.Surveys {
		pcts := sh.RowCells(rows, c, FieldAdjustPct)
		amts := sh.RowCells(rows, c, FieldAdjustAmt)
		totalAmt := sh.Col(c, FieldTotalAdjustAmt)
		secondRevision := sh.Col(c, FieldTotalSecondRevision)

		rules = append(rules,
			derived.Rule{
				Target: sh.Col(c, FieldTotalAdjustPct),
				Deps:   pcts,
				Compute: numeric(func(s derived.Scope) float64 {
					return formula.CalcSum(numbers(s, pcts))
				}),
			},
			derived.Rule{
				Target: totalAmt,
				Deps:   amts,
				Compute: numeric(func(s derived.Scope) float64 {
					return formula.CalcSum(numbers(s, amts))
				}),
			},
			derived.Rule{
				Target: sh.Col(c, FieldTotalAdjustValue),
				Deps:   []fieldpath.Path{secondRevision, totalAmt},
				Compute: numeric(func(s derived.Scope) float64 {
					return formula.CalcTotalAdjustValue(s.Number(secondRevision), s.Number(totalAmt))
				}),
			},
		)
	}
	return rules
}

// =============================================================================
// ROUNDING & APPRAISAL PRICE
// =============================================================================

// roundingRules snap the final value, price the whole property and snap the
// price. Both rounded cells stop tracking once the user types over them.
func roundingRules(sh Sheet, in Input) []derived.Rule {
	final := sh.Line(FieldFinalValue)
	rounded := sh.Line(FieldRoundedFinalValue)
	land := sh.Line(FieldSubjectLandArea)
	usable := sh.Line(FieldSubjectUsableArea)
	price := sh.Line(FieldAppraisalPrice)
	priceRounded := sh.Line(FieldAppraisalPriceRounded)
	g := in.Settings.Granularity

	return []derived.Rule{
		{
			Target: rounded,
			Deps:   []fieldpath.Path{final},
			When:   UnlessOverridden(rounded),
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.FloorToGranularity(s.Number(final), g)
			}),
		},
		{
			Target: price,
			Deps:   []fieldpath.Path{rounded, land, usable},
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.CalcAppraisalPrice(s.Number(rounded), s.Number(land), s.Number(usable))
			}),
		},
		{
			Target: priceRounded,
			Deps:   []fieldpath.Path{price},
			When:   UnlessOverridden(priceRounded),
			Compute: numeric(func(s derived.Scope) float64 {
				return formula.FloorToGranularity(s.Number(price), g)
			}),
		},
	}
}
