package method

import (
	"io"
	"log"
	"testing"

	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/factor"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formstate"
	"property_appraisal/pkg/core/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(code survey.Code, v string) survey.Factor {
	return survey.Factor{Code: code, DataType: factor.DataTypeNumeric, FieldDecimal: 2, Value: v}
}

func text(code survey.Code, v string) survey.Factor {
	return survey.Factor{Code: code, DataType: factor.DataTypeText, Value: v}
}

func offering(id, price string) survey.Survey {
	return survey.Survey{ID: id, Factors: survey.Factors{num(survey.CodeOfferingPrice, price)}}
}

// bind builds the method's rules on a fresh store and binds a strict engine.
func bind(t *testing.T, k Kind, in Input) (*formstate.Store, *derived.Engine) {
	t.Helper()
	rules, err := Build(k, in)
	require.NoError(t, err)

	form := formstate.NewStore()
	e, err := derived.New(form, rules, derived.WithStrictReads(), derived.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)

	report := e.Bind()
	require.Empty(t, report.Failures)
	require.Empty(t, report.UndeclaredReads)
	t.Cleanup(e.Close)
	return form, e
}

func number(t *testing.T, form *formstate.Store, p fieldpath.Path) float64 {
	t.Helper()
	v, ok := form.Read(p).(float64)
	require.True(t, ok, "%s holds %T", p, form.Read(p))
	return v
}

func TestSaleGrid_EndToEnd(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLandAndBuilding},
		Surveys: []survey.Survey{
			offering("m-1", "22750"),
			{ID: "m-2", Factors: survey.Factors{
				num(survey.CodeSellingPrice, "21500"),
				num(survey.CodeNumberOfYears, "10"),
				num(survey.CodeAdjustmentPerYear, "3"),
			}},
		},
		Settings: DefaultSettings(),
	}
	form, _ := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	assert.Equal(t, 5.0, number(t, form, sh.Col(0, FieldOfferingAdjustPct)))
	assert.Equal(t, 21612.5, number(t, form, sh.Col(0, FieldAdjustedValue)))
	assert.Equal(t, 27950.0, number(t, form, sh.Col(1, FieldAdjustedValue)))
	assert.Equal(t, 0.5, number(t, form, sh.Col(0, FieldWeight)))
	assert.Equal(t, 0.5, number(t, form, sh.Col(1, FieldWeight)))
	assert.Equal(t, 1.0, number(t, form, sh.Line(FieldTotalWeight)))
	assert.Equal(t, 24781.25, number(t, form, sh.Line(FieldFinalValue)))
	assert.Equal(t, 24000.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
	assert.Equal(t, 24000.0, number(t, form, sh.Line(FieldAppraisalPrice)))
	assert.Equal(t, 24000.0, number(t, form, sh.Line(FieldAppraisalPriceRounded)))
}

func TestSaleGrid_ChainedPropagation(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLandAndBuilding},
		Surveys:  []survey.Survey{offering("a", "1000"), offering("b", "2000"), offering("c", "3000")},
		Settings: DefaultSettings(),
	}
	form, e := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	watched := []fieldpath.Path{
		sh.Col(2, FieldAdjustedValue),
		sh.Col(2, FieldTotalSecondRevision),
		sh.Col(2, FieldTotalAdjustValue),
		sh.Line(FieldFinalValue),
	}
	var order []fieldpath.Path
	form.Subscribe(watched, func(p fieldpath.Path) { order = append(order, p) })

	form.Set(sh.Col(2, FieldOfferingAdjustPct), 10.0)

	assert.Equal(t, watched, order)
	assert.Equal(t, 2700.0, number(t, form, sh.Col(2, FieldAdjustedValue)))
	assert.InDelta(t, (950.0+1900.0+2700.0)/3, number(t, form, sh.Line(FieldFinalValue)), 1e-9)
	assert.Empty(t, e.LastPass().UndeclaredReads)
}

func TestSaleGrid_AmountOverride(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLand},
		Surveys:  []survey.Survey{offering("a", "1000")},
		Settings: DefaultSettings(),
	}
	form, _ := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	form.Set(sh.Col(0, FieldOfferingAdjustAmt), 300.0)
	assert.Equal(t, 950.0, number(t, form, sh.Col(0, FieldAdjustedValue)), "percent wins over amount")

	form.Set(sh.Col(0, FieldOfferingAdjustPct), 0.0)
	assert.Equal(t, 300.0, number(t, form, sh.Col(0, FieldAdjustedValue)), "amount replaces the price")
	assert.Equal(t, 300.0, number(t, form, sh.Line(FieldFinalValue)))
}

func TestSaleGrid_WeightDefaults(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLand},
		Surveys: []survey.Survey{
			offering("a", "100"), offering("b", "200"), offering("c", "300"), offering("d", "400"),
		},
		Settings: Settings{Levels: DefaultLevels(), Granularity: 1},
	}
	form, e := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	for c := 0; c < 4; c++ {
		assert.Equal(t, 0.25, number(t, form, sh.Col(c, FieldWeight)))
	}
	assert.Equal(t, 1.0, number(t, form, sh.Line(FieldTotalWeight)))
	assert.Equal(t, 250.0, number(t, form, sh.Line(FieldFinalValue)))

	form.Set(sh.Col(0, FieldWeight), 1.5)
	assert.Equal(t, 25.0, number(t, form, sh.Col(0, FieldWeightedAdjustValue)), "out-of-range weight falls back to 1/n")

	e.Refresh()
	assert.Equal(t, 0.25, number(t, form, sh.Col(0, FieldWeight)), "out-of-range weight is re-seeded")

	form.Set(sh.Col(1, FieldWeight), 0.0)
	assert.Equal(t, 0.0, number(t, form, sh.Col(1, FieldWeightedAdjustValue)), "typed zero weight is kept")
	e.Refresh()
	assert.Equal(t, 0.0, number(t, form, sh.Col(1, FieldWeight)))
}

func TestSaleGrid_OverridesSurviveRecomputation(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLand},
		Surveys:  []survey.Survey{offering("a", "1000"), offering("b", "3000")},
		Settings: DefaultSettings(),
	}
	form, e := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	form.Set(sh.Col(0, FieldWeight), 0.7)
	form.Set(sh.Col(1, FieldWeight), 0.3)
	form.Set(sh.Line(FieldRoundedFinalValue), 1500.0)
	form.Set(sh.Col(0, FieldOfferingPrice), 2000.0)

	assert.Equal(t, 0.7, number(t, form, sh.Col(0, FieldWeight)))
	assert.InDelta(t, 0.7*1900+0.3*2850, number(t, form, sh.Line(FieldFinalValue)), 1e-9)
	assert.Equal(t, 1500.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
	assert.Equal(t, 1500.0, number(t, form, sh.Line(FieldAppraisalPrice)))

	e.Refresh()
	assert.Equal(t, 0.7, number(t, form, sh.Col(0, FieldWeight)))
	assert.Equal(t, 1500.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
	assert.Equal(t, 2000.0, number(t, form, sh.Col(0, FieldOfferingPrice)), "seed keeps the corrected price")
}

func TestSaleGrid_RoundedValuesTrackFinalUntilTyped(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLand},
		Surveys:  []survey.Survey{offering("a", "1000"), offering("b", "3000")},
		Settings: DefaultSettings(),
	}
	form, _ := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()
	require.Equal(t, 1000.0, number(t, form, sh.Line(FieldRoundedFinalValue)))

	form.Set(sh.Col(1, FieldOfferingPrice), 5000.0)
	assert.InDelta(t, 2850.0, number(t, form, sh.Line(FieldFinalValue)), 1e-9)
	assert.Equal(t, 2000.0, number(t, form, sh.Line(FieldRoundedFinalValue)), "clean rounded value is recomputed")
	assert.Equal(t, 2000.0, number(t, form, sh.Line(FieldAppraisalPriceRounded)))

	form.Set(sh.Line(FieldAppraisalPriceRounded), 2500.0)
	form.Set(sh.Col(1, FieldOfferingPrice), 7000.0)
	assert.Equal(t, 3000.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
	assert.Equal(t, 2500.0, number(t, form, sh.Line(FieldAppraisalPriceRounded)), "typed price is kept")
}

func TestSaleGrid_QualitativeLevels(t *testing.T) {
	in := Input{
		Property: survey.Property{
			CollateralType: survey.CollateralLand,
			Factors:        survey.Factors{text(survey.CodeLocation, "Side street")},
		},
		Surveys: []survey.Survey{{ID: "a", Factors: survey.Factors{
			num(survey.CodeOfferingPrice, "1000"),
			text(survey.CodeLocation, "Main road"),
		}}},
		QualitativeRows: RowsFromCodes([]survey.Code{survey.CodeLocation}),
		Settings:        DefaultSettings(),
	}
	form, _ := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	assert.Equal(t, LevelEqual, form.Read(sh.Cell(0, 0, FieldLevel)))
	assert.Equal(t, "Main road", form.Read(sh.Cell(0, 0, FieldSurveyValue)))
	assert.Equal(t, "Side street", form.Read(sh.Row(0, FieldPropertyValue)))
	assert.Equal(t, 0.0, number(t, form, sh.Cell(0, 0, FieldAdjustPct)))

	form.Set(sh.Cell(0, 0, FieldLevel), LevelWorse)
	assert.Equal(t, 5.0, number(t, form, sh.Cell(0, 0, FieldAdjustPct)))
	assert.Equal(t, 47.5, number(t, form, sh.Cell(0, 0, FieldAdjustAmt)))
	assert.Equal(t, 47.5, number(t, form, sh.Col(0, FieldTotalAdjustAmt)))
	assert.Equal(t, 997.5, number(t, form, sh.Col(0, FieldTotalAdjustValue)))
	assert.Equal(t, 997.5, number(t, form, sh.Line(FieldFinalValue)))

	form.Set(sh.Cell(0, 0, FieldAdjustAmt), 100.0)
	form.Set(sh.Cell(0, 0, FieldLevel), LevelMuchWorse)
	assert.Equal(t, 10.0, number(t, form, sh.Col(0, FieldTotalAdjustPct)))
	assert.Equal(t, 100.0, number(t, form, sh.Cell(0, 0, FieldAdjustAmt)), "typed amount survives a level change")
	assert.Equal(t, 1050.0, number(t, form, sh.Col(0, FieldTotalAdjustValue)))
}

func TestSaleGrid_SecondRevision(t *testing.T) {
	settings := DefaultSettings()
	settings.DefaultOfferingAdjustPct = 0
	in := Input{
		Property: survey.Property{
			CollateralType: survey.CollateralLandAndBuilding,
			Factors:        survey.Factors{num(survey.CodeLandArea, "100"), num(survey.CodeUsableArea, "50")},
		},
		Surveys: []survey.Survey{{ID: "a", Factors: survey.Factors{
			num(survey.CodeOfferingPrice, "1000"),
			num(survey.CodeLandArea, "80"),
			num(survey.CodeUsableArea, "60"),
		}}},
		Settings: settings,
	}
	form, _ := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	assert.Equal(t, 20.0, number(t, form, sh.Col(0, FieldLandAreaDiff)))
	assert.Equal(t, -10.0, number(t, form, sh.Col(0, FieldUsableAreaDiff)))

	form.Set(sh.Col(0, FieldLandUnitPrice), 10.0)
	form.Set(sh.Col(0, FieldBuildingUnitPrice), 5.0)
	assert.Equal(t, 200.0, number(t, form, sh.Col(0, FieldLandIncreaseDecrease)))
	assert.Equal(t, -50.0, number(t, form, sh.Col(0, FieldBuildingIncreaseDecrease)))
	assert.Equal(t, 1150.0, number(t, form, sh.Col(0, FieldTotalSecondRevision)))
	assert.Equal(t, 1000.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
	assert.Equal(t, 100000.0, number(t, form, sh.Line(FieldAppraisalPrice)), "priced by land area first")
}

func TestSaleGrid_LandHasNoSecondRevision(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralLand},
		Surveys:  []survey.Survey{offering("a", "1000")},
		Settings: DefaultSettings(),
	}
	form, e := bind(t, KindSaleGrid, in)
	sh := KindSaleGrid.Sheet()

	assert.Nil(t, form.Read(sh.Col(0, FieldLandAreaDiff)))
	assert.Equal(t, 950.0, number(t, form, sh.Col(0, FieldTotalSecondRevision)))
	for _, r := range e.Rules() {
		assert.NotEqual(t, sh.Col(0, FieldLandIncreaseDecrease), r.Target)
	}
}

func TestDirectComparison_SumsColumnTotals(t *testing.T) {
	in := Input{
		Property: survey.Property{CollateralType: survey.CollateralCondo},
		Surveys: []survey.Survey{
			offering("a", "1000"),
			{ID: "b", Factors: survey.Factors{
				num(survey.CodeSellingPrice, "500"),
				num(survey.CodeNumberOfYears, "2"),
				num(survey.CodeAdjustmentPerYear, "10"),
			}},
		},
		Settings: DefaultSettings(),
	}
	form, e := bind(t, KindDirect, in)
	sh := KindDirect.Sheet()

	assert.Equal(t, 950.0, number(t, form, sh.Col(0, FieldAdjustedValue)))
	assert.Equal(t, 600.0, number(t, form, sh.Col(1, FieldAdjustedValue)))
	assert.Equal(t, 1550.0, number(t, form, sh.Line(FieldFinalValue)))
	assert.Equal(t, 1000.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
	assert.Nil(t, form.Read(sh.Col(0, FieldWeight)))
	for _, r := range e.Rules() {
		assert.NotEqual(t, sh.Col(0, FieldWeightedAdjustValue), r.Target)
	}
}

func TestWQS_Forecast(t *testing.T) {
	settings := DefaultSettings()
	settings.DefaultOfferingAdjustPct = 0
	settings.Granularity = 10
	in := Input{
		Property:        survey.Property{CollateralType: survey.CollateralLand},
		Surveys:         []survey.Survey{offering("a", "100"), offering("b", "200"), {ID: "c"}},
		QualitativeRows: RowsFromCodes([]survey.Code{survey.CodeLocation}),
		Settings:        settings,
	}
	form, _ := bind(t, KindWQS, in)
	sh := KindWQS.Sheet()

	assert.Equal(t, 1.0, number(t, form, sh.Row(0, FieldRowWeight)))
	assert.Equal(t, 1.0, number(t, form, sh.Line(FieldTotalWeight)))
	assert.Equal(t, 0.0, number(t, form, sh.Line(FieldFinalValue)), "all scores equal: zero variance")

	form.Set(sh.Cell(0, 0, FieldScore), 2.0)
	form.Set(sh.Cell(0, 1, FieldScore), 4.0)
	form.Set(sh.Cell(0, 2, FieldScore), 9.0)
	form.Set(sh.Row(0, FieldPropertyScore), 3.0)

	assert.Equal(t, 3.0, number(t, form, sh.Line(FieldPropertyWeightedScore)))
	assert.InDelta(t, 150.0, number(t, form, sh.Line(FieldFinalValue)), 1e-9, "survey without a price is not a point")
	assert.Equal(t, 150.0, number(t, form, sh.Line(FieldRoundedFinalValue)))
}

func TestWQS_FewerThanTwoPoints(t *testing.T) {
	in := Input{
		Property:        survey.Property{CollateralType: survey.CollateralLand},
		Surveys:         []survey.Survey{offering("a", "100"), {ID: "b"}},
		QualitativeRows: RowsFromCodes([]survey.Code{survey.CodeLocation}),
		Settings:        DefaultSettings(),
	}
	form, e := bind(t, KindWQS, in)
	sh := KindWQS.Sheet()

	form.Set(sh.Cell(0, 0, FieldScore), 2.0)
	form.Set(sh.Cell(0, 1, FieldScore), 4.0)
	form.Set(sh.Row(0, FieldPropertyScore), 3.0)
	assert.Equal(t, 0.0, number(t, form, sh.Line(FieldFinalValue)))
	assert.Empty(t, e.LastPass().Failures)
}

func TestWQS_SecondRevision(t *testing.T) {
	settings := DefaultSettings()
	settings.DefaultOfferingAdjustPct = 0
	in := Input{
		Property: survey.Property{
			CollateralType: survey.CollateralLandAndBuilding,
			Factors:        survey.Factors{num(survey.CodeLandArea, "100"), num(survey.CodeUsableArea, "50")},
		},
		Surveys: []survey.Survey{{ID: "a", Factors: survey.Factors{
			num(survey.CodeOfferingPrice, "1000"),
			num(survey.CodeLandArea, "80"),
			num(survey.CodeUsableArea, "60"),
		}}},
		QualitativeRows: RowsFromCodes([]survey.Code{survey.CodeLocation}),
		Settings:        settings,
	}
	form, _ := bind(t, KindWQS, in)
	sh := KindWQS.Sheet()

	assert.Equal(t, 20.0, number(t, form, sh.Col(0, FieldLandAreaDiff)))
	assert.Equal(t, -10.0, number(t, form, sh.Col(0, FieldUsableAreaDiff)))
	assert.Equal(t, 1000.0, number(t, form, sh.Col(0, FieldTotalSecondRevision)))
	assert.Equal(t, 1000.0, number(t, form, sh.Col(0, FieldTotalAdjustValue)))

	form.Set(sh.Col(0, FieldLandUnitPrice), 10.0)
	form.Set(sh.Col(0, FieldBuildingUnitPrice), 5.0)
	assert.Equal(t, 1150.0, number(t, form, sh.Col(0, FieldTotalSecondRevision)))
	assert.Equal(t, 1150.0, number(t, form, sh.Col(0, FieldTotalAdjustValue)))
	assert.Equal(t, 0.0, number(t, form, sh.Col(0, FieldTotalAdjustPct)))
	assert.Equal(t, 1000.0, number(t, form, sh.Col(0, FieldAdjustedValue)), "forecast input stays the adjusted value")
}

// Every guard and compute must read only what its rule declares.
func TestRuleSets_DeclareEveryRead(t *testing.T) {
	in := Input{
		Property: survey.Property{
			CollateralType: survey.CollateralLandAndBuilding,
			Factors:        survey.Factors{num(survey.CodeLandArea, "120"), num(survey.CodeUsableArea, "90")},
		},
		Surveys: []survey.Survey{
			{ID: "a", Factors: survey.Factors{num(survey.CodeOfferingPrice, "1000"), num(survey.CodeLandArea, "100")}},
			{ID: "b", Factors: survey.Factors{num(survey.CodeSellingPrice, "800"), num(survey.CodeNumberOfYears, "1")}},
		},
		QualitativeRows: RowsFromCodes([]survey.Code{survey.CodeLocation, "ACCESS"}),
		Settings:        DefaultSettings(),
	}

	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			form, e := bind(t, k, in)
			sh := k.Sheet()

			form.Set(sh.Col(0, FieldOfferingAdjustPct), 7.5)
			assert.Empty(t, e.LastPass().UndeclaredReads)
			form.Set(sh.Col(1, FieldLandUnitPrice), 3.0)
			assert.Empty(t, e.LastPass().UndeclaredReads)
			form.Set(sh.Cell(1, 0, FieldLevel), LevelBetter)
			assert.Empty(t, e.LastPass().UndeclaredReads)
			form.Set(sh.Cell(0, 1, FieldScore), 4.0)
			assert.Empty(t, e.LastPass().UndeclaredReads)

			report := e.Refresh()
			assert.Empty(t, report.UndeclaredReads)
			assert.Empty(t, report.Failures)
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"grid": KindSaleGrid, " WQS ": KindWQS, "direct-comparison": KindDirect} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("cost")
	assert.Error(t, err)

	_, err = Build("cost", Input{})
	assert.Error(t, err)
}

func TestLevelTable(t *testing.T) {
	levels := DefaultLevels()
	assert.Equal(t, -10.0, levels.Percent("mb"))
	assert.Equal(t, 5.0, levels.Percent(LevelWorse))
	assert.Equal(t, 0.0, levels.Percent("??"))
}
