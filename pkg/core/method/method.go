// Package method builds the derived-field rule sets of the three valuation
// methods: Sale Adjustment Grid, Direct Comparison and Weighted Quality
// Score (WQS).
//
// Every builder is a pure function of its Input. Column and row indices are
// baked into the target paths, so a change in the survey list or in the
// qualitative rows means building a fresh rule set.
package method

import (
	"fmt"
	"strings"

	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/survey"
)

// =============================================================================
// METHOD KINDS
// =============================================================================

// Kind identifies a valuation method.
type Kind string

const (
	KindSaleGrid Kind = "grid"
	KindDirect   Kind = "direct"
	KindWQS      Kind = "wqs"
)

// Kinds lists the supported methods.
var Kinds = []Kind{KindSaleGrid, KindDirect, KindWQS}

// ParseKind accepts a method name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSaleGrid, "salegrid", "sale-grid":
		return KindSaleGrid, nil
	case KindDirect, "directcomparison", "direct-comparison":
		return KindDirect, nil
	case KindWQS:
		return KindWQS, nil
	}
	return "", fmt.Errorf("unknown valuation method %q (want grid, direct or wqs)", s)
}

// Section returns the form-tree section the method writes to.
func (k Kind) Section() string {
	switch k {
	case KindSaleGrid:
		return "saleGrid"
	case KindDirect:
		return "directComparison"
	case KindWQS:
		return "wqs"
	}
	return string(k)
}

// Sheet returns the path helper for the method's section.
func (k Kind) Sheet() Sheet { return Sheet{Section: k.Section()} }

// Build returns the complete rule set of a method.
func Build(k Kind, in Input) ([]derived.Rule, error) {
	switch k {
	case KindSaleGrid:
		return BuildSaleGridRules(in), nil
	case KindDirect:
		return BuildDirectComparisonRules(in), nil
	case KindWQS:
		return BuildWQSRules(in), nil
	}
	return nil, fmt.Errorf("unknown valuation method %q", k)
}

// =============================================================================
// INPUT
// =============================================================================

// QualitativeRow is one factor row of the comparison table.
type QualitativeRow struct {
	Code  survey.Code `json:"code" yaml:"code"`
	Label string      `json:"label" yaml:"label"`
}

// Settings carries the tunable defaults of the rule sets.
type Settings struct {
	// DefaultOfferingAdjustPct seeds the offering-price discount of every
	// survey that has an offering price.
	DefaultOfferingAdjustPct float64
	// DefaultLevel seeds every qualitative cell.
	DefaultLevel string
	Levels       LevelTable
	// Granularity is the rounding step of the final value and the
	// appraisal price.
	Granularity float64
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultOfferingAdjustPct: 5,
		DefaultLevel:             LevelEqual,
		Levels:                   DefaultLevels(),
		Granularity:              1000,
	}
}

// Input is everything a builder needs. Surveys are the comparison columns
// in display order.
type Input struct {
	Surveys         []survey.Survey
	Property        survey.Property
	QualitativeRows []QualitativeRow
	Settings        Settings
}

// RowsFromCodes turns factor codes into qualitative rows labelled by code.
func RowsFromCodes(codes []survey.Code) []QualitativeRow {
	rows := make([]QualitativeRow, len(codes))
	for i, c := range codes {
		rows[i] = QualitativeRow{Code: c, Label: string(c)}
	}
	return rows
}

// =============================================================================
// PATHS
// =============================================================================

// GroupQualitative is the row group holding qualitative factors.
const GroupQualitative = "qualitativeFactors"

// Per-column cells.
const (
	FieldOfferingPrice            = "offeringPrice"
	FieldSellingPrice             = "sellingPrice"
	FieldNumberOfYears            = "numberOfYears"
	FieldAdjustmentPerYearPct     = "adjustmentPerYearPct"
	FieldLandArea                 = "landArea"
	FieldUsableArea               = "usableArea"
	FieldOfferingAdjustPct        = "offeringPriceAdjustmentPct"
	FieldOfferingAdjustAmt        = "offeringPriceAdjustmentAmt"
	FieldAdjustedValue            = "adjustedValue"
	FieldLandUnitPrice            = "landUnitPrice"
	FieldLandAreaDiff             = "landAreaDiff"
	FieldLandIncreaseDecrease     = "landAreaIncreaseDecrease"
	FieldBuildingUnitPrice        = "buildingUnitPrice"
	FieldUsableAreaDiff           = "usableAreaDiff"
	FieldBuildingIncreaseDecrease = "usableAreaIncreaseDecrease"
	FieldTotalSecondRevision      = "totalSecondRevision"
	FieldTotalAdjustPct           = "totalAdjustPct"
	FieldTotalAdjustAmt           = "totalAdjustAmt"
	FieldTotalAdjustValue         = "totalAdjustValue"
	FieldWeight                   = "weight"
	FieldWeightedAdjustValue      = "weightedAdjustValue"
	FieldWeightedScore            = "weightedScore"
)

// Qualitative row and row × column cells.
const (
	FieldLevel         = "level"
	FieldAdjustPct     = "adjustPct"
	FieldAdjustAmt     = "adjustAmt"
	FieldScore         = "score"
	FieldSurveyValue   = "surveyValue"
	FieldPropertyValue = "propertyValue"
	FieldPropertyScore = "propertyScore"
	FieldRowWeight     = "weight"
)

// Section-level lines.
const (
	FieldSubjectLandArea       = "subjectLandArea"
	FieldSubjectUsableArea     = "subjectUsableArea"
	FieldTotalWeight           = "totalWeight"
	FieldPropertyWeightedScore = "propertyWeightedScore"
	FieldFinalValue            = "finalValue"
	FieldRoundedFinalValue     = "roundedFinalValue"
	FieldAppraisalPrice        = "appraisalPrice"
	FieldAppraisalPriceRounded = "appraisalPriceRounded"
)

// Sheet spells the paths of one method section.
type Sheet struct {
	Section string
}

// Line addresses a section-level cell.
func (s Sheet) Line(field string) fieldpath.Path {
	return fieldpath.Field(s.Section, field)
}

// Col addresses a per-survey cell.
func (s Sheet) Col(col int, field string) fieldpath.Path {
	return fieldpath.Column(s.Section, col, field)
}

// Cols returns the per-survey cells of field for n columns.
func (s Sheet) Cols(n int, field string) []fieldpath.Path {
	paths := make([]fieldpath.Path, n)
	for c := range paths {
		paths[c] = s.Col(c, field)
	}
	return paths
}

// Row addresses a qualitative row cell that is not bound to a survey.
func (s Sheet) Row(row int, field string) fieldpath.Path {
	return fieldpath.Row(s.Section, GroupQualitative, row, field)
}

// Rows returns the row cells of field for n rows.
func (s Sheet) Rows(n int, field string) []fieldpath.Path {
	paths := make([]fieldpath.Path, n)
	for r := range paths {
		paths[r] = s.Row(r, field)
	}
	return paths
}

// Cell addresses a qualitative row × survey cell.
func (s Sheet) Cell(row, col int, field string) fieldpath.Path {
	return fieldpath.Cell(s.Section, GroupQualitative, row, col, field)
}

// RowCells returns the cells of field down one survey column.
func (s Sheet) RowCells(rows, col int, field string) []fieldpath.Path {
	paths := make([]fieldpath.Path, rows)
	for r := range paths {
		paths[r] = s.Cell(r, col, field)
	}
	return paths
}
