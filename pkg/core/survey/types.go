// Package survey holds the read-only market data the appraisal methods work
// from: comparable surveys and the subject property.
package survey

import (
	"property_appraisal/pkg/core/factor"
)

// =============================================================================
// COLLATERAL TYPES
// =============================================================================

// CollateralType classifies the subject property.
type CollateralType string

const (
	CollateralLand            CollateralType = "LAND"
	CollateralLandAndBuilding CollateralType = "LAND_AND_BUILDING"
	CollateralCondo           CollateralType = "CONDO"
	CollateralBuilding        CollateralType = "BUILDING"
)

// HasSecondRevision reports whether area-difference compensation applies.
func (c CollateralType) HasSecondRevision() bool {
	return c == CollateralLandAndBuilding || c == CollateralCondo
}

// =============================================================================
// FACTOR CODES
// =============================================================================

// Code identifies a survey factor.
type Code string

// Factor codes read by the valuation rules. Qualitative factor rows may use
// any other code.
const (
	CodeLandArea          Code = "LAND_AREA"
	CodeUsableArea        Code = "USABLE_AREA"
	CodeOfferingPrice     Code = "OFFERING_PRICE"
	CodeSellingPrice      Code = "SELLING_PRICE"
	CodeNumberOfYears     Code = "NUMBER_OF_YEARS"
	CodeAdjustmentPerYear Code = "ADJUSTMENT_PER_YEAR_PCT"
	CodeSaleDate          Code = "SALE_DATE"
	CodeLocation          Code = "LOCATION"
)

// Factor is one stored factor entry.
type Factor struct {
	Code         Code            `json:"code" validate:"required"`
	DataType     factor.DataType `json:"dataType" validate:"required,datatype"`
	FieldDecimal int             `json:"fieldDecimal" validate:"gte=0,lte=10"`
	Value        string          `json:"value"`
}

// Raw returns the entry in the shape factor.Read expects.
func (f Factor) Raw() factor.Raw {
	return factor.Raw{DataType: f.DataType, FieldDecimal: f.FieldDecimal, Value: f.Value}
}

// Factors is an ordered factor collection. Lookups use the first entry with a
// matching code.
type Factors []Factor

// Lookup returns the entry for code.
func (fs Factors) Lookup(code Code) (Factor, bool) {
	for _, f := range fs {
		if f.Code == code {
			return f, true
		}
	}
	return Factor{}, false
}

// Has reports whether an entry exists for code.
func (fs Factors) Has(code Code) bool {
	_, ok := fs.Lookup(code)
	return ok
}

// Value returns the normalized value for code. Missing codes read as an
// empty text value.
func (fs Factors) Value(code Code) factor.Value {
	f, ok := fs.Lookup(code)
	if !ok {
		return factor.Str("")
	}
	return factor.Read(f.Raw())
}

// Number returns the numeric value for code, or 0.
func (fs Factors) Number(code Code) float64 {
	return fs.Value(code).Float()
}

// =============================================================================
// SURVEY & PROPERTY
// =============================================================================

// Survey is a comparable market data point. ID is the marketId; it is the
// stable identity used to keep a column's values across re-indexing.
type Survey struct {
	ID             string         `json:"id" validate:"required"`
	Name           string         `json:"name"`
	CollateralType CollateralType `json:"collateralType" validate:"omitempty,collateral"`
	Factors        Factors        `json:"factors" validate:"dive"`
}

// Property is the subject being appraised.
type Property struct {
	Name           string         `json:"name"`
	CollateralType CollateralType `json:"collateralType" validate:"required,collateral"`
	Factors        Factors        `json:"factors" validate:"dive"`
}

// IDs returns the marketIds of surveys in order.
func IDs(surveys []Survey) []string {
	ids := make([]string, len(surveys))
	for i, s := range surveys {
		ids[i] = s.ID
	}
	return ids
}
