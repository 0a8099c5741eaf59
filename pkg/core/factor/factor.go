// Package factor normalizes raw survey factor values according to their
// declared data type before they are used by the valuation rules.
package factor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DataType is the declared type of a survey factor.
type DataType string

const (
	DataTypeNumeric  DataType = "NUMERIC"
	DataTypeInteger  DataType = "INTEGER"
	DataTypeText     DataType = "TEXT"
	DataTypeDate     DataType = "DATE"
	DataTypeDropdown DataType = "DROPDOWN"
)

// DateLayout is the normalized representation of DATE factors.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"02/01/2006",
	"2/1/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// IsNumeric reports whether values of this type normalize to numbers.
func (d DataType) IsNumeric() bool {
	return d == DataTypeNumeric || d == DataTypeInteger
}

// Valid reports whether d belongs to the closed set of data types.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeNumeric, DataTypeInteger, DataTypeText, DataTypeDate, DataTypeDropdown:
		return true
	}
	return false
}

// Raw is a stored factor value together with its type descriptor.
type Raw struct {
	DataType     DataType `json:"dataType" yaml:"data_type"`
	FieldDecimal int      `json:"fieldDecimal" yaml:"field_decimal"`
	Value        string   `json:"value" yaml:"value"`
}

// Value is a normalized scalar: either a number or a string.
type Value struct {
	Number   float64
	Text     string
	IsNumber bool
}

// Num wraps a number.
func Num(f float64) Value { return Value{Number: f, IsNumber: true} }

// Str wraps a string.
func Str(s string) Value { return Value{Text: s} }

// Any returns the value in the shape the form tree stores.
func (v Value) Any() any {
	if v.IsNumber {
		return v.Number
	}
	return v.Text
}

// Float returns the numeric value, or 0 for text.
func (v Value) Float() float64 {
	if v.IsNumber {
		return v.Number
	}
	return 0
}

func (v Value) String() string {
	if v.IsNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// Read interprets r according to its data type.
//
// NUMERIC values are rounded to FieldDecimal places (no rounding when it is
// negative), INTEGER values are truncated, DATE values are normalized to
// DateLayout. Unparseable numbers fall back to 0 and unparseable dates or
// unknown types fall back to the original string. Read never fails.
func Read(r Raw) Value {
	raw := strings.TrimSpace(r.Value)
	switch r.DataType {
	case DataTypeNumeric:
		f, err := parseNumber(raw)
		if err != nil {
			return Num(0)
		}
		return Num(roundTo(f, r.FieldDecimal))
	case DataTypeInteger:
		f, err := parseNumber(raw)
		if err != nil {
			return Num(0)
		}
		return Num(math.Trunc(f))
	case DataTypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return Str(t.Format(DateLayout))
			}
		}
		return Str(r.Value)
	default:
		return Str(r.Value)
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite numeric value %q", s)
	}
	return f, nil
}

func roundTo(f float64, decimals int) float64 {
	if decimals < 0 {
		return f
	}
	if decimals > 10 {
		decimals = 10
	}
	scale := math.Pow(10, float64(decimals))
	scaled := f * scale
	if math.IsInf(scaled, 0) {
		return f
	}
	return math.Round(scaled) / scale
}
