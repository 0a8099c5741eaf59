// Package formula provides the deterministic calculations behind every
// appraisal method: price adjustment, area compensation, aggregation,
// rounding and the regression forecast used by WQS.
//
// Every function is total. NaN, ±Inf, empty input and zero denominators all
// degrade to 0 so that no non-finite number ever reaches the form tree.
package formula

import (
	"math"
	"strconv"
	"strings"
)

// =============================================================================
// COERCION & ROUNDING
// =============================================================================

// ToNumber coerces a form value into a finite float64.
// Strings are trimmed and may carry thousands separators ("1,250.50").
// Anything that cannot be read as a finite number yields 0.
func ToNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	return finite(f)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(x float64) float64 {
	x = finite(x)
	return finite(math.Round(x*100) / 100)
}

// FloorToGranularity snaps x down to a multiple of granularity.
//
// FORMULA: floor(x / g) × g
//
// A non-positive granularity leaves x unchanged. Applying the function to
// its own output returns the same value.
func FloorToGranularity(x, granularity float64) float64 {
	x = finite(x)
	if granularity <= 0 || math.IsNaN(granularity) || math.IsInf(granularity, 0) {
		return x
	}
	// The epsilon absorbs representation error on exact multiples
	// (e.g. 0.3 / 0.1 = 2.9999999999999996).
	q := x / granularity
	return finite(math.Floor(q+1e-9+math.Abs(q)*1e-12) * granularity)
}

// =============================================================================
// ADJUSTED VALUE
// =============================================================================

// CalcAdjustedValue adjusts an offering price.
//
// FORMULA:
//
//	pct > 0  → price − price × pct / 100
//	amt > 0  → amt            (absolute override, not a delta)
//	else     → price
//
// Percent and amount are mutually exclusive; percent wins.
func CalcAdjustedValue(offeringPrice, pct, amt float64) float64 {
	offeringPrice, pct, amt = finite(offeringPrice), finite(pct), finite(amt)
	switch {
	case pct > 0:
		return finite(offeringPrice - offeringPrice*pct/100)
	case amt > 0:
		return amt
	default:
		return offeringPrice
	}
}

// CalcAdjustedValueFromSellingPrice grows a historical selling price by a
// per-year time adjustment.
//
// FORMULA: price + price × years × pctPerYear / 100
func CalcAdjustedValueFromSellingPrice(sellingPrice, years, pctPerYear float64) float64 {
	sellingPrice, years, pctPerYear = finite(sellingPrice), finite(years), finite(pctPerYear)
	return finite(sellingPrice + sellingPrice*years*pctPerYear/100)
}

// =============================================================================
// SECOND REVISION (AREA COMPENSATION)
// =============================================================================

// CalcDiff returns a − b.
func CalcDiff(a, b float64) float64 {
	return finite(finite(a) - finite(b))
}

// CalcIncreaseDecrease prices an area difference.
//
// FORMULA: unitPrice × diff
func CalcIncreaseDecrease(unitPrice, diff float64) float64 {
	return finite(finite(unitPrice) * finite(diff))
}

// CalcTotalSecondRevision adds both area compensations to the adjusted value.
//
// FORMULA: adjustedValue + buildingDelta + landDelta
func CalcTotalSecondRevision(adjustedValue, buildingDelta, landDelta float64) float64 {
	return finite(finite(adjustedValue) + finite(buildingDelta) + finite(landDelta))
}

// =============================================================================
// AGGREGATION
// =============================================================================

// CalcSum sums values and rounds to two decimals.
func CalcSum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += finite(v)
	}
	return Round2(total)
}

// CalcTotalAdjustValue applies the summed factor amounts.
//
// FORMULA: totalSecondRevision + totalAmountAdjustment (additive)
func CalcTotalAdjustValue(totalSecondRevision, totalAmtAdjustment float64) float64 {
	return finite(finite(totalSecondRevision) + finite(totalAmtAdjustment))
}

// CalcWeightedAdjustValue scales a column total by its weight.
//
// FORMULA: total × weight
func CalcWeightedAdjustValue(total, weight float64) float64 {
	return finite(finite(total) * finite(weight))
}

// CalcFinalValue sums the per-column contributions (Sale Grid and Direct
// Comparison).
//
// FORMULA: Σ values
func CalcFinalValue(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += finite(v)
	}
	return finite(total)
}

// CalcWeightedScore aggregates a column of factor scores.
//
// FORMULA: Σ score_i × weight_i
//
// Extra entries in the longer slice are ignored.
func CalcWeightedScore(scores, weights []float64) float64 {
	n := len(scores)
	if len(weights) < n {
		n = len(weights)
	}
	var total float64
	for i := 0; i < n; i++ {
		total += finite(scores[i]) * finite(weights[i])
	}
	return finite(total)
}

// CalcAppraisalPrice converts a rounded per-unit value into a price for the
// whole property.
//
// FORMULA:
//
//	landArea > 0   → rounded × landArea
//	usableArea > 0 → rounded × usableArea
//	else           → rounded
func CalcAppraisalPrice(rounded, landArea, usableArea float64) float64 {
	rounded, landArea, usableArea = finite(rounded), finite(landArea), finite(usableArea)
	switch {
	case landArea > 0:
		return finite(rounded * landArea)
	case usableArea > 0:
		return finite(rounded * usableArea)
	default:
		return rounded
	}
}

// =============================================================================
// REGRESSION FORECAST (WQS)
// =============================================================================

// Forecast predicts y at x from a least-squares line through the known
// points, like a spreadsheet FORECAST.
//
// FORMULA:
//
//	b = Σ(xᵢ − x̄)(yᵢ − ȳ) / Σ(xᵢ − x̄)²
//	a = ȳ − b·x̄
//	y = a + b·x
//
// Points are paired by index; pairs with a non-finite member are skipped.
// Fewer than two usable pairs, or a zero x-variance, yields 0.
func Forecast(x float64, knownYs, knownXs []float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	n := len(knownYs)
	if len(knownXs) < n {
		n = len(knownXs)
	}

	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !isFinite(knownXs[i]) || !isFinite(knownYs[i]) {
			continue
		}
		xs = append(xs, knownXs[i])
		ys = append(ys, knownYs[i])
	}
	if len(xs) < 2 {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(len(xs))
	meanY := sumY / float64(len(ys))

	var num, den float64
	for i := range xs {
		dx := xs[i] - meanX
		num += dx * (ys[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}

	slope := num / den
	intercept := meanY - slope*meanX
	return finite(intercept + slope*x)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finite(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	return x
}
