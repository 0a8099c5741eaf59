package formula

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestCalcAdjustedValue(t *testing.T) {
	tests := []struct {
		name           string
		price, pct, am float64
		want           float64
	}{
		{"percent wins over amount", 1000, 10, 50, 900},
		{"amount is an absolute override", 1000, 0, 300, 300},
		{"neither set keeps price", 1000, 0, 0, 1000},
		{"negative percent ignored", 1000, -5, 0, 1000},
		{"default five percent", 22750, 5, 0, 21612.5},
		{"nan inputs degrade", math.NaN(), math.NaN(), math.Inf(1), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CalcAdjustedValue(tc.price, tc.pct, tc.am)
			if !approx(got, tc.want) {
				t.Errorf("CalcAdjustedValue(%v, %v, %v) = %v, want %v", tc.price, tc.pct, tc.am, got, tc.want)
			}
		})
	}
}

func TestCalcAdjustedValueFromSellingPrice(t *testing.T) {
	got := CalcAdjustedValueFromSellingPrice(21500, 10, 3)
	if !approx(got, 27950) {
		t.Errorf("expected 27950, got %v", got)
	}
	if got := CalcAdjustedValueFromSellingPrice(21500, 0, 3); !approx(got, 21500) {
		t.Errorf("zero years should keep the price, got %v", got)
	}
}

func TestSecondRevision(t *testing.T) {
	diff := CalcDiff(100, 80)
	if diff != 20 {
		t.Fatalf("CalcDiff = %v, want 20", diff)
	}
	delta := CalcIncreaseDecrease(1500, diff)
	if delta != 30000 {
		t.Errorf("CalcIncreaseDecrease = %v, want 30000", delta)
	}
	if got := CalcTotalSecondRevision(1_000_000, -5000, delta); got != 1_025_000 {
		t.Errorf("CalcTotalSecondRevision = %v, want 1025000", got)
	}
}

func TestAggregation(t *testing.T) {
	if got := CalcSum([]float64{0.1, 0.2}); got != 0.3 {
		t.Errorf("CalcSum should absorb float noise, got %v", got)
	}
	if got := CalcSum(nil); got != 0 {
		t.Errorf("CalcSum(nil) = %v", got)
	}
	if got := CalcSum([]float64{1, math.NaN(), 2}); got != 3 {
		t.Errorf("CalcSum should skip NaN, got %v", got)
	}
	if got := CalcTotalAdjustValue(21000, -1500); got != 19500 {
		t.Errorf("CalcTotalAdjustValue = %v", got)
	}
	if got := CalcWeightedAdjustValue(21612.5, 0.5); !approx(got, 10806.25) {
		t.Errorf("CalcWeightedAdjustValue = %v", got)
	}
	if got := CalcFinalValue([]float64{10806.25, 13975}); !approx(got, 24781.25) {
		t.Errorf("CalcFinalValue = %v, want 24781.25", got)
	}
	if got := CalcFinalValue(nil); got != 0 {
		t.Errorf("CalcFinalValue(nil) = %v", got)
	}
}

func TestWeightConvergence(t *testing.T) {
	n := 4
	weight := 1 / float64(n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += weight
		if got := CalcWeightedAdjustValue(1000, weight); !approx(got, 250) {
			t.Errorf("column %d weighted value = %v, want 250", i, got)
		}
	}
	if !approx(sum, 1) {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func TestCalcWeightedScore(t *testing.T) {
	got := CalcWeightedScore([]float64{5, 7, 3}, []float64{0.5, 0.3})
	if !approx(got, 4.6) {
		t.Errorf("CalcWeightedScore = %v, want 4.6", got)
	}
}

func TestCalcAppraisalPrice(t *testing.T) {
	if got := CalcAppraisalPrice(20000, 50, 120); got != 1_000_000 {
		t.Errorf("land area branch = %v", got)
	}
	if got := CalcAppraisalPrice(20000, 0, 120); got != 2_400_000 {
		t.Errorf("usable area branch = %v", got)
	}
	if got := CalcAppraisalPrice(20000, 0, 0); got != 20000 {
		t.Errorf("no area branch = %v", got)
	}
}

func TestRounding(t *testing.T) {
	if got := Round2(21612.499); got != 21612.5 {
		t.Errorf("Round2 = %v", got)
	}
	if got := FloorToGranularity(24781.25, 10000); got != 20000 {
		t.Errorf("FloorToGranularity = %v, want 20000", got)
	}
	if got := FloorToGranularity(1234567, 1000); got != 1234000 {
		t.Errorf("FloorToGranularity = %v, want 1234000", got)
	}
	if got := FloorToGranularity(-1500, 1000); got != -2000 {
		t.Errorf("FloorToGranularity negative = %v, want -2000", got)
	}
	if got := FloorToGranularity(123.45, 0); got != 123.45 {
		t.Errorf("zero granularity should be identity, got %v", got)
	}
}

func TestFloorToGranularityIdempotent(t *testing.T) {
	inputs := [][]float64{
		{24781.25, 13975.5},
		{999999.99},
		{0.3},
		{1e9 + 12345},
	}
	for _, g := range []float64{0.1, 1, 100, 1000, 10000} {
		for _, in := range inputs {
			once := FloorToGranularity(CalcFinalValue(in), g)
			twice := FloorToGranularity(once, g)
			if once != twice {
				t.Errorf("granularity %v: %v → %v → %v is not idempotent", g, CalcFinalValue(in), once, twice)
			}
		}
	}
}

func TestForecast(t *testing.T) {
	if got := Forecast(4, []float64{2, 4, 6}, []float64{1, 2, 3}); !approx(got, 8) {
		t.Errorf("Forecast on a perfect line = %v, want 8", got)
	}
	if got := Forecast(2, []float64{10, 30}, []float64{1, 3}); !approx(got, 20) {
		t.Errorf("Forecast two points = %v, want 20", got)
	}
	// least squares through (1,1) (2,3) (3,2): slope 0.5, intercept 1
	if got := Forecast(4, []float64{1, 3, 2}, []float64{1, 2, 3}); !approx(got, 3) {
		t.Errorf("Forecast regression = %v, want 3", got)
	}
}

func TestForecastDegenerate(t *testing.T) {
	cases := map[string]float64{
		"no points":     Forecast(5, nil, nil),
		"one point":     Forecast(5, []float64{10}, []float64{1}),
		"one finite":    Forecast(5, []float64{10, math.NaN()}, []float64{1, 2}),
		"zero variance": Forecast(5, []float64{10, 20}, []float64{3, 3}),
		"nan x":         Forecast(math.NaN(), []float64{10, 20}, []float64{1, 2}),
	}
	for name, got := range cases {
		if got != 0 {
			t.Errorf("%s: Forecast = %v, want 0", name, got)
		}
	}
}

func TestToNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{nil, 0},
		{12.5, 12.5},
		{7, 7},
		{int64(9), 9},
		{" 1,250.50 ", 1250.5},
		{"", 0},
		{"abc", 0},
		{"NaN", 0},
		{math.Inf(-1), 0},
		{true, 0},
	}
	for _, tc := range cases {
		if got := ToNumber(tc.in); got != tc.want {
			t.Errorf("ToNumber(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
