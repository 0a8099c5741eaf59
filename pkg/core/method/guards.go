package method

import (
	"strings"

	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formula"
)

// Bound is an inclusive sane range for an auto-defaulted number.
type Bound struct {
	Min, Max float64
}

// Contains reports whether x lies within the bound.
func (b Bound) Contains(x float64) bool {
	return x >= b.Min && x <= b.Max
}

// UnitInterval bounds weights.
var UnitInterval = &Bound{Min: 0, Max: 1}

// AutoDefault lets a rule seed target while the user has not typed a value:
// it passes when the current value is blank (unset, empty or zero) and not
// dirty, or when a bound is given and the value lies outside it.
func AutoDefault(target fieldpath.Path, bound *Bound) derived.Guard {
	return func(s derived.Scope) bool {
		v := s.Value(target)
		if blank(v) {
			return !s.Dirty(target)
		}
		return bound != nil && !bound.Contains(formula.ToNumber(v))
	}
}

// UnlessOverridden lets a rule keep target in step with its inputs until the
// user edits target.
func UnlessOverridden(target fieldpath.Path) derived.Guard {
	return func(s derived.Scope) bool {
		return !s.Dirty(target)
	}
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return formula.ToNumber(v) == 0
	}
}
