// Package derived keeps computed form cells consistent with their inputs.
//
// A Rule declares a target cell, the cells whose change should re-run it, an
// optional guard and a compute function. The Engine subscribes to the form,
// and each change runs one synchronous pass: triggered rules are evaluated in
// dependency order and their writes trigger dependents within the same pass.
package derived

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formstate"
)

// Form is the capability set the engine needs from the form tree.
// *formstate.Store implements it.
type Form interface {
	Read(p fieldpath.Path) any
	Write(p fieldpath.Path, v any, origin formstate.Origin)
	IsDirty(p fieldpath.Path) bool
	Subscribe(paths []fieldpath.Path, fn func(fieldpath.Path)) (unsubscribe func())
}

// Scope is the read-only view handed to guards and compute functions.
type Scope interface {
	Value(p fieldpath.Path) any
	Number(p fieldpath.Path) float64
	Text(p fieldpath.Path) string
	Dirty(p fieldpath.Path) bool
}

// Guard decides whether a triggered rule may write its target this pass.
type Guard func(s Scope) bool

// ComputeFunc returns the new value for a rule's target.
type ComputeFunc func(s Scope) (any, error)

// Rule is one derived cell.
//
// Empty Deps means the rule runs once, when the engine is bound. Compute
// must only read Deps and its own Target; strict mode reports anything else.
type Rule struct {
	Target  fieldpath.Path
	Deps    []fieldpath.Path
	When    Guard
	Compute ComputeFunc
}

// Eager reports whether the rule runs at bind time.
func (r Rule) Eager() bool { return len(r.Deps) == 0 }

var (
	ErrNilCompute      = errors.New("rule has no compute function")
	ErrEmptyTarget     = errors.New("rule has no target")
	ErrDuplicateTarget = errors.New("two rules target the same path")
	ErrSelfDependency  = errors.New("rule depends on its own target")
	ErrCycle           = errors.New("rule dependencies form a cycle")
)

// Validate checks a rule list and returns it in evaluation order: every rule
// comes after the rules that produce its dependencies. Ties keep the input
// order.
func Validate(rules []Rule) ([]Rule, error) {
	producer := make(map[fieldpath.Path]int, len(rules))
	for i, r := range rules {
		if r.Target == "" {
			return nil, fmt.Errorf("rule %d: %w", i, ErrEmptyTarget)
		}
		if r.Compute == nil {
			return nil, fmt.Errorf("%s: %w", r.Target, ErrNilCompute)
		}
		if prev, ok := producer[r.Target]; ok {
			return nil, fmt.Errorf("%s (rules %d and %d): %w", r.Target, prev, i, ErrDuplicateTarget)
		}
		producer[r.Target] = i
	}

	indegree := make([]int, len(rules))
	dependents := make([][]int, len(rules))
	for j, r := range rules {
		seen := make(map[int]bool)
		for _, d := range r.Deps {
			i, ok := producer[d]
			if !ok {
				continue
			}
			if i == j {
				return nil, fmt.Errorf("%s: %w", r.Target, ErrSelfDependency)
			}
			if seen[i] {
				continue
			}
			seen[i] = true
			dependents[i] = append(dependents[i], j)
			indegree[j]++
		}
	}

	// Kahn's algorithm, always taking the lowest ready index.
	var ready []int
	for i := range rules {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	ordered := make([]Rule, 0, len(rules))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		ordered = append(ordered, rules[i])
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(ordered) != len(rules) {
		var stuck []string
		for i, n := range indegree {
			if n > 0 {
				stuck = append(stuck, string(rules[i].Target))
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return ordered, nil
}
