package derived

import (
	"fmt"
	"log"
	"math"
	"os"
	"reflect"
	"sort"
	"time"

	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formstate"
	"property_appraisal/pkg/core/formula"
)

// RuleFailure records a rule whose guard or compute failed during a pass.
// The target keeps its previous value.
type RuleFailure struct {
	Target fieldpath.Path
	Err    error
}

// UndeclaredRead records a read outside a rule's declared dependencies.
type UndeclaredRead struct {
	Target fieldpath.Path
	Path   fieldpath.Path
}

// PassReport summarises one recomputation pass.
type PassReport struct {
	Trigger         []fieldpath.Path
	Evaluated       int
	Guarded         int
	Written         int
	Unchanged       int
	Failures        []RuleFailure
	UndeclaredReads []UndeclaredRead
	Duration        time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrictReads makes the engine record every read a guard or compute
// performs outside the rule's Deps and Target.
func WithStrictReads() Option {
	return func(e *Engine) { e.strict = true }
}

// Engine runs a validated rule set against a Form. It is not safe for
// concurrent use; the form it is bound to must be mutated from one goroutine.
type Engine struct {
	form   Form
	rules  []Rule
	deps   []map[fieldpath.Path]bool
	logger *log.Logger
	strict bool

	unsubscribe func()
	bound       bool
	inPass      bool
	pending     map[fieldpath.Path]bool
	last        PassReport
}

// New validates rules and returns an unbound engine.
func New(form Form, rules []Rule, opts ...Option) (*Engine, error) {
	ordered, err := Validate(rules)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		form:   form,
		rules:  ordered,
		deps:   make([]map[fieldpath.Path]bool, len(ordered)),
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
	for i, r := range ordered {
		set := make(map[fieldpath.Path]bool, len(r.Deps))
		for _, d := range r.Deps {
			set[d] = true
		}
		e.deps[i] = set
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Bind subscribes the engine to every dependency path and runs the eager
// rules once. Binding twice is a no-op.
func (e *Engine) Bind() PassReport {
	if e.bound {
		return e.last
	}
	e.bound = true
	e.unsubscribe = e.form.Subscribe(e.watchedPaths(), e.onChange)
	return e.run(nil, true)
}

// Close detaches the engine from the form. It is safe to call more than once.
func (e *Engine) Close() {
	if !e.bound {
		return
	}
	e.bound = false
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Touch runs a pass as if every given path had just changed.
func (e *Engine) Touch(paths ...fieldpath.Path) PassReport {
	return e.run(paths, false)
}

// Refresh re-evaluates every rule, eager ones included, in order. Guards
// still apply, so overridden cells keep their values.
func (e *Engine) Refresh() PassReport {
	return e.run(e.watchedPaths(), true)
}

// LastPass returns the report of the most recent pass.
func (e *Engine) LastPass() PassReport { return e.last }

func (e *Engine) watchedPaths() []fieldpath.Path {
	seen := make(map[fieldpath.Path]bool)
	var paths []fieldpath.Path
	for _, r := range e.rules {
		for _, d := range r.Deps {
			if !seen[d] {
				seen[d] = true
				paths = append(paths, d)
			}
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths
}

func (e *Engine) onChange(p fieldpath.Path) {
	if !e.bound {
		return
	}
	if e.inPass {
		// A write made by a rule in the running pass; the sweep picks it up.
		e.pending[p] = true
		return
	}
	e.run([]fieldpath.Path{p}, false)
}

// run evaluates triggered rules in topological order. A rule whose deps
// change later in the same sweep can only sit after its producers, so one
// sweep covers the whole chain and each rule runs at most once per pass.
func (e *Engine) run(trigger []fieldpath.Path, eager bool) PassReport {
	start := time.Now()
	e.inPass = true
	e.pending = make(map[fieldpath.Path]bool, len(trigger))
	for _, p := range trigger {
		e.pending[p] = true
	}
	report := PassReport{Trigger: append([]fieldpath.Path(nil), trigger...)}

	done := make([]bool, len(e.rules))
	for {
		progressed := false
		for i, r := range e.rules {
			if done[i] {
				continue
			}
			if !(eager && r.Eager()) && !e.triggered(i) {
				continue
			}
			done[i] = true
			progressed = true
			e.evaluate(i, &report)
		}
		if !progressed {
			break
		}
	}

	e.inPass = false
	e.pending = nil
	report.Duration = time.Since(start)
	e.last = report
	observePass(report)
	return report
}

func (e *Engine) triggered(i int) bool {
	for d := range e.deps[i] {
		if e.pending[d] {
			return true
		}
	}
	return false
}

func (e *Engine) evaluate(i int, report *PassReport) {
	r := e.rules[i]
	s := &scope{engine: e, index: i}
	report.Evaluated++

	value, allowed, err := e.safeCall(r, s)
	report.UndeclaredReads = append(report.UndeclaredReads, s.undeclared...)
	if err != nil {
		report.Failures = append(report.Failures, RuleFailure{Target: r.Target, Err: err})
		e.logger.Printf("[derived] rule %s failed: %v", r.Target, err)
		ruleEvaluations.WithLabelValues(outcomeFailed).Inc()
		return
	}
	if !allowed {
		report.Guarded++
		ruleEvaluations.WithLabelValues(outcomeGuarded).Inc()
		return
	}

	value = sanitize(value)
	if sameValue(e.form.Read(r.Target), value) {
		report.Unchanged++
		ruleEvaluations.WithLabelValues(outcomeUnchanged).Inc()
		return
	}
	report.Written++
	ruleEvaluations.WithLabelValues(outcomeWritten).Inc()
	e.form.Write(r.Target, value, formstate.OriginProgram)
}

// safeCall runs guard and compute, turning a panic into an error.
func (e *Engine) safeCall(r Rule, s *scope) (value any, allowed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			allowed = false
		}
	}()
	if r.When != nil && !r.When(s) {
		return nil, false, nil
	}
	value, err = r.Compute(s)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// sanitize keeps NaN and infinities out of the form.
func sanitize(v any) any {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0.0
		}
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return 0.0
		}
	}
	return v
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

type scope struct {
	engine     *Engine
	index      int
	undeclared []UndeclaredRead
}

func (s *scope) audit(p fieldpath.Path) {
	e := s.engine
	if !e.strict {
		return
	}
	r := e.rules[s.index]
	if p == r.Target || e.deps[s.index][p] {
		return
	}
	for _, u := range s.undeclared {
		if u.Path == p {
			return
		}
	}
	s.undeclared = append(s.undeclared, UndeclaredRead{Target: r.Target, Path: p})
	e.logger.Printf("[derived] rule %s read undeclared path %s", r.Target, p)
	undeclaredReads.Inc()
}

func (s *scope) Value(p fieldpath.Path) any {
	s.audit(p)
	return s.engine.form.Read(p)
}

func (s *scope) Number(p fieldpath.Path) float64 {
	return formula.ToNumber(s.Value(p))
}

func (s *scope) Text(p fieldpath.Path) string {
	switch v := s.Value(p).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (s *scope) Dirty(p fieldpath.Path) bool {
	s.audit(p)
	return s.engine.form.IsDirty(p)
}
