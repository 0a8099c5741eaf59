// Package worksheet ties one valuation method to a form store: it owns the
// current survey columns and qualitative rows, keeps cell values attached to
// the same survey or factor when the table changes shape, and rebinds a
// fresh engine after every structural change.
package worksheet

import (
	"fmt"
	"log"
	"os"

	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/formstate"
	"property_appraisal/pkg/core/formula"
	"property_appraisal/pkg/core/method"
	"property_appraisal/pkg/core/survey"

	"github.com/google/uuid"
)

// Worksheet is not safe for concurrent use.
type Worksheet struct {
	ID   uuid.UUID
	Kind method.Kind

	form     *formstate.Store
	sheet    method.Sheet
	settings method.Settings
	property survey.Property
	surveys  []survey.Survey
	rows     []method.QualitativeRow

	engine     *derived.Engine
	engineOpts []derived.Option
	logger     *log.Logger
}

// Option configures a Worksheet.
type Option func(*Worksheet)

// WithLogger sets the logger shared with the engine.
func WithLogger(l *log.Logger) Option {
	return func(w *Worksheet) { w.logger = l }
}

// WithStrictReads turns on the engine's undeclared-read audit.
func WithStrictReads() Option {
	return func(w *Worksheet) { w.engineOpts = append(w.engineOpts, derived.WithStrictReads()) }
}

// New creates an empty worksheet for kind on form and binds its engine.
func New(kind method.Kind, form *formstate.Store, settings method.Settings, opts ...Option) (*Worksheet, error) {
	if form == nil {
		form = formstate.NewStore()
	}
	w := &Worksheet{
		ID:       uuid.New(),
		Kind:     kind,
		form:     form,
		sheet:    kind.Sheet(),
		settings: settings,
		logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.engineOpts = append(w.engineOpts, derived.WithLogger(w.logger))

	if _, err := w.rebuild(); err != nil {
		return nil, err
	}
	return w, nil
}

// Load replaces property, surveys and rows in one structural change. Both
// key sets are checked before anything changes.
func (w *Worksheet) Load(property survey.Property, surveys []survey.Survey, rows []method.QualitativeRow) (derived.PassReport, error) {
	columns, err := surveyIndex(surveys)
	if err != nil {
		return derived.PassReport{}, err
	}
	factors, err := rowIndex(rows)
	if err != nil {
		return derived.PassReport{}, err
	}
	w.reindexSurveys(surveys, columns)
	w.reindexRows(rows, factors)
	w.property = property
	return w.rebuild()
}

// SetProperty replaces the subject property.
func (w *Worksheet) SetProperty(property survey.Property) (derived.PassReport, error) {
	w.property = property
	return w.rebuild()
}

// SetSurveys replaces the comparison columns. Cells follow their survey's
// marketId to its new column; cells of removed surveys are dropped. When the
// column count changes, weights the user did not type are cleared so they
// re-seed to the new equal share.
func (w *Worksheet) SetSurveys(surveys []survey.Survey) (derived.PassReport, error) {
	columns, err := surveyIndex(surveys)
	if err != nil {
		return derived.PassReport{}, err
	}
	w.reindexSurveys(surveys, columns)
	return w.rebuild()
}

// SetQualitativeRows replaces the factor rows. Cells follow their factor
// code; cells of removed rows are dropped.
func (w *Worksheet) SetQualitativeRows(rows []method.QualitativeRow) (derived.PassReport, error) {
	factors, err := rowIndex(rows)
	if err != nil {
		return derived.PassReport{}, err
	}
	w.reindexRows(rows, factors)
	return w.rebuild()
}

// surveyIndex maps each marketId to its column.
func surveyIndex(surveys []survey.Survey) (map[string]int, error) {
	next := make(map[string]int, len(surveys))
	for i, s := range surveys {
		if _, dup := next[s.ID]; dup {
			return nil, fmt.Errorf("survey %q appears twice", s.ID)
		}
		next[s.ID] = i
	}
	return next, nil
}

// rowIndex maps each factor code to its row.
func rowIndex(rows []method.QualitativeRow) (map[string]int, error) {
	next := make(map[string]int, len(rows))
	for i, r := range rows {
		if _, dup := next[string(r.Code)]; dup {
			return nil, fmt.Errorf("qualitative factor %q appears twice", r.Code)
		}
		next[string(r.Code)] = i
	}
	return next, nil
}

func (w *Worksheet) reindexSurveys(surveys []survey.Survey, next map[string]int) {
	// Before the first load the store may hold restored cells that already
	// match the incoming order.
	if w.surveys != nil {
		w.remap(fieldpath.ColumnSegment, survey.IDs(w.surveys), next)
	}

	countChanged := len(surveys) != len(w.surveys)
	w.surveys = append([]survey.Survey{}, surveys...)
	if countChanged {
		w.clearClean(w.sheet.Cols(len(surveys), method.FieldWeight))
	}
}

func (w *Worksheet) reindexRows(rows []method.QualitativeRow, next map[string]int) {
	if w.rows != nil {
		old := make([]string, len(w.rows))
		for i, r := range w.rows {
			old[i] = string(r.Code)
		}
		w.remap(method.GroupQualitative, old, next)
	}

	countChanged := len(rows) != len(w.rows)
	w.rows = append([]method.QualitativeRow{}, rows...)
	if countChanged {
		w.clearClean(w.sheet.Rows(len(rows), method.FieldRowWeight))
	}
}

// remap moves every cell of this section indexed under segment from its
// old position to the position of the same key in next.
func (w *Worksheet) remap(segment string, oldKeys []string, next map[string]int) {
	root := fieldpath.Section(w.sheet.Section)
	w.form.Remap(func(p fieldpath.Path) (fieldpath.Path, bool) {
		if !fieldpath.HasPrefix(p, root) {
			return p, true
		}
		_, idx, _, ok := fieldpath.SplitIndex(p, segment)
		if !ok {
			return p, true
		}
		if idx >= len(oldKeys) {
			return p, false
		}
		to, keep := next[oldKeys[idx]]
		if !keep {
			return p, false
		}
		return fieldpath.WithIndex(p, segment, to), true
	})
}

func (w *Worksheet) clearClean(paths []fieldpath.Path) {
	for _, p := range paths {
		if !w.form.IsDirty(p) {
			w.form.Delete(p)
		}
	}
}

// rebuild swaps in a fresh engine for the current shape and recomputes
// every cell. On a rule-set error the previous engine stays bound.
func (w *Worksheet) rebuild() (derived.PassReport, error) {
	rules, err := method.Build(w.Kind, method.Input{
		Surveys:         w.surveys,
		Property:        w.property,
		QualitativeRows: w.rows,
		Settings:        w.settings,
	})
	if err != nil {
		return derived.PassReport{}, err
	}
	engine, err := derived.New(w.form, rules, w.engineOpts...)
	if err != nil {
		return derived.PassReport{}, fmt.Errorf("failed to build %s rules: %w", w.Kind, err)
	}

	if w.engine != nil {
		w.engine.Close()
	}
	w.engine = engine
	engine.Bind()
	report := engine.Refresh()

	w.logger.Printf("[worksheet] %s %s rebuilt: %d surveys, %d rows, %d rules, %d failures",
		w.Kind, w.ID, len(w.surveys), len(w.rows), len(rules), len(report.Failures))
	return report, nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Set is a user edit of one cell.
func (w *Worksheet) Set(p fieldpath.Path, v any) { w.form.Set(p, v) }

// Value reads one cell.
func (w *Worksheet) Value(p fieldpath.Path) any { return w.form.Read(p) }

// Number reads one cell as a number.
func (w *Worksheet) Number(p fieldpath.Path) float64 { return formula.ToNumber(w.form.Read(p)) }

// Dirty reports whether the user typed the cell.
func (w *Worksheet) Dirty(p fieldpath.Path) bool { return w.form.IsDirty(p) }

// Form returns the backing store.
func (w *Worksheet) Form() *formstate.Store { return w.form }

// Sheet returns the path helper of the method section.
func (w *Worksheet) Sheet() method.Sheet { return w.sheet }

// Settings returns the rule-builder settings.
func (w *Worksheet) Settings() method.Settings { return w.settings }

// Property returns the subject property.
func (w *Worksheet) Property() survey.Property { return w.property }

// Surveys returns the comparison columns in order.
func (w *Worksheet) Surveys() []survey.Survey {
	return append([]survey.Survey(nil), w.surveys...)
}

// Rows returns the qualitative rows in order.
func (w *Worksheet) Rows() []method.QualitativeRow {
	return append([]method.QualitativeRow(nil), w.rows...)
}

// LastPass returns the report of the engine's latest pass.
func (w *Worksheet) LastPass() derived.PassReport { return w.engine.LastPass() }

// Recompute re-evaluates every rule against the current cells.
func (w *Worksheet) Recompute() derived.PassReport { return w.engine.Refresh() }

// Close detaches the engine from the store.
func (w *Worksheet) Close() {
	if w.engine != nil {
		w.engine.Close()
	}
}

// Result is the method's headline output.
type Result struct {
	Method                method.Kind `json:"method"`
	FinalValue            float64     `json:"final_value"`
	RoundedFinalValue     float64     `json:"rounded_final_value"`
	AppraisalPrice        float64     `json:"appraisal_price"`
	AppraisalPriceRounded float64     `json:"appraisal_price_rounded"`
}

// Result reads the final lines of the section.
func (w *Worksheet) Result() Result {
	return Result{
		Method:                w.Kind,
		FinalValue:            w.Number(w.sheet.Line(method.FieldFinalValue)),
		RoundedFinalValue:     w.Number(w.sheet.Line(method.FieldRoundedFinalValue)),
		AppraisalPrice:        w.Number(w.sheet.Line(method.FieldAppraisalPrice)),
		AppraisalPriceRounded: w.Number(w.sheet.Line(method.FieldAppraisalPriceRounded)),
	}
}
