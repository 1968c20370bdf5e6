// Package explorer composes classification, discovery, selection and period
// resolution into a session-level API over one dataset.
//
// Every method is a pure function of its arguments and the Explorer's
// immutable snapshot (compiled rule set, rows, catalog): State values go in
// and new State values come out. Callers serialize calls per session.
package explorer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/period"
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

// Status distinguishes the data-quality states of a session.
type Status string

const (
	StatusOK Status = "ok"
	// StatusNoData means no selection in this session has produced data.
	StatusNoData Status = "no_data"
	// StatusNoDataInHistory means an earlier selection had data, the current one has none.
	StatusNoDataInHistory Status = "no_data_in_history"
)

// State is the complete, immutable view of one session.
type State struct {
	Selection types.ActiveSelection `json:"selection"`
	Tree      catalog.Tree          `json:"tree"`
	Index     period.Index          `json:"index"`
	Status    Status                `json:"status"`
	Boundary  period.Boundary       `json:"boundary,omitempty"`
	HadData   bool                  `json:"hadData"`
}

// Explorer holds one dataset snapshot classified against one rule set.
type Explorer struct {
	rules   *rules.CompiledRuleSet
	rows    []types.Row
	catalog *catalog.Catalog
	loc     *time.Location
	logger  *slog.Logger
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithLogger sets the logger for policy transitions. Defaults to a
// discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explorer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLocation sets the time zone periods are bucketed in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Explorer) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithCatalog supplies a cached discovery result. It is used only when its
// fingerprints match the rule set and rows; otherwise discovery runs.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(e *Explorer) {
		e.catalog = cat
	}
}

// New runs the discovery pass over rows.
func New(compiled *rules.CompiledRuleSet, rows []types.Row, opts ...Option) (*Explorer, error) {
	if compiled == nil {
		return nil, fmt.Errorf("compiled rule set cannot be nil")
	}

	e := &Explorer{
		rules:  compiled,
		rows:   rows,
		loc:    time.UTC,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.catalog == nil || !e.catalog.Matches(compiled.Fingerprint, catalog.Fingerprint(rows)) {
		e.catalog = catalog.Discover(rows, compiled)
		e.logger.Debug("discovery pass complete",
			"rows", e.catalog.Rows,
			"unmatched", e.catalog.Unmatched,
			"sources", len(e.catalog.Sources))
	}

	return e, nil
}

// Catalog returns the discovery result.
func (e *Explorer) Catalog() *catalog.Catalog { return e.catalog }

// RuleSet returns the compiled rule set.
func (e *Explorer) RuleSet() *rules.CompiledRuleSet { return e.rules }

// Location returns the bucketing time zone.
func (e *Explorer) Location() *time.Location { return e.loc }

// Open returns the initial state seeded from rule-set defaults; the active
// period is the newest indexed period.
func (e *Explorer) Open() State {
	tree, sources := catalog.Build(e.catalog, e.rules, nil)
	var shared map[string][]string
	tree.Shared, shared = catalog.BuildShared(e.catalog, e.rules, e.rules.Defaults.Shared)
	sel := types.ActiveSelection{
		Sources:     sources,
		Shared:      shared,
		Metrics:     append([]string(nil), e.rules.Defaults.Metrics...),
		Granularity: e.rules.Defaults.Granularity,
	}
	ix := period.BuildIndex(e.rows, e.rules, sel, e.loc)
	sel.ActivePeriod = ix.Last()

	return e.finish(sel, tree, ix, false)
}

// Rebase carries a state from another Explorer over to this one's dataset:
// the selection is re-seeded against the new catalog and the period is
// resolved as DatasetChanged.
func (e *Explorer) Rebase(prev State) State {
	tree, sources := catalog.Build(e.catalog, e.rules, prev.Selection.Sources)
	sel := prev.Selection.Clone()
	sel.Sources = sources
	tree.Shared, sel.Shared = catalog.BuildShared(e.catalog, e.rules, sel.Shared)

	ix := period.BuildIndex(e.rows, e.rules, sel, e.loc)
	sel.ActivePeriod = period.Resolve(e.rules.Behavior, period.EventDatasetChanged, prev.Selection.ActivePeriod, ix)
	e.logger.Debug("period resolved",
		"event", period.EventDatasetChanged,
		"previous", prev.Selection.ActivePeriod,
		"active", sel.ActivePeriod)

	return e.finish(sel, tree, ix, prev.HadData)
}

// Navigate steps the active period.
func (e *Explorer) Navigate(state State, dir period.Direction) State {
	next := state
	next.Selection = state.Selection.Clone()
	key, boundary := period.Navigate(state.Index, state.Selection.ActivePeriod, dir)
	next.Selection.ActivePeriod = key
	next.Boundary = boundary
	return next
}

// finish derives status and history for a freshly resolved selection.
func (e *Explorer) finish(sel types.ActiveSelection, tree catalog.Tree, ix period.Index, hadData bool) State {
	status := StatusOK
	if ix.Empty() {
		status = StatusNoData
		if hadData {
			status = StatusNoDataInHistory
		}
	}
	return State{
		Selection: sel,
		Tree:      tree,
		Index:     ix,
		Status:    status,
		HadData:   hadData || !ix.Empty(),
	}
}
