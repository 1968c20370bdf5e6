// Package api provides the gRPC Explorer service: per-session explorer
// state over one shared dataset snapshot.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/core/config"
	"github.com/solatis/datex/internal/core/metrics"
	"github.com/solatis/datex/internal/explorer"
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

// RowLoader supplies the full dataset. db.ReadingStore implements it.
type RowLoader interface {
	LoadRows(ctx context.Context) ([]types.Row, error)
}

// CatalogCache stores discovery results. db.CatalogStore implements it.
type CatalogCache interface {
	Get(ctx context.Context, ruleSet, dataset string) (*catalog.Catalog, error)
	Put(ctx context.Context, cat *catalog.Catalog) error
}

// session is one client's explorer state. The mutex serializes calls on
// the same session; different sessions proceed in parallel.
type session struct {
	mu    sync.Mutex
	state explorer.State
}

// ExplorerService implements ExplorerServer.
// Thin orchestration layer over the explorer, rules and db packages.
type ExplorerService struct {
	rules    *rules.CompiledRuleSet
	loader   RowLoader
	cache    CatalogCache
	loc      *time.Location
	maxSess  int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	reloadMu sync.Mutex // serializes reload
	mu       sync.RWMutex
	explorer *explorer.Explorer
	sessions map[types.SessionID]*session
}

// ServiceOption configures an ExplorerService.
type ServiceOption func(*ExplorerService)

// WithMetrics records dataset, cache and session metrics on m.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *ExplorerService) { s.metrics = m }
}

// NewExplorerService creates the service and loads the initial dataset.
// cache may be nil to disable catalog caching.
func NewExplorerService(ctx context.Context, compiled *rules.CompiledRuleSet, loader RowLoader, cache CatalogCache, cfg *config.Config, logger *slog.Logger, opts ...ServiceOption) (*ExplorerService, error) {
	if compiled == nil {
		return nil, fmt.Errorf("compiled rule set cannot be nil")
	}
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Dataset.Location()
	if err != nil {
		return nil, err
	}

	s := &ExplorerService{
		rules:    compiled,
		loader:   loader,
		cache:    cache,
		loc:      loc,
		maxSess:  cfg.ExplorerAPI.MaxSessions,
		logger:   logger,
		sessions: make(map[types.SessionID]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// reload reads the dataset, reuses or refreshes the cached catalog, swaps
// the explorer and rebases every open session onto it.
func (s *ExplorerService) reload(ctx context.Context) (ReloadResponse, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	rows, err := s.loader.LoadRows(ctx)
	if err != nil {
		return ReloadResponse{}, fmt.Errorf("failed to load dataset: %w", err)
	}

	var cached *catalog.Catalog
	if s.cache != nil {
		cached, err = s.cache.Get(ctx, s.rules.Fingerprint, catalog.Fingerprint(rows))
		if err != nil && !errors.Is(err, types.ErrCatalogNotFound) {
			s.logger.Warn("catalog cache lookup failed", "error", err)
		}
	}

	e, err := explorer.New(s.rules, rows,
		explorer.WithCatalog(cached),
		explorer.WithLocation(s.loc),
		explorer.WithLogger(s.logger))
	if err != nil {
		return ReloadResponse{}, err
	}

	hit := cached != nil && e.Catalog() == cached
	if s.cache != nil {
		s.metrics.CatalogLookup(hit)
	}
	if s.cache != nil && !hit {
		if err := s.cache.Put(ctx, e.Catalog()); err != nil {
			s.logger.Warn("catalog cache store failed", "error", err)
		}
	}

	s.mu.Lock()
	s.explorer = e
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.state = e.Rebase(sess.state)
		sess.mu.Unlock()
	}

	cat := e.Catalog()
	s.metrics.SetDataset(cat.Rows, cat.Unmatched)
	s.logger.Info("dataset loaded",
		"rows", cat.Rows,
		"unmatched", cat.Unmatched,
		"cached_catalog", hit,
		"sessions", len(sessions))

	return ReloadResponse{Rows: cat.Rows, Unmatched: cat.Unmatched, Sessions: len(sessions), Cached: hit}, nil
}

// current returns the explorer snapshot in use.
func (s *ExplorerService) current() *explorer.Explorer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.explorer
}

// openSession registers a new session seeded from the current explorer.
// The state is built under the write lock so a concurrent reload either
// rebases the session or hands it the new explorer.
func (s *ExplorerService) openSession() (types.SessionID, explorer.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSess {
		return "", explorer.State{}, types.ErrTooManySessions
	}
	state := s.explorer.Open()
	id := types.NewSessionID()
	s.sessions[id] = &session{state: state}
	s.metrics.SetSessions(len(s.sessions))
	return id, state, nil
}

// getSession returns the session with the given ID.
func (s *ExplorerService) getSession(raw string) (*session, error) {
	id, err := types.ParseSessionID(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrSessionNotFound, raw)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrSessionNotFound, raw)
	}
	return sess, nil
}

// closeSession removes a session; closing an unknown session is an error.
func (s *ExplorerService) closeSession(raw string) error {
	id, err := types.ParseSessionID(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", types.ErrSessionNotFound, raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %q", types.ErrSessionNotFound, raw)
	}
	delete(s.sessions, id)
	s.metrics.SetSessions(len(s.sessions))
	return nil
}

// SessionCount returns the number of open sessions.
func (s *ExplorerService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
