package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/types"
)

// CatalogStore caches discovery results keyed by the rule-set fingerprint
// and the dataset fingerprint. Either fingerprint changing is a miss.
type CatalogStore struct {
	queries *Queries
}

// NewCatalogStore creates a store over the catalogs table.
func NewCatalogStore(queries *Queries) *CatalogStore {
	return &CatalogStore{queries: queries}
}

// Get returns the cached catalog, or types.ErrCatalogNotFound.
func (s *CatalogStore) Get(ctx context.Context, ruleSet, dataset string) (*catalog.Catalog, error) {
	var body string
	err := s.queries.Get(ctx, "get-catalog", &body, ruleSet, dataset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrCatalogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}

	var cat catalog.Catalog
	if err := json.Unmarshal([]byte(body), &cat); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &cat, nil
}

// Put stores a catalog, replacing any entry with the same fingerprints,
// and drops entries of other datasets.
func (s *CatalogStore) Put(ctx context.Context, cat *catalog.Catalog) error {
	body, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.queries.Exec(ctx, "upsert-catalog", cat.RuleSet, cat.Dataset, string(body), now); err != nil {
		return fmt.Errorf("failed to store catalog: %w", err)
	}
	if _, err := s.queries.Exec(ctx, "prune-catalogs", cat.Dataset); err != nil {
		return fmt.Errorf("failed to prune catalogs: %w", err)
	}
	return nil
}
