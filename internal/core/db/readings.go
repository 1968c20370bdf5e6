package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/datex/internal/types"
)

// reading is the storage form of types.Row.
type reading struct {
	TimeMs    int64   `db:"time_ms"`
	Location  string  `db:"location"`
	SourceTag string  `db:"source_tag"`
	Metric    string  `db:"metric"`
	Value     float64 `db:"value"`
}

// ReadingStore loads and appends dataset rows.
type ReadingStore struct {
	db      *sqlx.DB
	queries *Queries
}

// NewReadingStore creates a store over the readings table.
func NewReadingStore(db *sqlx.DB, queries *Queries) *ReadingStore {
	return &ReadingStore{db: db, queries: queries}
}

// LoadRows returns the whole dataset ordered by time.
// Times are returned in UTC; bucketing applies the configured zone.
func (s *ReadingStore) LoadRows(ctx context.Context) ([]types.Row, error) {
	var records []reading
	if err := s.queries.Select(ctx, "list-readings", &records); err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}

	rows := make([]types.Row, len(records))
	for i, r := range records {
		rows[i] = types.Row{
			Time:      time.UnixMilli(r.TimeMs).UTC(),
			Location:  r.Location,
			SourceTag: r.SourceTag,
			Metric:    r.Metric,
			Value:     r.Value,
		}
	}
	return rows, nil
}

// Count returns the number of stored readings.
func (s *ReadingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.queries.Get(ctx, "count-readings", &n); err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return n, nil
}

// Append inserts rows in one transaction. Time precision is milliseconds.
func (s *ReadingStore) Append(ctx context.Context, rows []types.Row) error {
	query, err := s.queries.Raw("insert-reading")
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Time.UnixMilli(), r.Location, r.SourceTag, r.Metric, r.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}
	return nil
}
