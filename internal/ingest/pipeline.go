package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/datex/internal/core/metrics"
	"github.com/solatis/datex/internal/types"
)

/*
 * Pipeline workflow:
 *   1. The Source pushes Deliveries onto a channel from its own goroutine
 *   2. Each payload is decoded; malformed ones are counted and dropped
 *   3. Rows accumulate until BatchSize or FlushInterval
 *   4. The batch is appended to the Sink in one call
 *   5. Only then are the batch's Deliveries committed to the broker, so a
 *      crash between 4 and 5 redelivers rather than loses readings
 *
 * Malformed deliveries are committed with their batch: redelivering them
 * cannot make them valid.
 */

// flushTimeout bounds the final flush after the context is cancelled.
const flushTimeout = 5 * time.Second

// Delivery is one broker message awaiting commit.
type Delivery struct {
	Payload []byte
	token   interface{}
}

// Source produces Deliveries and acknowledges them once stored.
type Source interface {
	// Run pushes deliveries onto out until ctx is done or the source fails.
	Run(ctx context.Context, out chan<- Delivery) error
	// Commit acknowledges stored deliveries.
	Commit(ctx context.Context, ds []Delivery) error
	Close() error
}

// Sink stores decoded rows. db.ReadingStore implements it.
type Sink interface {
	Append(ctx context.Context, rows []types.Row) error
}

// Pipeline moves readings from a Source to a Sink in batches.
type Pipeline struct {
	source        Source
	sink          Sink
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// NewPipeline creates a pipeline. m may be nil.
func NewPipeline(source Source, sink Sink, batchSize int, flushInterval time.Duration, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if flushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %v", flushInterval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:        source,
		sink:          sink,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		metrics:       m,
	}, nil
}

type batch struct {
	rows       []types.Row
	deliveries []Delivery
	rejected   int
}

func (b *batch) empty() bool { return len(b.deliveries) == 0 }

// Run consumes until ctx is cancelled or the source or sink fails. The
// pending batch is flushed before returning; a cancelled context is a
// clean stop and returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.source.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries := make(chan Delivery, p.batchSize)
	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- p.source.Run(runCtx, deliveries)
	}()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var b batch
	for {
		select {
		case d := <-deliveries:
			p.add(&b, d)
			if len(b.deliveries) >= p.batchSize {
				if err := p.flush(runCtx, &b); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := p.flush(runCtx, &b); err != nil {
				return err
			}
		case err := <-sourceErr:
			if derr := p.drain(runCtx, deliveries, &b); derr != nil {
				return derr
			}
			if ferr := p.finalFlush(ctx, &b); ferr != nil {
				return ferr
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("source failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			return p.finalFlush(ctx, &b)
		}
	}
}

func (p *Pipeline) add(b *batch, d Delivery) {
	b.deliveries = append(b.deliveries, d)
	row, err := Decode(d.Payload)
	if err != nil {
		b.rejected++
		p.logger.Warn("reading rejected", "error", err)
		return
	}
	b.rows = append(b.rows, row)
}

// drain takes the deliveries a finished source left buffered.
func (p *Pipeline) drain(ctx context.Context, deliveries <-chan Delivery, b *batch) error {
	for {
		select {
		case d := <-deliveries:
			p.add(b, d)
			if len(b.deliveries) >= p.batchSize {
				if err := p.flush(ctx, b); err != nil {
					return err
				}
			}
		default:
			return nil
		}
	}
}

// finalFlush stores the pending batch on a context detached from the
// cancelled one.
func (p *Pipeline) finalFlush(ctx context.Context, b *batch) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	return p.flush(flushCtx, b)
}

func (p *Pipeline) flush(ctx context.Context, b *batch) error {
	if b.empty() {
		return nil
	}
	if len(b.rows) > 0 {
		if err := p.sink.Append(ctx, b.rows); err != nil {
			return fmt.Errorf("failed to store %d readings: %w", len(b.rows), err)
		}
	}
	if err := p.source.Commit(ctx, b.deliveries); err != nil {
		return fmt.Errorf("failed to commit %d messages: %w", len(b.deliveries), err)
	}

	p.metrics.Ingested("stored", len(b.rows))
	p.metrics.Ingested("rejected", b.rejected)
	p.logger.Debug("batch stored", "rows", len(b.rows), "rejected", b.rejected)

	*b = batch{}
	return nil
}
