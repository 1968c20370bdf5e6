package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/solatis/datex/internal/core/config"
)

// messageReader is the subset of *kafka.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource reads a topic through a consumer group. Offsets advance only
// on Commit.
type KafkaSource struct {
	reader messageReader
	topic  string
	logger *slog.Logger
}

// NewKafkaSource creates a consumer-group reader for cfg.Topic.
func NewKafkaSource(cfg config.IngestConfig, logger *slog.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka group id cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaSource(reader, cfg.Topic, logger), nil
}

func newKafkaSource(reader messageReader, topic string, logger *slog.Logger) *KafkaSource {
	return &KafkaSource{reader: reader, topic: topic, logger: logger.With("topic", topic)}
}

// Run fetches until ctx ends, backing off up to 10s on fetch errors.
func (s *KafkaSource) Run(ctx context.Context, out chan<- Delivery) error {
	s.logger.Info("kafka consumer started")
	backoff := time.Second
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("kafka fetch failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		backoff = time.Second

		select {
		case out <- Delivery{Payload: msg.Value, token: msg}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Commit advances the group offsets past ds.
func (s *KafkaSource) Commit(ctx context.Context, ds []Delivery) error {
	msgs := make([]kafka.Message, 0, len(ds))
	for _, d := range ds {
		msg, ok := d.token.(kafka.Message)
		if !ok {
			return fmt.Errorf("delivery was not produced by the kafka source")
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	return s.reader.CommitMessages(ctx, msgs...)
}

// Close closes the reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
