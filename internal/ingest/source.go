package ingest

import (
	"fmt"
	"log/slog"

	"github.com/solatis/datex/internal/core/config"
)

// NewSource builds the source selected by cfg.Transport.
func NewSource(cfg config.IngestConfig, logger *slog.Logger) (Source, error) {
	switch cfg.Transport {
	case config.TransportKafka:
		src, err := NewKafkaSource(cfg, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.TransportMQTT:
		src, err := NewMQTTSource(cfg, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown ingest transport %q", cfg.Transport)
	}
}
