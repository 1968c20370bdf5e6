// Package config provides configuration management for datex services.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ExplorerAPIConfig holds configuration for the gRPC explorer service.
type ExplorerAPIConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxSessions    int
	HTTPPort       int // JSON gateway and /metrics; 0 disables
}

// DatasetConfig describes where rows and the rule set come from.
type DatasetConfig struct {
	DBURL        string
	RuleSet      string // rule-set YAML path; empty selects the built-in SM2 rule set
	Timezone     string
	CacheCatalog bool
}

// Ingest transports.
const (
	TransportKafka = "kafka"
	TransportMQTT  = "mqtt"
)

// IngestConfig configures the broker consumer behind `datex ingest`.
type IngestConfig struct {
	Transport     string
	Brokers       []string
	Topic         string
	GroupID       string // kafka consumer group
	ClientID      string // mqtt client identifier
	BatchSize     int
	FlushInterval time.Duration
}

// Config is the complete service configuration.
type Config struct {
	ExplorerAPI ExplorerAPIConfig
	Dataset     DatasetConfig
	Ingest      IngestConfig
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ExplorerAPI: ExplorerAPIConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			RequestTimeout: 30 * time.Second,
			MaxSessions:    256,
			HTTPPort:       8061,
		},
		Dataset: DatasetConfig{
			Timezone:     "UTC",
			CacheCatalog: true,
		},
		Ingest: IngestConfig{
			Transport:     TransportKafka,
			Brokers:       []string{"localhost:9092"},
			Topic:         "datex.readings",
			GroupID:       "datex-ingest",
			ClientID:      "datex-ingest",
			BatchSize:     500,
			FlushInterval: 2 * time.Second,
		},
	}
}

// Location resolves the configured time zone.
func (d DatasetConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(dbURL string) bool {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}

// splitList flattens comma-separated entries, as DATEX_INGEST_BROKERS
// arrives as a single string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
