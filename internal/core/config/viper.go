package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("explorer_api.host", def.ExplorerAPI.Host)
	v.SetDefault("explorer_api.port", def.ExplorerAPI.Port)
	v.SetDefault("explorer_api.request_timeout", def.ExplorerAPI.RequestTimeout.String())
	v.SetDefault("explorer_api.max_sessions", def.ExplorerAPI.MaxSessions)
	v.SetDefault("explorer_api.http_port", def.ExplorerAPI.HTTPPort)
	v.SetDefault("dataset.db_url", "")
	v.SetDefault("dataset.ruleset", "")
	v.SetDefault("dataset.timezone", def.Dataset.Timezone)
	v.SetDefault("dataset.cache_catalog", def.Dataset.CacheCatalog)
	v.SetDefault("ingest.transport", def.Ingest.Transport)
	v.SetDefault("ingest.brokers", def.Ingest.Brokers)
	v.SetDefault("ingest.topic", def.Ingest.Topic)
	v.SetDefault("ingest.group_id", def.Ingest.GroupID)
	v.SetDefault("ingest.client_id", def.Ingest.ClientID)
	v.SetDefault("ingest.batch_size", def.Ingest.BatchSize)
	v.SetDefault("ingest.flush_interval", def.Ingest.FlushInterval.String())

	// Bind environment variables with DATEX_ prefix
	v.SetEnvPrefix("DATEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoCredentialsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		ExplorerAPI: ExplorerAPIConfig{
			Host:           v.GetString("explorer_api.host"),
			Port:           v.GetInt("explorer_api.port"),
			RequestTimeout: v.GetDuration("explorer_api.request_timeout"),
			MaxSessions:    v.GetInt("explorer_api.max_sessions"),
			HTTPPort:       v.GetInt("explorer_api.http_port"),
		},
		Dataset: DatasetConfig{
			DBURL:        v.GetString("dataset.db_url"),
			RuleSet:      v.GetString("dataset.ruleset"),
			Timezone:     v.GetString("dataset.timezone"),
			CacheCatalog: v.GetBool("dataset.cache_catalog"),
		},
		Ingest: IngestConfig{
			Transport:     strings.ToLower(v.GetString("ingest.transport")),
			Brokers:       splitList(v.GetStringSlice("ingest.brokers")),
			Topic:         strings.TrimSpace(v.GetString("ingest.topic")),
			GroupID:       v.GetString("ingest.group_id"),
			ClientID:      v.GetString("ingest.client_id"),
			BatchSize:     v.GetInt("ingest.batch_size"),
			FlushInterval: v.GetDuration("ingest.flush_interval"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive limits and the time zone.
func validateConfig(cfg *Config) error {
	if cfg.ExplorerAPI.Port <= 0 || cfg.ExplorerAPI.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.ExplorerAPI.Port)
	}
	if cfg.ExplorerAPI.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.ExplorerAPI.RequestTimeout)
	}
	if cfg.ExplorerAPI.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", cfg.ExplorerAPI.MaxSessions)
	}
	if cfg.ExplorerAPI.HTTPPort < 0 || cfg.ExplorerAPI.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got %d", cfg.ExplorerAPI.HTTPPort)
	}
	if cfg.ExplorerAPI.HTTPPort != 0 && cfg.ExplorerAPI.HTTPPort == cfg.ExplorerAPI.Port {
		return fmt.Errorf("http_port and port must differ, both are %d", cfg.ExplorerAPI.Port)
	}
	if _, err := cfg.Dataset.Location(); err != nil {
		return err
	}
	return validateIngest(&cfg.Ingest)
}

// validateIngest checks the broker settings; they are only dialed by
// `datex ingest` but a bad value should fail at load time.
func validateIngest(in *IngestConfig) error {
	switch in.Transport {
	case TransportKafka, TransportMQTT:
	default:
		return fmt.Errorf("ingest.transport must be kafka or mqtt, got %q", in.Transport)
	}
	if len(in.Brokers) == 0 {
		return fmt.Errorf("ingest.brokers cannot be empty")
	}
	if in.Topic == "" {
		return fmt.Errorf("ingest.topic cannot be empty")
	}
	if in.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", in.BatchSize)
	}
	if in.FlushInterval <= 0 {
		return fmt.Errorf("ingest.flush_interval must be positive, got %v", in.FlushInterval)
	}
	return nil
}

// validateNoCredentialsInConfig keeps database passwords out of config files.
func validateNoCredentialsInConfig(v *viper.Viper) error {
	if !v.InConfig("dataset.db_url") {
		return nil
	}
	if hasPassword(v.GetString("dataset.db_url")) {
		return fmt.Errorf("database passwords not allowed in config files (use DATEX_DATASET_DB_URL environment variable)")
	}
	return nil
}
