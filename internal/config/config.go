package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level loader configuration.
type Config struct {
	Purpose   string          `koanf:"purpose"` // structured-event | self-describing
	Transport TransportConfig `koanf:"transport"`
	Database  DatabaseConfig  `koanf:"database"`
	Registry  RegistryConfig  `koanf:"registry"`
	Server    ServerConfig    `koanf:"server"`
}

// TransportConfig selects and configures the ingestion backend.
type TransportConfig struct {
	Backend string             `koanf:"backend"` // shard-stream | subscription | kafka
	Shard   ShardStreamConfig  `koanf:"shard"`
	PubSub  SubscriptionConfig `koanf:"pubsub"`
	Kafka   KafkaConfig        `koanf:"kafka"`
}

type ShardStreamConfig struct {
	ApplicationName  string `koanf:"application_name"`
	StreamName       string `koanf:"stream_name"`
	Region           string `koanf:"region"`
	StartingPosition string `koanf:"starting_position"` // latest | trim-horizon | at-timestamp
}

type SubscriptionConfig struct {
	ProjectID      string `koanf:"project_id"`
	SubscriptionID string `koanf:"subscription_id"`
}

type KafkaConfig struct {
	Brokers        []string `koanf:"brokers"`
	Topic          string   `koanf:"topic"`
	GroupID        string   `koanf:"group_id"`
	ClientID       string   `koanf:"client_id"`
	MaxPollRecords int      `koanf:"max_poll_records"`
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	Schema       string `koanf:"schema"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type RegistryConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Timeout string `koanf:"timeout"` // parsed as time.Duration
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	Mode string `koanf:"mode"` // debug | release
}

// RegistryTimeout parses the configured registry timeout.
func (r RegistryConfig) RegistryTimeout() (time.Duration, error) {
	return time.ParseDuration(r.Timeout)
}

// Load reads configuration from defaults, the given YAML file and
// STREAMLOADER_* environment variables, in that precedence order.
// STREAMLOADER_TRANSPORT__BACKEND=kafka overrides transport.backend.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"purpose":                           "self-describing",
		"transport.backend":                 "subscription",
		"transport.shard.starting_position": "trim-horizon",
		"transport.kafka.max_poll_records":  500,
		"database.schema":                   "public",
		"database.max_open_conns":           10,
		"database.max_idle_conns":           10,
		"database.auto_migrate":             true,
		"registry.timeout":                  "10s",
		"server.host":                       "0.0.0.0",
		"server.port":                       8080,
		"server.mode":                       "release",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("STREAMLOADER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "STREAMLOADER_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the loader cannot start with.
func (c *Config) Validate() error {
	switch c.Purpose {
	case "structured-event", "self-describing":
	default:
		return fmt.Errorf("purpose must be structured-event or self-describing, got %q", c.Purpose)
	}

	switch c.Transport.Backend {
	case "shard-stream":
		if c.Transport.Shard.StreamName == "" {
			return fmt.Errorf("transport.shard.stream_name is required for the shard-stream backend")
		}
		switch c.Transport.Shard.StartingPosition {
		case "latest", "trim-horizon", "at-timestamp":
		default:
			return fmt.Errorf("transport.shard.starting_position %q is not one of latest, trim-horizon, at-timestamp",
				c.Transport.Shard.StartingPosition)
		}
	case "subscription":
		if c.Transport.PubSub.ProjectID == "" || c.Transport.PubSub.SubscriptionID == "" {
			return fmt.Errorf("transport.pubsub.project_id and subscription_id are required for the subscription backend")
		}
	case "kafka":
		if len(c.Transport.Kafka.Brokers) == 0 || c.Transport.Kafka.Topic == "" || c.Transport.Kafka.GroupID == "" {
			return fmt.Errorf("transport.kafka.brokers, topic and group_id are required for the kafka backend")
		}
	default:
		return fmt.Errorf("transport.backend must be shard-stream, subscription or kafka, got %q", c.Transport.Backend)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required")
	}
	if _, err := c.Registry.RegistryTimeout(); err != nil {
		return fmt.Errorf("registry.timeout: %w", err)
	}
	return nil
}
