package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]interface{}) string {
	t.Helper()
	out, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "streamloader.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o600))
	return path
}

func validDoc() map[string]interface{} {
	return map[string]interface{}{
		"purpose": "self-describing",
		"transport": map[string]interface{}{
			"backend": "kafka",
			"kafka": map[string]interface{}{
				"brokers":  []string{"127.0.0.1:9092"},
				"topic":    "raw-events",
				"group_id": "streamloader",
			},
		},
		"database": map[string]interface{}{
			"dsn": "postgres://loader@localhost:5432/warehouse?sslmode=disable",
		},
		"registry": map[string]interface{}{
			"base_url": "http://registry.internal:8081",
		},
	}
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, validDoc())

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Transport.Backend)
	assert.Equal(t, "raw-events", cfg.Transport.Kafka.Topic)
	assert.Equal(t, 500, cfg.Transport.Kafka.MaxPollRecords, "default applies")
	assert.Equal(t, "public", cfg.Database.Schema, "default applies")
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 8080, cfg.Server.Port)

	timeout, err := cfg.Registry.RegistryTimeout()
	require.NoError(t, err)
	assert.Equal(t, "10s", timeout.String())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, validDoc())

	t.Setenv("STREAMLOADER_PURPOSE", "structured-event")
	t.Setenv("STREAMLOADER_SERVER__PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "structured-event", cfg.Purpose)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Purpose: "self-describing",
			Transport: TransportConfig{
				Backend: "shard-stream",
				Shard: ShardStreamConfig{
					ApplicationName:  "loader",
					StreamName:       "raw",
					Region:           "eu-central-1",
					StartingPosition: "latest",
				},
			},
			Database: DatabaseConfig{DSN: "postgres://localhost/db"},
			Registry: RegistryConfig{BaseURL: "http://registry", Timeout: "5s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid shard-stream", mutate: func(*Config) {}},
		{
			name:    "bad purpose",
			mutate:  func(c *Config) { c.Purpose = "csv" },
			wantErr: "purpose",
		},
		{
			name:    "bad backend",
			mutate:  func(c *Config) { c.Transport.Backend = "sqs" },
			wantErr: "transport.backend",
		},
		{
			name:    "shard stream without name",
			mutate:  func(c *Config) { c.Transport.Shard.StreamName = "" },
			wantErr: "stream_name",
		},
		{
			name:    "bad starting position",
			mutate:  func(c *Config) { c.Transport.Shard.StartingPosition = "beginning" },
			wantErr: "starting_position",
		},
		{
			name: "subscription without project",
			mutate: func(c *Config) {
				c.Transport.Backend = "subscription"
				c.Transport.PubSub = SubscriptionConfig{SubscriptionID: "sub"}
			},
			wantErr: "project_id",
		},
		{
			name: "kafka without brokers",
			mutate: func(c *Config) {
				c.Transport.Backend = "kafka"
				c.Transport.Kafka = KafkaConfig{Topic: "raw", GroupID: "g"}
			},
			wantErr: "kafka",
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "missing registry url",
			mutate:  func(c *Config) { c.Registry.BaseURL = "" },
			wantErr: "registry.base_url",
		},
		{
			name:    "bad registry timeout",
			mutate:  func(c *Config) { c.Registry.Timeout = "soon" },
			wantErr: "registry.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
