// Package config resolves hub configuration from three layers, in
// precedence order: environment variables, a persisted JSON file under
// the user's home directory, and hardcoded defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds all hub configuration.
type Config struct {
	// Mode selects the runtime mode: "api" or "worker".
	Mode string `env:"HUBD_MODE" json:"mode"`

	// Server
	Host string `env:"HUBD_HOST" json:"host"`
	Port int    `env:"HUBD_PORT" json:"port"`

	// Store
	DBPath string `env:"HUBD_DB_PATH" json:"dbPath"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" json:"logLevel"`
	LogFormat string `env:"LOG_FORMAT" json:"logFormat"`

	// Telemetry
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" json:"otlpEndpoint"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," json:"corsAllowedOrigins"`

	// Cloud identity and credentials.
	CloudBaseURL    string `env:"HUBD_CLOUD_BASE_URL" json:"cloudBaseUrl"`
	CloudAPIKey     string `env:"HUBD_CLOUD_API_KEY" json:"cloudApiKey"`
	CloudTenantID   string `env:"HUBD_CLOUD_TENANT_ID" json:"cloudTenantId"`
	CloudLocationID string `env:"HUBD_CLOUD_LOCATION_ID" json:"cloudLocationId"`

	// HubSecret authenticates the hub to the cloud during re-pairing flows.
	HubSecret string `env:"HUBD_HUB_SECRET" json:"hubSecret"`

	// Session
	SessionSecret string `env:"HUBD_SESSION_SECRET" json:"sessionSecret"`

	// Engine tuning
	PullIntervalSeconds int `env:"HUBD_PULL_INTERVAL_SECONDS" json:"pullIntervalSeconds"`
	PushIntervalSeconds int `env:"HUBD_PUSH_INTERVAL_SECONDS" json:"pushIntervalSeconds"`
	PushBatchSize       int `env:"HUBD_PUSH_BATCH_SIZE" json:"pushBatchSize"`

	// Ops alerting (optional — if not set, disabled).
	SlackBotToken     string `env:"HUBD_SLACK_BOT_TOKEN" json:"slackBotToken"`
	SlackAlertChannel string `env:"HUBD_SLACK_ALERT_CHANNEL" json:"slackAlertChannel"`
}

// defaults returns the hardcoded fallback configuration, applied after the
// env and file layers have both had a chance to set a value.
func defaults() Config {
	return Config{
		Mode:                "api",
		Host:                "0.0.0.0",
		Port:                4001,
		DBPath:              defaultDBPath(),
		LogLevel:            "info",
		LogFormat:           "json",
		CORSAllowedOrigins:  []string{"*"},
		PullIntervalSeconds: 60,
		PushIntervalSeconds: 5,
		PushBatchSize:       20,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hub.db"
	}
	return filepath.Join(home, ".hubd", "hub.db")
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".hubd", "config.json"), nil
}

// Load resolves configuration in three layers: environment variables first,
// then the persisted config file for anything still unset, then hardcoded
// defaults for whatever remains unset after that. Re-pairing (which rewrites
// the config file) takes effect without a restart because every cloud call
// reads the in-memory Config live, and any path that mutates credentials
// must call Save to persist them for the next process start too.
func Load() (*Config, error) {
	cfg := defaults()

	path, err := defaultConfigPath()
	if err == nil {
		if fileCfg, err := readFile(path); err == nil {
			mergeNonZero(&cfg, fileCfg)
		}
	}

	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	mergeNonZero(&cfg, &envCfg)

	return &cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeNonZero overwrites fields in dst with non-zero fields from src.
// Used to layer env-var values (higher precedence) on top of file values,
// and file values on top of defaults.
func mergeNonZero(dst, src *Config) {
	if src.Mode != "" {
		dst.Mode = src.Mode
	}
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.DBPath != "" {
		dst.DBPath = src.DBPath
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
	if src.OTLPEndpoint != "" {
		dst.OTLPEndpoint = src.OTLPEndpoint
	}
	if len(src.CORSAllowedOrigins) > 0 {
		dst.CORSAllowedOrigins = src.CORSAllowedOrigins
	}
	if src.CloudBaseURL != "" {
		dst.CloudBaseURL = src.CloudBaseURL
	}
	if src.CloudAPIKey != "" {
		dst.CloudAPIKey = src.CloudAPIKey
	}
	if src.CloudTenantID != "" {
		dst.CloudTenantID = src.CloudTenantID
	}
	if src.CloudLocationID != "" {
		dst.CloudLocationID = src.CloudLocationID
	}
	if src.HubSecret != "" {
		dst.HubSecret = src.HubSecret
	}
	if src.SessionSecret != "" {
		dst.SessionSecret = src.SessionSecret
	}
	if src.PullIntervalSeconds != 0 {
		dst.PullIntervalSeconds = src.PullIntervalSeconds
	}
	if src.PushIntervalSeconds != 0 {
		dst.PushIntervalSeconds = src.PushIntervalSeconds
	}
	if src.PushBatchSize != 0 {
		dst.PushBatchSize = src.PushBatchSize
	}
	if src.SlackBotToken != "" {
		dst.SlackBotToken = src.SlackBotToken
	}
	if src.SlackAlertChannel != "" {
		dst.SlackAlertChannel = src.SlackAlertChannel
	}
}

// Save atomically overwrites the persisted config file with cfg's contents.
// Used by re-pairing flows that learn new cloud credentials at runtime.
func Save(cfg *Config) error {
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming temp config file: %w", err)
	}
	return nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsCloudConfigured reports whether the hub has enough cloud credentials to
// attempt pull/push. Engines MUST gate their work on this.
func (c *Config) IsCloudConfigured() bool {
	return c.CloudBaseURL != "" && c.CloudAPIKey != ""
}
