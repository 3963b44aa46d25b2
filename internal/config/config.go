package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GathererConfig holds the settings for the traffic gathering service.
type GathererConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	Interface   string `yaml:"interface"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`
	// MaxDuration caps the capture duration a single request may ask for, in seconds.
	MaxDuration int `yaml:"max_duration"`
	// IdleTimeout is the inter-packet gap (seconds) that splits a conversation
	// into separate flows.
	IdleTimeout int `yaml:"idle_timeout"`
	NumWorkers  int `yaml:"num_workers"`
}

// AnalyzerConfig holds the settings for the traffic analysis service.
type AnalyzerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	ModelDir     string `yaml:"model_dir"`
	DefaultModel string `yaml:"default_model"`
}

// VisualizerConfig holds the settings for the dashboard service.
type VisualizerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// NATSConfig holds the settings for the event bus.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ClickHouseConfig holds the connection settings for prediction storage.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SMTPConfig holds the settings for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AlerterConfig holds the thresholds that trigger notifications.
type AlerterConfig struct {
	Enabled bool `yaml:"enabled"`
	// BotnetRatio triggers an alert when the fraction of flows labeled botnet
	// in a run reaches this value.
	BotnetRatio float64 `yaml:"botnet_ratio"`
	// MinFlows suppresses alerts for runs with fewer flows than this.
	MinFlows int        `yaml:"min_flows"`
	SMTP     SMTPConfig `yaml:"smtp"`
}

// HTTPConfig holds the settings shared by all request handlers.
type HTTPConfig struct {
	// Token is the value every POST request must carry in the X-Token header.
	// The BOTSPECTRA_TOKEN environment variable overrides it.
	Token string `yaml:"token"`
	// RateEvery is the minimum interval between accepted POST requests per
	// client, in seconds.
	RateEvery int `yaml:"rate_every"`
	RateBurst int `yaml:"rate_burst"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	SharedDir  string           `yaml:"shared_dir"`
	LogLevel   string           `yaml:"log_level"`
	HTTP       HTTPConfig       `yaml:"http"`
	Gatherer   GathererConfig   `yaml:"gatherer"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Visualizer VisualizerConfig `yaml:"visualizer"`
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Alerter    AlerterConfig    `yaml:"alerter"`
}

const tokenEnvVar = "BOTSPECTRA_TOKEN"

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if token := os.Getenv(tokenEnvVar); token != "" {
		cfg.HTTP.Token = token
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SharedDir == "" {
		c.SharedDir = "/app/shared"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.RateEvery <= 0 {
		c.HTTP.RateEvery = 60
	}
	if c.HTTP.RateBurst <= 0 {
		c.HTTP.RateBurst = 1
	}
	if c.Gatherer.SnapshotLen <= 0 {
		c.Gatherer.SnapshotLen = 1600
	}
	if c.Gatherer.MaxDuration <= 0 {
		c.Gatherer.MaxDuration = 3600
	}
	if c.Gatherer.IdleTimeout <= 0 {
		c.Gatherer.IdleTimeout = 30
	}
	if c.Gatherer.NumWorkers <= 0 {
		c.Gatherer.NumWorkers = 4
	}
	if c.Analyzer.DefaultModel == "" {
		c.Analyzer.DefaultModel = "iforest"
	}
	if c.Analyzer.ModelDir == "" {
		c.Analyzer.ModelDir = "models"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "botspectra"
	}
}
