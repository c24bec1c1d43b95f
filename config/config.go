package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Risk      RiskConfig      `yaml:"risk"`
	Compound  CompoundConfig  `yaml:"compound"`
	Feed      FeedConfig      `yaml:"feed"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// AgentConfig controls the decision loop.
type AgentConfig struct {
	InitialBalance        float64 `yaml:"initial_balance"`
	SentimentWeight       float64 `yaml:"sentiment_weight"`
	ExecTimeoutSeconds    int     `yaml:"exec_timeout_seconds"`
	StatusIntervalSeconds int     `yaml:"status_interval_seconds"`
	PersistRetries        int     `yaml:"persist_retries"`
	Preview               bool    `yaml:"preview"` // paper mode
}

// AnalyzerConfig controls signal entry criteria.
type AnalyzerConfig struct {
	DeltaThreshold   float64 `yaml:"delta_threshold"`
	VolumeMultiplier float64 `yaml:"volume_multiplier"`
	VolumeMinimum    float64 `yaml:"volume_minimum"`
	SpreadMaximum    float64 `yaml:"spread_maximum"`
	MomentumWindow   int     `yaml:"momentum_window"`
	MinConfidence    float64 `yaml:"min_confidence"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
	MaxHoldSeconds   int     `yaml:"max_hold_seconds"`
	MaxErrors        int     `yaml:"max_errors"`
}

// RiskConfig controls the global risk gate.
type RiskConfig struct {
	MaxPortfolioRiskPct float64 `yaml:"max_portfolio_risk_pct"`
	MaxPositionPct      float64 `yaml:"max_position_pct"`
	MaxDailyTrades      int     `yaml:"max_daily_trades"`
	MaxDailyLossPct     float64 `yaml:"max_daily_loss_pct"`
	EmergencyStopPct    float64 `yaml:"emergency_stop_pct"`
	TradingHourStart    int     `yaml:"trading_hour_start"`
	TradingHourEnd      int     `yaml:"trading_hour_end"`
	ResetToken          string  `yaml:"reset_token"` // normally set via RESET_TOKEN env
}

// CompoundConfig controls the compounding strategy.
type CompoundConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	TargetCapital  float64 `yaml:"target_capital"`
	BaseRiskPct    float64 `yaml:"base_risk_pct"`
	MaxRiskPct     float64 `yaml:"max_risk_pct"`
	MaxDailyTrades int     `yaml:"max_daily_trades"`
}

// FeedConfig selects and configures the market data source.
type FeedConfig struct {
	URL            string   `yaml:"url"`
	Symbols        []string `yaml:"symbols"`
	HistorySize    int      `yaml:"history_size"`
	AvgWindow      int      `yaml:"avg_window"`
	ReplayFile     string   `yaml:"replay_file"` // when set, replay instead of websocket
	ReplayDelayMS  int      `yaml:"replay_delay_ms"`
	SpikePct       float64  `yaml:"spike_pct"`
}

// SentimentConfig configures the optional sentiment provider.
// An empty base URL disables sentiment fusion.
type SentimentConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"` // normally set via SENTIMENT_API_KEY env
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// StorageConfig controls where agent state is persisted.
type StorageConfig struct {
	// DSN is the SQLite path (or ":memory:"). A path ending in .json
	// selects the plain file store instead.
	DSN string `yaml:"dsn"`
}

// MetricsConfig controls the Prometheus/admin HTTP listener.
// An empty address disables the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// variables override YAML for the keys that map to them.
func Load(path string) (*Config, error) {
	// load .env if present (missing file is fine)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ExecTimeout returns the execution deadline as a time.Duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Agent.ExecTimeoutSeconds) * time.Second
}

// StatusInterval returns the status report interval as a time.Duration.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Agent.StatusIntervalSeconds) * time.Second
}

// MaxHold returns the analyzer's max position hold time.
func (c *Config) MaxHold() time.Duration {
	return time.Duration(c.Analyzer.MaxHoldSeconds) * time.Second
}

// ReplayDelay returns the pause between replayed ticks.
func (c *Config) ReplayDelay() time.Duration {
	return time.Duration(c.Feed.ReplayDelayMS) * time.Millisecond
}

// SentimentTTL returns the sentiment cache TTL.
func (c *Config) SentimentTTL() time.Duration {
	return time.Duration(c.Sentiment.TTLSeconds) * time.Second
}

// applyEnvOverrides replaces values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RESET_TOKEN"); v != "" {
		cfg.Risk.ResetToken = v
	}
	if v := os.Getenv("SENTIMENT_API_KEY"); v != "" {
		cfg.Sentiment.APIKey = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Agent.InitialBalance = f
		}
	}
}

// setDefaults fills in required values left unset.
func setDefaults(cfg *Config) {
	if cfg.Agent.InitialBalance <= 0 {
		cfg.Agent.InitialBalance = 100
	}
	if cfg.Agent.SentimentWeight <= 0 {
		cfg.Agent.SentimentWeight = 0.3
	}
	if cfg.Agent.ExecTimeoutSeconds <= 0 {
		cfg.Agent.ExecTimeoutSeconds = 10
	}
	if cfg.Agent.StatusIntervalSeconds <= 0 {
		cfg.Agent.StatusIntervalSeconds = 60
	}
	if cfg.Agent.PersistRetries <= 0 {
		cfg.Agent.PersistRetries = 3
	}
	if len(cfg.Feed.Symbols) == 0 {
		cfg.Feed.Symbols = []string{"BTCUSDT"}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "deltabot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
