// Package config loads application configuration in three layers:
// built-in defaults, an optional YAML file, then environment variable
// overrides. Credentials come from the environment only (a local .env
// file is honoured for development).
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tritrend/internal/indicator"
	"tritrend/internal/portfolio"
	"tritrend/internal/premarket"
	"tritrend/internal/strategy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Schedule holds the cron expressions driving the daily cycle, both
// evaluated in the Taipei timezone.
type Schedule struct {
	PreMarketCron string `yaml:"pre_market_cron"` // analysis pass kickoff
	ResetCron     string `yaml:"reset_cron"`      // daily counter reset
}

// MonitorTimings configures the price monitor loop in whole seconds so
// they stay YAML-friendly.
type MonitorTimings struct {
	PollSeconds int `yaml:"poll_seconds"`
	IdleSeconds int `yaml:"idle_seconds"`
}

// Config holds all application configuration.
type Config struct {
	Service  string `yaml:"service"`
	LogLevel string `yaml:"log_level"`

	Analyzer   premarket.Config           `yaml:"analyzer"`
	Indicator  indicator.Config           `yaml:"indicator"`
	Limits     portfolio.Limits           `yaml:"limits"`
	Strategies map[string]strategy.Params `yaml:"strategies"` // per-id overrides
	Monitor    MonitorTimings             `yaml:"monitor"`
	Schedule   Schedule                   `yaml:"schedule"`

	// Environment-only settings.
	FubonPersonalID string
	FubonPassword   string
	FubonCertPath   string
	FubonCertPass   string
	FubonTOTPSecret string
	FubonWSURL      string
	FinMindToken    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string

	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	analyzer := premarket.DefaultConfig()
	analyzer.Universe = []string{"2330", "2317", "2454"}

	return &Config{
		Service:   "tritrend",
		LogLevel:  "info",
		Analyzer:  analyzer,
		Indicator: indicator.DefaultConfig(),
		Limits:    portfolio.DefaultLimits(),
		Monitor:   MonitorTimings{PollSeconds: 30, IdleSeconds: 60},
		Schedule: Schedule{
			PreMarketCron: "0 7 * * MON-FRI",
			ResetCron:     "55 6 * * MON-FRI",
		},
		RedisAddr:   "localhost:6379",
		SQLitePath:  "data/tritrend.db",
		MetricsAddr: ":9090",
	}
}

// Load builds the configuration. path may be empty; it falls back to
// the TRITREND_CONFIG env var, and if neither names a file only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("TRITREND_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config parse %s: %w", path, err)
		}
		log.Printf("[config] loaded %s", path)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.FubonPersonalID = getEnv("FUBON_PERSONAL_ID", c.FubonPersonalID)
	c.FubonPassword = getEnv("FUBON_PASSWORD", c.FubonPassword)
	c.FubonCertPath = getEnv("FUBON_CERT_PATH", c.FubonCertPath)
	c.FubonCertPass = getEnv("FUBON_CERT_PASS", c.FubonCertPass)
	c.FubonTOTPSecret = getEnv("FUBON_TOTP_SECRET", c.FubonTOTPSecret)
	c.FubonWSURL = getEnv("FUBON_WS_URL", c.FubonWSURL)
	c.FinMindToken = getEnv("FINMIND_TOKEN", c.FinMindToken)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.TelegramChatID)
	c.AlertWebhookURL = getEnv("ALERT_WEBHOOK_URL", c.AlertWebhookURL)

	if v := os.Getenv("UNIVERSE"); v != "" {
		c.Analyzer.Universe = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) validate() error {
	if len(c.Analyzer.Universe) == 0 {
		return fmt.Errorf("config: analyzer.universe must list at least one symbol")
	}
	if c.Limits.TotalCapital <= 0 {
		return fmt.Errorf("config: limits.total_capital must be positive")
	}
	if c.Monitor.PollSeconds <= 0 || c.Monitor.IdleSeconds <= 0 {
		return fmt.Errorf("config: monitor intervals must be positive")
	}
	return nil
}

// MonitorConfig translates the timings into the monitor's config,
// taking the trigger tolerance from the risk limits.
func (c *Config) MonitorConfig() premarket.MonitorConfig {
	mc := premarket.DefaultMonitorConfig()
	mc.PollInterval = time.Duration(c.Monitor.PollSeconds) * time.Second
	mc.IdleInterval = time.Duration(c.Monitor.IdleSeconds) * time.Second
	mc.Tolerance = c.Limits.PriceTolerance
	return mc
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}
