package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScrapeConfig configures the browser pipeline and worker pool.
type ScrapeConfig struct {
	Headless            bool     `yaml:"headless" mapstructure:"headless"`
	UserAgent           string   `yaml:"user_agent" mapstructure:"user_agent"`
	Sites               []string `yaml:"sites" mapstructure:"sites"`
	SitesPath           string   `yaml:"sites_path" mapstructure:"sites_path"`
	Concurrency         int      `yaml:"concurrency" mapstructure:"concurrency"`
	NavTimeoutSecs      int      `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	ReadyTimeoutSecs    int      `yaml:"ready_timeout_secs" mapstructure:"ready_timeout_secs"`
	PerHostIntervalSecs int      `yaml:"per_host_interval_secs" mapstructure:"per_host_interval_secs"`
	MaxAttempts         int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	MinTextLen          int      `yaml:"min_text_len" mapstructure:"min_text_len"`
}

// NavTimeout returns the navigation timeout as a duration.
func (c ScrapeConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSecs) * time.Second
}

// ReadyTimeout returns the content-readiness wait cap as a duration.
func (c ScrapeConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSecs) * time.Second
}

// PerHostInterval returns the per-host politeness interval as a duration.
func (c ScrapeConfig) PerHostInterval() time.Duration {
	return time.Duration(c.PerHostIntervalSecs) * time.Second
}

// ClassifyConfig configures date-suitability tagging. An empty keyword list
// selects the built-in vocabulary.
type ClassifyConfig struct {
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
}

// AnthropicConfig holds Anthropic API settings for the rewrite step.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVIEWPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reviews.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("scrape.headless", true)
	v.SetDefault("scrape.sites", []string{"tabelog", "gnavi", "retty"})
	v.SetDefault("scrape.concurrency", 3)
	v.SetDefault("scrape.nav_timeout_secs", 45)
	v.SetDefault("scrape.ready_timeout_secs", 10)
	v.SetDefault("scrape.per_host_interval_secs", 4)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.min_text_len", 10)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkCommon := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "scrape":
		checkCommon()
		if c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > 16 {
			problems = append(problems, "scrape.concurrency must be between 1 and 16")
		}
		if c.Scrape.MaxAttempts < 1 {
			problems = append(problems, "scrape.max_attempts must be >= 1")
		}
		if len(c.Scrape.Sites) == 0 {
			problems = append(problems, "scrape.sites must name at least one site")
		}
	case "rewrite":
		checkCommon()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		checkCommon()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		checkCommon()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
