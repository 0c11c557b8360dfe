// Package config loads the emotibot binary configuration with viper from an
// optional YAML file, EMOTIBOT_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/emotibot/engine"
)

// EnvPrefix prefixes every environment variable, e.g. EMOTIBOT_LLM_PROVIDER.
const EnvPrefix = "EMOTIBOT"

// Providers accepted by llm.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config stores all configuration of the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Face       FaceConfig       `mapstructure:"face"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr  string `mapstructure:"addr"`
	CORS  bool   `mapstructure:"cors"`
	Debug bool   `mapstructure:"debug"`
}

// LLMConfig selects and configures the language model.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, anthropic or mock
	Model       string  `mapstructure:"model"`    // provider default when empty
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
}

// EngineConfig mirrors engine.Config.
type EngineConfig struct {
	HistoryLimit       int           `mapstructure:"history_limit"`
	ClassifyTimeout    time.Duration `mapstructure:"classify_timeout"`
	ReplyTimeout       time.Duration `mapstructure:"reply_timeout"`
	MaxConcurrentCalls int64         `mapstructure:"max_concurrent_calls"`
}

// Engine converts to the engine's own config type.
func (c EngineConfig) Engine() engine.Config {
	return engine.Config{
		HistoryLimit:       c.HistoryLimit,
		ClassifyTimeout:    c.ClassifyTimeout,
		ReplyTimeout:       c.ReplyTimeout,
		MaxConcurrentCalls: c.MaxConcurrentCalls,
	}
}

// ClassifierConfig configures the impact classifier.
type ClassifierConfig struct {
	RepairJSON bool `mapstructure:"repair_json"`
}

// FaceConfig configures face rendering.
type FaceConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig configures the OTLP/HTTP trace exporter. An empty endpoint
// disables tracing.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.cors", true)
	v.SetDefault("server.debug", false)

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 150)

	v.SetDefault("engine.history_limit", engine.DefaultConfig.HistoryLimit)
	v.SetDefault("engine.classify_timeout", engine.DefaultConfig.ClassifyTimeout)
	v.SetDefault("engine.reply_timeout", engine.DefaultConfig.ReplyTimeout)
	v.SetDefault("engine.max_concurrent_calls", engine.DefaultConfig.MaxConcurrentCalls)

	v.SetDefault("classifier.repair_json", false)
	v.SetDefault("face.cache_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "emotibot")
	v.SetDefault("tracing.insecure", false)
}

// Load reads the configuration. With an empty path it looks for
// emotibot.yaml in the working directory and $HOME/.emotibot; a missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("emotibot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.emotibot")
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// providerKey falls back to the provider SDK's conventional variable.
func providerKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// Validate checks values viper cannot check by type.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.Engine.HistoryLimit < 1 {
		return fmt.Errorf("engine.history_limit: must be positive, got %d", c.Engine.HistoryLimit)
	}
	if c.Face.CacheSize < 1 {
		return fmt.Errorf("face.cache_size: must be positive, got %d", c.Face.CacheSize)
	}
	if f := c.Log.Format; f != "json" && f != "text" {
		return fmt.Errorf("log.format: must be json or text, got %q", f)
	}
	return nil
}
