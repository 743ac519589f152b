// Package config resolves service settings from defaults, an optional YAML
// file, VERIFIER_* environment variables and finally the settings table.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/logging"
	"github.com/realfinder/verifier/src/media"
	"github.com/realfinder/verifier/src/webclient"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "VERIFIER"

// Config is the resolved service configuration.
type Config struct {
	ListenAddr  string   `mapstructure:"listen-addr"`
	MySQLDSN    string   `mapstructure:"mysql-dsn"`
	RedisURL    string   `mapstructure:"redis-url"`
	JWTSecret   string   `mapstructure:"jwt-secret"`
	CORSOrigins []string `mapstructure:"cors-origins"`

	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	GeminiAPIKey string `mapstructure:"gemini-api-key"`
	ClaudeAPIKey string `mapstructure:"claude-api-key"`

	ProviderTimeout    time.Duration `mapstructure:"provider-timeout"`
	RequestTimeout     time.Duration `mapstructure:"request-timeout"`
	RetryAttempts      int           `mapstructure:"retry-attempts"`
	RetryInitialDelay  time.Duration `mapstructure:"retry-initial-delay"`
	RetryMaxDelay      time.Duration `mapstructure:"retry-max-delay"`
	MaxConcurrentCalls int           `mapstructure:"max-concurrent-calls"`
	RequestsPerMinute  int           `mapstructure:"requests-per-minute"`
	CacheTTL           time.Duration `mapstructure:"cache-ttl"`

	RulesFile     string        `mapstructure:"rules-file"`
	MediaMaxBytes int64         `mapstructure:"media-max-bytes"`
	MediaTimeout  time.Duration `mapstructure:"media-timeout"`

	ClientRate   int           `mapstructure:"client-rate"`
	ClientWindow time.Duration `mapstructure:"client-window"`

	LogLevel     string `mapstructure:"log-level"`
	Development  bool   `mapstructure:"development"`
	EventsStream string `mapstructure:"events-stream"`
}

// Keys lists every recognised setting name.
var Keys = []string{
	"listen-addr", "mysql-dsn", "redis-url", "jwt-secret", "cors-origins",
	"provider", "model", "gemini-api-key", "claude-api-key",
	"provider-timeout", "request-timeout", "retry-attempts", "retry-initial-delay", "retry-max-delay",
	"max-concurrent-calls", "requests-per-minute", "cache-ttl",
	"rules-file", "media-max-bytes", "media-timeout",
	"client-rate", "client-window",
	"log-level", "development", "events-stream",
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen-addr", ":8080")
	v.SetDefault("mysql-dsn", "")
	v.SetDefault("redis-url", "")
	v.SetDefault("jwt-secret", "")
	v.SetDefault("cors-origins", []string{"*"})
	v.SetDefault("provider", "gemini25")
	v.SetDefault("model", "")
	v.SetDefault("gemini-api-key", "")
	v.SetDefault("claude-api-key", "")
	v.SetDefault("provider-timeout", 20*time.Second)
	v.SetDefault("request-timeout", 45*time.Second)
	v.SetDefault("retry-attempts", 3)
	v.SetDefault("retry-initial-delay", 500*time.Millisecond)
	v.SetDefault("retry-max-delay", 8*time.Second)
	v.SetDefault("max-concurrent-calls", 4)
	v.SetDefault("requests-per-minute", 0)
	v.SetDefault("cache-ttl", 24*time.Hour)
	v.SetDefault("rules-file", "")
	v.SetDefault("media-max-bytes", int64(10<<20))
	v.SetDefault("media-timeout", 15*time.Second)
	v.SetDefault("client-rate", 60)
	v.SetDefault("client-window", time.Minute)
	v.SetDefault("log-level", "info")
	v.SetDefault("development", false)
	v.SetDefault("events-stream", "verifier.decisions")
}

// New returns a viper instance wired for env lookup and defaults. When
// configFile is empty, ./verifier.yaml and $HOME/.verifier.yaml are tried.
func New(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("verifier")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the config file if any and decodes v.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates what v currently holds.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Overlay applies database settings on top of v. Setting names may use
// dashes or underscores. It returns the keys that were applied.
func Overlay(v *viper.Viper, settings map[string]string) []string {
	known := make(map[string]struct{}, len(Keys))
	for _, k := range Keys {
		known[k] = struct{}{}
	}
	var applied []string
	for name, value := range settings {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
		if _, ok := known[key]; !ok || strings.TrimSpace(value) == "" {
			continue
		}
		v.Set(key, value)
		applied = append(applied, key)
	}
	return applied
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.ProviderTimeout <= 0 {
		problems = append(problems, "provider-timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request-timeout must be positive")
	}
	if c.RetryAttempts < 1 {
		problems = append(problems, "retry-attempts must be at least 1")
	}
	if c.RetryInitialDelay <= 0 || c.RetryMaxDelay < c.RetryInitialDelay {
		problems = append(problems, "retry delays must be positive with retry-max-delay >= retry-initial-delay")
	}
	if c.MaxConcurrentCalls < 1 {
		problems = append(problems, "max-concurrent-calls must be at least 1")
	}
	if c.RequestsPerMinute < 0 {
		problems = append(problems, "requests-per-minute must not be negative")
	}
	if c.MediaMaxBytes <= 0 {
		problems = append(problems, "media-max-bytes must be positive")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// AIFactory returns the provider client settings.
func (c Config) AIFactory() core.FactoryConfig {
	return core.FactoryConfig{
		Provider:  c.Provider,
		Model:     c.Model,
		Timeout:   c.ProviderTimeout,
		GeminiKey: c.GeminiAPIKey,
		ClaudeKey: c.ClaudeAPIKey,
	}
}

// Analysis returns the adapter call discipline.
func (c Config) Analysis() analysis.Config {
	return analysis.Config{
		Timeout: c.ProviderTimeout,
		Retry: webclient.Policy{
			Attempts:     c.RetryAttempts,
			InitialDelay: c.RetryInitialDelay,
			MaxDelay:     c.RetryMaxDelay,
		},
		RequestsPerMinute: c.RequestsPerMinute,
		CacheTTL:          c.CacheTTL,
		Model:             c.Model,
	}
}

// Media returns the fetcher limits.
func (c Config) Media() media.Config {
	return media.Config{MaxBytes: c.MediaMaxBytes, Timeout: c.MediaTimeout}
}

// splitList flattens comma separated entries coming from env or settings.
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
