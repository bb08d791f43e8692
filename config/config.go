// Package config provides YAML and environment configuration for eventpipe.
//
// This package enables running eventpipe as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	strategy: remote
//	base_url: ${HTTPBIN_URL:-https://httpbin.org/}
//	period: 5s
//	fetch_timeout: 2s
//	listen_addr: ":8080"
//
//	tracing:
//	  enabled: true
//	  otlp_endpoint: localhost:4317
//	  insecure: true
//
// Every key can be overridden by an EVENTPIPE_* environment variable, e.g.
// EVENTPIPE_PERIOD=10s or EVENTPIPE_TRACING_ENABLED=true.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/eventpipe"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTPIPE_"

// minPeriod is the minimum allowed tick period for production configs.
// This prevents accidental hammering of the remote endpoint.
const minPeriod = 1 * time.Second

// Config is the root configuration structure for eventpipe.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config.
type Config struct {
	// Title is the dashboard title. Defaults to "eventpipe".
	Title string `yaml:"title" env:"TITLE"`

	// Strategy is "local" or "remote". Defaults to remote.
	Strategy string `yaml:"strategy" env:"STRATEGY"`

	// BaseURL is the remote strategy's base URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// Path is requested beneath BaseURL. Defaults to "get".
	Path string `yaml:"path" env:"PATH"`

	// Period is the time between ticks. Accepts duration strings like
	// "5s" or "1m". Defaults to 5s.
	Period Duration `yaml:"period" env:"PERIOD"`

	// FetchTimeout bounds each remote request. Zero means no timeout.
	FetchTimeout Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`

	// ListenAddr enables the status server when set, e.g. ":8080".
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// HistorySize is the number of published events the status server
	// retains. Defaults to 100.
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`

	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
}

// TracingConfig configures span creation and OTLP export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// ServiceName is reported as service.name. Defaults to "eventpipe".
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// OTLPEndpoint is the host:port of an OTLP/gRPC collector. Empty means
	// spans are recorded but not exported.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`

	Insecure bool `yaml:"insecure" env:"INSECURE"`

	// SampleRatio is the fraction of subscriptions traced, in (0, 1].
	// Defaults to 1.
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// Duration wraps time.Duration for YAML and environment unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file or overrides are given.
func Default() *Config {
	return &Config{
		Title:       "eventpipe",
		Strategy:    eventpipe.DefaultStrategy,
		BaseURL:     eventpipe.DefaultBaseURL,
		Path:        eventpipe.DefaultPath,
		Period:      Duration(eventpipe.DefaultPeriod),
		HistorySize: eventpipe.DefaultHistorySize,
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// An empty path skips the file: defaults and environment overrides still
// apply. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Keys absent from data keep their defaults. EVENTPIPE_* environment
// variables override file values, then ${VAR} references in base_url,
// listen_addr and tracing.otlp_endpoint are expanded and the result is
// validated.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with any EVENTPIPE_* environment variables that are
// set. Unset variables leave cfg untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	var err error
	if c.BaseURL, err = expandEnvVars(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if c.ListenAddr, err = expandEnvVars(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr: %w", err)
	}
	if c.Tracing.OTLPEndpoint, err = expandEnvVars(c.Tracing.OTLPEndpoint); err != nil {
		return fmt.Errorf("tracing.otlp_endpoint: %w", err)
	}

	switch c.Strategy {
	case eventpipe.StrategyLocal, eventpipe.StrategyRemote:
	default:
		return fmt.Errorf("strategy must be %q or %q, got %q", eventpipe.StrategyLocal, eventpipe.StrategyRemote, c.Strategy)
	}

	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("base_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("base_url must have a host")
	}

	if c.Path == "" {
		return errors.New("path cannot be empty")
	}

	if c.Period.Duration() < minPeriod {
		return fmt.Errorf("period must be at least %s, got %s", minPeriod, c.Period.Duration())
	}

	if c.FetchTimeout.Duration() < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
	}

	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}

	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in (0, 1], got %v", c.Tracing.SampleRatio)
	}

	return nil
}
