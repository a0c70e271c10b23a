// Package config loads the service configuration from a YAML file and
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aixgo-dev/jenkinsbot/internal/llm"
	"github.com/aixgo-dev/jenkinsbot/internal/llm/inference"
	"github.com/aixgo-dev/jenkinsbot/internal/observability"
	"github.com/aixgo-dev/jenkinsbot/pkg/logging"
	"github.com/aixgo-dev/jenkinsbot/pkg/session"
	"github.com/aixgo-dev/jenkinsbot/pkg/transcript"
)

// maxConfigSize limits the size of config files that can be loaded
const maxConfigSize = 1 << 20

// Config represents the application configuration
type Config struct {
	Server      ServerConfig           `yaml:"server"`
	Session     session.Config         `yaml:"session"`
	Model       llm.BotConfig          `yaml:"model"`
	Inference   inference.Config       `yaml:"inference"`
	Logging     logging.Config         `yaml:"logging"`
	Tracing     observability.Config   `yaml:"tracing"`
	Transcripts transcript.RedisConfig `yaml:"transcripts"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`

	// CORSOrigins lists allowed origins; "*" allows any
	CORSOrigins []string `yaml:"cors_origins"`

	// RateLimit is the sustained /chat requests per second per client; 0 disables
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// RequestTimeout bounds a single request including generation
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			CORSOrigins:     []string{"*"},
			RateLimit:       2,
			RateBurst:       10,
			RequestTimeout:  5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Session:   session.DefaultConfig(),
		Model:     llm.DefaultBotConfig(),
		Inference: inference.Config{Backend: inference.BackendOllama},
		Logging:   logging.DefaultConfig(),
		Tracing:   observability.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config file too large (max %d bytes)", maxConfigSize)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("HOST", &c.Server.Host)
	integer("PORT", &c.Server.Port)
	if v, ok := lookup("DEBUG"); ok && v != "" {
		c.Server.Debug = strings.EqualFold(v, "true")
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	if v, ok := lookup("SESSION_LIFETIME_HOURS"); ok && v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_LIFETIME_HOURS: %w", err))
		} else {
			c.Session.TTL = time.Duration(hours) * time.Hour
		}
	}
	integer("MAX_MESSAGES_PER_SESSION", &c.Session.MaxExchanges)
	if v, ok := lookup("CLEANUP_SCHEDULE"); ok {
		c.Session.CleanupSchedule = v
	}

	str("MODEL_NAME", &c.Model.Model)
	str("MODEL_FILE", &c.Model.ModelFile)
	integer("MAX_NEW_TOKENS", &c.Model.MaxNewTokens)
	float("TEMPERATURE", &c.Model.Temperature)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	str("INFERENCE_BACKEND", &c.Inference.Backend)
	str("INFERENCE_URL", &c.Inference.URL)
	str("INFERENCE_API_KEY", &c.Inference.APIKey)
	str("HF_TOKEN", &c.Inference.HFToken)
	str("AWS_REGION", &c.Inference.Region)
	str("INFERENCE_FALLBACK", &c.Inference.Fallback)
	str("INFERENCE_FALLBACK_URL", &c.Inference.FallbackURL)

	str("REDIS_ADDR", &c.Transcripts.Addr)
	str("REDIS_PASSWORD", &c.Transcripts.Password)
	str("REDIS_STREAM", &c.Transcripts.Stream)

	str("OTEL_SERVICE_NAME", &c.Tracing.ServiceName)
	str("OTEL_TRACES_EXPORTER", &c.Tracing.Exporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if v, ok := lookup("OTEL_EXPORTER_OTLP_HEADERS"); ok && v != "" {
		c.Tracing.Headers = observability.ParseHeaders(v)
	}

	return errors.Join(errs...)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		errs = append(errs, errors.New("rate_burst must be positive when rate_limit is set"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.Session.MaxExchanges <= 0 {
		errs = append(errs, errors.New("session max_exchanges must be positive"))
	}
	if c.Model.MaxNewTokens <= 0 {
		errs = append(errs, errors.New("max_new_tokens must be positive"))
	}
	if c.Model.Temperature < 0 {
		errs = append(errs, errors.New("temperature must not be negative"))
	}
	if !inference.IsValidBackend(c.Inference.Backend) {
		errs = append(errs, fmt.Errorf("unknown inference backend %q (valid: %s)",
			c.Inference.Backend, strings.Join(inference.Backends, ", ")))
	}
	if c.Inference.Backend == inference.BackendHybrid && !inference.IsValidFallback(c.Inference.Fallback) {
		errs = append(errs, fmt.Errorf("invalid hybrid fallback backend %q", c.Inference.Fallback))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
