package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 50, cfg.Session.MaxExchanges)
	assert.Equal(t, "nouralmulhem/Llama-2-7b-finetune-q8", cfg.Model.Model)
	assert.Equal(t, "model.bin", cfg.Model.ModelFile)
	assert.Equal(t, 512, cfg.Model.MaxNewTokens)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jenkinsbot.yaml")
	data := `
server:
  port: 8080
  cors_origins: ["https://ci.example.com"]
session:
  ttl: 2h
  max_exchanges: 10
  cleanup_schedule: "@every 15m"
model:
  model_name: jenkins-llama
  max_new_tokens: 256
inference:
  backend: openai
  url: http://vllm:8000/v1
transcripts:
  addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset fields keep defaults")
	assert.Equal(t, []string{"https://ci.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.Session.MaxExchanges)
	assert.Equal(t, "@every 15m", cfg.Session.CleanupSchedule)
	assert.Equal(t, "jenkins-llama", cfg.Model.Model)
	assert.Equal(t, 256, cfg.Model.MaxNewTokens)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, "openai", cfg.Inference.Backend)
	assert.Equal(t, "redis:6379", cfg.Transcripts.Addr)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config")

	large := filepath.Join(dir, "large.yaml")
	require.NoError(t, os.WriteFile(large, []byte(strings.Repeat("x: value\n", 200000)), 0600))
	_, err = Load(large)
	assert.ErrorContains(t, err, "too large")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"HOST":                        "127.0.0.1",
		"PORT":                        "9000",
		"DEBUG":                       "True",
		"CORS_ORIGINS":                "http://a.example, http://b.example",
		"SESSION_LIFETIME_HOURS":      "1",
		"MAX_MESSAGES_PER_SESSION":    "5",
		"CLEANUP_SCHEDULE":            "",
		"MODEL_NAME":                  "llama2",
		"MODEL_FILE":                  "q8.bin",
		"MAX_NEW_TOKENS":              "128",
		"TEMPERATURE":                 "0.2",
		"LOG_LEVEL":                   "DEBUG",
		"INFERENCE_BACKEND":           "huggingface",
		"HF_TOKEN":                    "hf_x",
		"REDIS_ADDR":                  "localhost:6379",
		"OTEL_TRACES_EXPORTER":        "otlp",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4318",
		"OTEL_EXPORTER_OTLP_HEADERS":  "x-api-key=secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.Session.MaxExchanges)
	assert.Equal(t, "", cfg.Session.CleanupSchedule, "empty schedule disables the sweeper")
	assert.Equal(t, "llama2", cfg.Model.Model)
	assert.Equal(t, "q8.bin", cfg.Model.ModelFile)
	assert.Equal(t, 128, cfg.Model.MaxNewTokens)
	assert.Equal(t, 0.2, cfg.Model.Temperature)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "huggingface", cfg.Inference.Backend)
	assert.Equal(t, "hf_x", cfg.Inference.HFToken)
	assert.Equal(t, "localhost:6379", cfg.Transcripts.Addr)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, map[string]string{"x-api-key": "secret"}, cfg.Tracing.Headers)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":        "http",
		"TEMPERATURE": "warm",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "TEMPERATURE")
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestApplyEnv_NonPositiveSessionLifetime(t *testing.T) {
	for _, hours := range []string{"0", "-1"} {
		t.Run(hours, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"SESSION_LIFETIME_HOURS": hours})))
			assert.LessOrEqual(t, cfg.Session.TTL, time.Duration(0))

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ttl")
		})
	}
}

func TestApplyEnv_HybridFallback(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"INFERENCE_BACKEND":      "hybrid",
		"INFERENCE_FALLBACK":     "openai",
		"INFERENCE_FALLBACK_URL": "http://vllm:8000/v1",
	})))
	assert.Equal(t, "openai", cfg.Inference.Fallback)
	assert.Equal(t, "http://vllm:8000/v1", cfg.Inference.FallbackURL)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"ttl", func(c *Config) { c.Session.TTL = 0 }, "ttl"},
		{"max exchanges", func(c *Config) { c.Session.MaxExchanges = -1 }, "max_exchanges"},
		{"max new tokens", func(c *Config) { c.Model.MaxNewTokens = 0 }, "max_new_tokens"},
		{"temperature", func(c *Config) { c.Model.Temperature = -0.1 }, "temperature"},
		{"backend", func(c *Config) { c.Inference.Backend = "ctransformers" }, "unknown inference backend"},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }, "invalid log level"},
		{"hybrid fallback", func(c *Config) {
			c.Inference.Backend = "hybrid"
			c.Inference.Fallback = "hybrid"
		}, "invalid hybrid fallback"},
		{"rate burst", func(c *Config) { c.Server.RateBurst = 0 }, "rate_burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
