// Package llm adapts an inference backend and the prompt template to the
// chat engine used by the orchestrator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aixgo-dev/jenkinsbot/internal/llm/inference"
	"github.com/aixgo-dev/jenkinsbot/internal/llm/prompt"
	"github.com/aixgo-dev/jenkinsbot/internal/observability"
	metrics "github.com/aixgo-dev/jenkinsbot/pkg/observability"
)

// ErrModelNotLoaded is returned when the backend cannot be reached.
var ErrModelNotLoaded = errors.New("model not loaded")

// BotConfig holds generation parameters.
type BotConfig struct {
	// Model is the model name passed to the backend
	Model string `yaml:"model_name"`

	// ModelFile selects a weights file for backends that load one
	ModelFile string `yaml:"model_file"`

	// MaxNewTokens caps the answer length
	MaxNewTokens int `yaml:"max_new_tokens"`

	// Temperature controls sampling randomness
	Temperature float64 `yaml:"temperature"`

	// SystemPrompt replaces the default Jenkins expert instruction
	SystemPrompt string `yaml:"system_prompt"`

	// ContextWindow is the model context size in tokens; 0 disables the check
	ContextWindow int `yaml:"context_window"`

	// Stop sequences end generation early
	Stop []string `yaml:"stop"`
}

// DefaultBotConfig returns the settings of the fine-tuned Llama-2 model.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Model:         "nouralmulhem/Llama-2-7b-finetune-q8",
		ModelFile:     "model.bin",
		MaxNewTokens:  512,
		Temperature:   0.7,
		ContextWindow: 4096,
	}
}

// Bot answers Jenkins questions with an inference backend.
// It is safe for concurrent use.
type Bot struct {
	service   inference.InferenceService
	template  *prompt.Template
	estimator *prompt.Estimator
	cfg       BotConfig
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	loaded    atomic.Bool
}

// BotOption configures a Bot.
type BotOption func(*Bot)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) BotOption {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) BotOption {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithEstimator sets the token estimator used for prompt size checks.
func WithEstimator(e *prompt.Estimator) BotOption {
	return func(b *Bot) {
		b.estimator = e
	}
}

// NewBot creates a Bot. It reports not loaded until Load succeeds.
func NewBot(service inference.InferenceService, cfg BotConfig, opts ...BotOption) *Bot {
	b := &Bot{
		service:  service,
		template: prompt.NewTemplate(cfg.SystemPrompt),
		cfg:      cfg,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "bot").Str("model", cfg.Model).Logger()
	return b
}

// Load probes the backend and marks the bot loaded when it answers.
func (b *Bot) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.service == nil || !b.service.Available() {
		b.loaded.Store(false)
		return ErrModelNotLoaded
	}
	if !b.loaded.Swap(true) {
		b.logger.Info().Str("model_file", b.cfg.ModelFile).Msg("model loaded")
	}
	return nil
}

// Loaded reports whether the last Load succeeded.
func (b *Bot) Loaded() bool {
	return b.loaded.Load()
}

// Generate renders the prompt and returns the trimmed answer. A bot that is
// not loaded retries Load first.
func (b *Bot) Generate(ctx context.Context, question, history, persona string) (string, error) {
	if !b.Loaded() {
		if err := b.Load(ctx); err != nil {
			return "", err
		}
	}

	text := b.template.Render(question, history, persona)
	tokens := b.estimator.Count(text)
	b.metrics.ObservePromptTokens(tokens)
	if b.cfg.ContextWindow > 0 && tokens+b.cfg.MaxNewTokens > b.cfg.ContextWindow {
		b.logger.Warn().
			Int("prompt_tokens", tokens).
			Int("max_new_tokens", b.cfg.MaxNewTokens).
			Int("context_window", b.cfg.ContextWindow).
			Msg("prompt may exceed the model context window")
	}

	ctx, span := observability.StartSpanWithOtel(ctx, "inference.generate",
		trace.WithAttributes(
			attribute.String("llm.model", b.cfg.Model),
			attribute.Int("llm.prompt_tokens_estimate", tokens),
			attribute.Int("llm.max_new_tokens", b.cfg.MaxNewTokens),
		),
	)
	defer span.End()

	resp, err := b.service.Generate(ctx, inference.GenerateRequest{
		Model:       b.cfg.Model,
		Prompt:      text,
		MaxTokens:   b.cfg.MaxNewTokens,
		Temperature: b.cfg.Temperature,
		Stop:        b.cfg.Stop,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inference failed")
		return "", fmt.Errorf("generate: %w", err)
	}

	span.SetAttributes(
		attribute.String("llm.finish_reason", resp.FinishReason),
		attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Text), nil
}
