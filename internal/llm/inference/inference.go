// Package inference talks to the text-generation backends that serve the
// Jenkins model: a local Ollama daemon, Hugging Face, any OpenAI-compatible
// server, Gemini and Amazon Bedrock.
package inference

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// InferenceService defines the interface for LLM inference
type InferenceService interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Available() bool
}

// GenerateRequest represents an inference request
type GenerateRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// GenerateResponse represents an inference response
type GenerateResponse struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Backend names accepted by New.
const (
	BackendOllama      = "ollama"
	BackendHuggingFace = "huggingface"
	BackendOpenAI      = "openai"
	BackendGemini      = "gemini"
	BackendBedrock     = "bedrock"
	BackendHybrid      = "hybrid"
	BackendMock        = "mock"
)

// Backends lists every backend name accepted by New.
var Backends = []string{
	BackendOllama,
	BackendHuggingFace,
	BackendOpenAI,
	BackendGemini,
	BackendBedrock,
	BackendHybrid,
	BackendMock,
}

// Config selects and configures an inference backend.
type Config struct {
	// Backend is one of Backends (default: "ollama")
	Backend string `yaml:"backend"`

	// URL is the server base URL for ollama, openai and huggingface
	URL string `yaml:"url"`

	// APIKey authenticates against openai and gemini
	APIKey string `yaml:"api_key"`

	// HFToken authenticates against Hugging Face
	HFToken string `yaml:"hf_token"`

	// Region is the AWS region for bedrock
	Region string `yaml:"region"`

	// ChatAPI sends the prompt as a single chat message instead of a raw
	// completion (openai backend only)
	ChatAPI bool `yaml:"chat_api"`

	// Fallback is the backend the hybrid backend uses when the local Ollama
	// model fails (default: "huggingface")
	Fallback string `yaml:"fallback"`

	// FallbackURL is the server base URL of the fallback backend
	FallbackURL string `yaml:"fallback_url"`
}

// DefaultFallback is the hosted backend used by hybrid when none is set.
const DefaultFallback = BackendHuggingFace

// IsValidFallback reports whether name can serve as the hybrid fallback.
// An empty name selects DefaultFallback.
func IsValidFallback(name string) bool {
	if name == "" {
		return true
	}
	return IsValidBackend(name) && name != BackendHybrid
}

// IsValidBackend reports whether name is a known backend.
func IsValidBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// New builds the service named by cfg.Backend.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (InferenceService, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendOllama
	}

	switch backend {
	case BackendOllama:
		return NewOllamaService(cfg.URL), nil
	case BackendHuggingFace:
		return NewHuggingFaceService(cfg.URL, cfg.HFToken), nil
	case BackendOpenAI:
		return NewOpenAIService(cfg.URL, cfg.APIKey, cfg.ChatAPI), nil
	case BackendGemini:
		return NewGeminiService(ctx, cfg.APIKey)
	case BackendBedrock:
		return NewBedrockService(ctx, cfg.Region)
	case BackendHybrid:
		return newHybrid(ctx, cfg, logger)
	case BackendMock:
		return NewMockInferenceService(""), nil
	default:
		return nil, fmt.Errorf("unknown inference backend: %s", backend)
	}
}

// newHybrid chains the local Ollama model with the configured fallback.
func newHybrid(ctx context.Context, cfg Config, logger zerolog.Logger) (*FallbackService, error) {
	name := cfg.Fallback
	if name == "" {
		name = DefaultFallback
	}
	if !IsValidFallback(name) {
		return nil, fmt.Errorf("invalid hybrid fallback backend: %s", name)
	}

	fallbackCfg := cfg
	fallbackCfg.Backend = name
	fallbackCfg.URL = cfg.FallbackURL
	fallbackCfg.Fallback = ""
	fallbackCfg.FallbackURL = ""

	fallback, err := New(ctx, fallbackCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create fallback backend: %w", err)
	}

	logger.Info().Str("primary", BackendOllama).Str("fallback", name).Msg("hybrid inference configured")
	return NewFallbackService(BackendOllama, NewOllamaService(cfg.URL), name, fallback,
		WithFallbackLogger(logger)), nil
}
