package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIURL = "http://localhost:8000/v1"

// completionsAPI is the subset of *openai.Client used here.
type completionsAPI interface {
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIService implements InferenceService for OpenAI-compatible servers
// (vLLM, llama.cpp server, LocalAI, OpenAI itself).
type OpenAIService struct {
	client  completionsAPI
	chatAPI bool
}

// NewOpenAIService creates a service for the server at baseURL, which must
// include the API version prefix (e.g. http://localhost:8000/v1).
func NewOpenAIService(baseURL, apiKey string, chatAPI bool) *OpenAIService {
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")

	return &OpenAIService{
		client:  openai.NewClientWithConfig(cfg),
		chatAPI: chatAPI,
	}
}

// Generate performs inference. Raw prompts go to the completions endpoint;
// with chatAPI the prompt becomes a single user message.
func (s *OpenAIService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if s.chatAPI {
		return s.chat(ctx, req)
	}

	resp, err := s.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stop:        req.Stop,
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	return &GenerateResponse{
		Text:         resp.Choices[0].Text,
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        usageFromOpenAI(resp.Usage),
	}, nil
}

func (s *OpenAIService) chat(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stop:        req.Stop,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	return &GenerateResponse{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        usageFromOpenAI(&resp.Usage),
	}, nil
}

// Available lists models as a lightweight reachability probe.
func (s *OpenAIService) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.client.ListModels(ctx)
	return err == nil
}

// usageFromOpenAI converts token usage. Some compatible servers omit it.
func usageFromOpenAI(u *openai.Usage) Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
