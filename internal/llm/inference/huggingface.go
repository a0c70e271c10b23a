package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/models"

// modelNamePattern restricts model names to prevent path traversal and injection
var modelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+(/[a-zA-Z0-9_.-]+)?$`)

var errNoHFToken = errors.New("HF_TOKEN not set")

// validateModelName validates that a model name is safe to place in a URL path
func validateModelName(model string) error {
	if model == "" {
		return errors.New("model name is required")
	}
	if len(model) > 256 {
		return fmt.Errorf("model name too long")
	}
	if !modelNamePattern.MatchString(model) {
		return fmt.Errorf("invalid model name format")
	}
	if strings.Contains(model, "..") {
		return fmt.Errorf("model name contains path traversal")
	}
	return nil
}

// HuggingFaceService implements InferenceService for the Hugging Face
// Inference API and for self-hosted Text Generation Inference servers.
type HuggingFaceService struct {
	apiToken   string
	endpoint   string
	dedicated  bool
	httpClient *http.Client
}

// NewHuggingFaceService creates a new Hugging Face inference service.
// An empty endpoint targets the hosted Inference API, where the model name
// selects the URL path. Any other endpoint is treated as a TGI server.
func NewHuggingFaceService(endpoint, token string) *HuggingFaceService {
	dedicated := endpoint != ""
	if !dedicated {
		endpoint = defaultHuggingFaceURL
	}
	return &HuggingFaceService{
		apiToken:  token,
		endpoint:  strings.TrimRight(endpoint, "/"),
		dedicated: dedicated,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Generate performs text generation
func (h *HuggingFaceService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	url := h.endpoint + "/generate"
	if !h.dedicated {
		if h.apiToken == "" {
			return nil, errNoHFToken
		}
		if err := validateModelName(req.Model); err != nil {
			return nil, fmt.Errorf("invalid model name: %w", err)
		}
		url = h.endpoint + "/" + req.Model
	}

	params := map[string]any{
		"return_full_text": false,
	}
	if req.MaxTokens > 0 {
		params["max_new_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		params["temperature"] = req.Temperature
	}
	if len(req.Stop) > 0 {
		params["stop"] = req.Stop
	}

	reqBody, err := json.Marshal(map[string]any{
		"inputs":     req.Prompt,
		"parameters": params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiToken)
	}

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface error (status %d): %s", resp.StatusCode, string(body))
	}

	text, err := parseGeneratedText(body)
	if err != nil {
		return nil, err
	}

	return &GenerateResponse{
		Text:         text,
		FinishReason: "stop",
	}, nil
}

// parseGeneratedText accepts both the array form of the Inference API and
// the single object form of TGI.
func parseGeneratedText(body []byte) (string, error) {
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("empty response from huggingface")
		}
		return list[0].GeneratedText, nil
	}

	var single struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return single.GeneratedText, nil
}

// Available reports whether requests can be sent. The hosted API needs a
// token; a TGI server must answer its health endpoint.
func (h *HuggingFaceService) Available() bool {
	if !h.dedicated {
		return h.apiToken != ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
