package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req["model"] != "jenkins-llama" {
			t.Errorf("unexpected model: %v", req["model"])
		}
		if req["raw"] != true {
			t.Errorf("expected raw prompt, got %v", req["raw"])
		}
		options, _ := req["options"].(map[string]any)
		if options["num_predict"] != float64(512) {
			t.Errorf("unexpected num_predict: %v", options["num_predict"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":          "Use the Manage Nodes page.",
			"done":              true,
			"prompt_eval_count": 5,
			"eval_count":        3,
		})
	}))
	defer server.Close()

	svc := NewOllamaService(server.URL)
	resp, err := svc.Generate(context.Background(), GenerateRequest{
		Model:       "jenkins-llama",
		Prompt:      "[INST] How do I add a node? [/INST]",
		MaxTokens:   512,
		Temperature: 0.7,
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Use the Manage Nodes page." {
		t.Errorf("unexpected text: %s", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("unexpected finish reason: %s", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 8 {
		t.Errorf("unexpected total tokens: %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaService_GenerateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewOllamaService(server.URL)
	_, err := svc.Generate(context.Background(), GenerateRequest{Model: "missing", Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOllamaService_Available(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Ollama is running"))
	}))

	svc := NewOllamaService(server.URL + "/")
	if !svc.Available() {
		t.Error("expected service to be available")
	}

	server.Close()
	if svc.Available() {
		t.Error("expected service to be unavailable after shutdown")
	}
}

func TestNewOllamaService_DefaultURL(t *testing.T) {
	svc := NewOllamaService("")
	if svc.baseURL != defaultOllamaURL {
		t.Errorf("baseURL = %s, want %s", svc.baseURL, defaultOllamaURL)
	}
}
