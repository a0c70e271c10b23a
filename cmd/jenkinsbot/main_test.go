package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/jenkinsbot/pkg/chat"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var req chat.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(chat.Response{
			Prediction:   "You asked: " + req.Text,
			SessionID:    "s-1",
			MessageCount: 1,
		})
	})
	mux.HandleFunc("POST /session/clear", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"Session cleared","session_id":"s-1"}`))
	})
	mux.HandleFunc("POST /session/cleanup", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"removed_sessions":2}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAskCommand(t *testing.T) {
	srv := fakeServer(t)

	stdout, stderr, err := runCmd(t, "--server", srv.URL, "ask", "what", "is", "a", "node?")
	require.NoError(t, err)
	assert.Equal(t, "You asked: what is a node?\n", stdout)
	assert.Contains(t, stderr, "session s-1 (1 messages)")
}

func TestSessionCommands(t *testing.T) {
	srv := fakeServer(t)

	stdout, _, err := runCmd(t, "--server", srv.URL, "session", "clear", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "session s-1 cleared\n", stdout)

	stdout, _, err = runCmd(t, "--server", srv.URL, "session", "cleanup")
	require.NoError(t, err)
	assert.Equal(t, "removed 2 expired sessions\n", stdout)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv("INFERENCE_BACKEND", "carrier-pigeon")

	_, _, err := runCmd(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown inference backend")
}

func TestTranscriptsExportRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")

	_, _, err := runCmd(t, "transcripts", "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transcript store configured")
}

func TestAnswerWriterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newAnswerWriter(&buf, false).Print("**bold**"))
	assert.Equal(t, "**bold**\n", buf.String())
}
