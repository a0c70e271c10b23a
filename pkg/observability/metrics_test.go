package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	// Registering twice on the same registry must panic on duplicates.
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest(http.MethodPost, "/chat", http.StatusOK, 20*time.Millisecond)
	m.RecordHTTPRequest(http.MethodPost, "/chat", http.StatusOK, 30*time.Millisecond)
	m.RecordChatTurn(OutcomeSuccess)
	m.RecordChatTurn(OutcomeInvalid)
	m.RecordChatTurn(OutcomeInvalid)
	m.ObserveGeneration(OutcomeSuccess, time.Second)
	m.ObservePromptTokens(300)
	m.SetActiveSessions(4)
	m.RecordSessionsRemoved(TriggerAdmin, 3)
	m.RecordSessionsRemoved(TriggerSchedule, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/chat", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatTurnsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatTurnsTotal.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessionsRemovedTotal.WithLabelValues(TriggerAdmin)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionsRemovedTotal.WithLabelValues(TriggerSchedule)))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.RecordChatTurn(OutcomeError)
		m.ObserveGeneration(OutcomeError, time.Millisecond)
		m.ObservePromptTokens(1)
		m.SetActiveSessions(1)
		m.RecordSessionsRemoved(TriggerAdmin, 1)
	})
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordChatTurn(OutcomeSuccess)

	rec := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `jenkinsbot_chat_turns_total{outcome="success"} 1`))
}
