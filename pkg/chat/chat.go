// Package chat turns a raw question into an answered, recorded exchange.
// The Orchestrator validates input, resolves the session, renders its history
// as prompt context, calls the inference engine and appends the result.
package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aixgo-dev/jenkinsbot/internal/observability"
	metrics "github.com/aixgo-dev/jenkinsbot/pkg/observability"
	"github.com/aixgo-dev/jenkinsbot/pkg/session"
	"github.com/aixgo-dev/jenkinsbot/pkg/transcript"
)

// MaxQuestionLength is the longest accepted question, in characters.
const MaxQuestionLength = 2000

// sinkTimeout bounds how long a transcript write may delay a response.
const sinkTimeout = 2 * time.Second

// Engine generates an answer from a question, the rendered conversation
// history and an optional persona. Generate may block for a long time.
type Engine interface {
	Generate(ctx context.Context, question, history, persona string) (string, error)
	Loaded() bool
}

// Request is a validated-at-the-boundary chat request.
type Request struct {
	Text      string `json:"text"`
	Persona   string `json:"persona,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the result of one chat turn.
type Response struct {
	Prediction   string `json:"prediction"`
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}

// Orchestrator composes the session store and the inference engine.
// It is safe for concurrent use.
type Orchestrator struct {
	store   *session.Store
	engine  Engine
	sink    transcript.Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTranscriptSink sets where recorded exchanges are published.
func WithTranscriptSink(sink transcript.Sink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// New creates an Orchestrator.
func New(store *session.Store, engine Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		engine: engine,
		sink:   transcript.NopSink{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "chat").Logger()
	return o
}

// ModelLoaded reports whether the engine has a model loaded.
func (o *Orchestrator) ModelLoaded() bool {
	if o == nil || o.engine == nil {
		return false
	}
	return o.engine.Loaded()
}

// SessionStats reports the current contents of the session store.
func (o *Orchestrator) SessionStats() session.Stats {
	if o == nil || o.store == nil {
		return session.Stats{}
	}
	return o.store.Stats()
}

// Chat answers one question. Validation failures return a *ValidationError
// before the store is touched. A failed generation returns a
// *GenerationError and leaves the session history unchanged.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	if !o.initialized() {
		return nil, ErrNotInitialized
	}
	question, persona, err := validate(req)
	if err != nil {
		o.metrics.RecordChatTurn(metrics.OutcomeInvalid)
		return nil, err
	}

	ctx, span := observability.StartSpanWithOtel(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.Int("chat.question_length", utf8.RuneCountInString(question)),
			attribute.Bool("chat.has_persona", persona != ""),
		),
	)
	defer span.End()

	sess := o.store.GetOrCreate(NormalizeSessionID(req.SessionID))
	span.SetAttributes(attribute.String("chat.session_id", sess.ID()))

	// No store or session lock is held while the engine runs.
	history := sess.RenderHistory()

	start := time.Now()
	answer, err := o.engine.Generate(ctx, question, history, persona)
	if err == nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)

	if err != nil {
		o.metrics.ObserveGeneration(metrics.OutcomeError, elapsed)
		o.metrics.RecordChatTurn(metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, &GenerationError{SessionID: sess.ID(), Err: err}
	}
	o.metrics.ObserveGeneration(metrics.OutcomeSuccess, elapsed)

	count := sess.AddExchange(question, answer)
	o.metrics.RecordChatTurn(metrics.OutcomeSuccess)
	o.metrics.SetActiveSessions(o.store.Len())

	o.publish(ctx, transcript.Record{
		SessionID: sess.ID(),
		Question:  question,
		Answer:    answer,
		Persona:   persona,
		CreatedAt: time.Now().UTC(),
	})

	o.logger.Debug().
		Str("session_id", sess.ID()).
		Int("message_count", count).
		Dur("generation", elapsed).
		Msg("chat turn recorded")

	return &Response{
		Prediction:   answer,
		SessionID:    sess.ID(),
		MessageCount: count,
	}, nil
}

// ClearSession empties the history of the session with the given id. The
// session is resolved the same way a chat turn resolves it, so clearing an
// unknown id leaves an empty session bound to that id.
func (o *Orchestrator) ClearSession(ctx context.Context, id string) error {
	if !o.initialized() {
		return ErrNotInitialized
	}
	id = NormalizeSessionID(id)
	if id == "" {
		return &ValidationError{Message: MsgSessionIDRequired}
	}

	o.store.GetOrCreate(id).Clear()
	o.metrics.SetActiveSessions(o.store.Len())

	o.logger.Info().Str("session_id", id).Msg("session cleared")
	return nil
}

// CleanupExpiredSessions removes sessions idle beyond the store TTL and
// returns how many were removed.
func (o *Orchestrator) CleanupExpiredSessions(ctx context.Context) (int, error) {
	if o == nil || o.store == nil {
		return 0, ErrNotInitialized
	}

	removed := o.store.Cleanup()
	o.metrics.RecordSessionsRemoved(metrics.TriggerAdmin, removed)
	o.metrics.SetActiveSessions(o.store.Len())

	o.logger.Info().
		Int("removed", removed).
		Int("remaining", o.store.Len()).
		Msg("expired sessions cleaned up")
	return removed, nil
}

func (o *Orchestrator) initialized() bool {
	return o != nil && o.store != nil && o.engine != nil
}

// publish hands a recorded exchange to the transcript sink. Failures are
// logged and never fail the chat turn.
func (o *Orchestrator) publish(ctx context.Context, rec transcript.Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if err := o.sink.Record(ctx, rec); err != nil {
		o.logger.Warn().Err(err).Str("session_id", rec.SessionID).Msg("transcript record failed")
	}
}

// NormalizeSessionID returns the form of a client session id used as the
// store key. Chat and ClearSession resolve ids through it, so padded and
// unpadded ids name the same session and a blank id means none.
func NormalizeSessionID(id string) string {
	return strings.TrimSpace(id)
}

// validate trims and checks the request text and persona.
func validate(req Request) (question, persona string, err error) {
	question = strings.TrimSpace(req.Text)
	if question == "" {
		return "", "", &ValidationError{Message: MsgEmptyQuestion}
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return "", "", &ValidationError{Message: MsgQuestionTooLong}
	}
	return question, strings.TrimSpace(req.Persona), nil
}
