package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/jenkinsbot/internal/llm/inference"
	"github.com/aixgo-dev/jenkinsbot/internal/llm/prompt"
)

func testConfig() BotConfig {
	cfg := DefaultBotConfig()
	cfg.Model = "jenkins-test"
	return cfg
}

func TestBot_LoadAndGenerate(t *testing.T) {
	svc := inference.NewMockInferenceService("  Use the Blue Ocean plugin.\n")
	bot := NewBot(svc, testConfig())

	assert.False(t, bot.Loaded())
	require.NoError(t, bot.Load(context.Background()))
	assert.True(t, bot.Loaded())

	answer, err := bot.Generate(context.Background(), "How do I visualize pipelines?", "Human: hi\nAI: hello", "Be brief.")
	require.NoError(t, err)
	assert.Equal(t, "Use the Blue Ocean plugin.", answer)

	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "jenkins-test", reqs[0].Model)
	assert.Equal(t, 512, reqs[0].MaxTokens)
	assert.Equal(t, 0.7, reqs[0].Temperature)
	assert.Equal(t, prompt.NewTemplate("").Render("How do I visualize pipelines?", "Human: hi\nAI: hello", "Be brief."), reqs[0].Prompt)
}

func TestBot_GenerateLoadsLazily(t *testing.T) {
	svc := inference.NewMockInferenceService("ok")
	bot := NewBot(svc, testConfig())

	_, err := bot.Generate(context.Background(), "q", "", "")
	require.NoError(t, err)
	assert.True(t, bot.Loaded())
}

func TestBot_Unavailable(t *testing.T) {
	svc := inference.NewMockInferenceService("ok")
	svc.SetAvailable(false)
	bot := NewBot(svc, testConfig())

	assert.ErrorIs(t, bot.Load(context.Background()), ErrModelNotLoaded)
	assert.False(t, bot.Loaded())

	_, err := bot.Generate(context.Background(), "q", "", "")
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	assert.Empty(t, svc.Requests())
}

func TestBot_NilService(t *testing.T) {
	bot := NewBot(nil, testConfig())
	assert.ErrorIs(t, bot.Load(context.Background()), ErrModelNotLoaded)
}

func TestBot_GenerateError(t *testing.T) {
	svc := inference.NewMockInferenceService("ok")
	boom := errors.New("backend exploded")
	bot := NewBot(svc, testConfig())
	require.NoError(t, bot.Load(context.Background()))

	svc.SetError(boom)
	_, err := bot.Generate(context.Background(), "q", "", "")
	assert.ErrorIs(t, err, boom)
}

func TestBot_LongPromptStillGenerates(t *testing.T) {
	svc := inference.NewMockInferenceService("ok")
	cfg := testConfig()
	cfg.ContextWindow = 64

	est, err := prompt.NewEstimator()
	require.NoError(t, err)
	bot := NewBot(svc, cfg, WithEstimator(est))

	history := strings.Repeat("Human: how do agents work?\nAI: they run builds.\n", 50)
	answer, err := bot.Generate(context.Background(), "and executors?", history, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)

	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, history)
}

func TestBot_CancelledContext(t *testing.T) {
	bot := NewBot(inference.NewMockInferenceService("ok"), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bot.Generate(ctx, "q", "", "")
	assert.ErrorIs(t, err, context.Canceled)
}
