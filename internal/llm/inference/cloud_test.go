package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGemini struct {
	model  string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeGemini) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func TestGeminiService_Generate(t *testing.T) {
	fake := &fakeGemini{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "Use "}, {Text: "agents."}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     7,
			CandidatesTokenCount: 2,
			TotalTokenCount:      9,
		},
	}}
	svc := &GeminiService{models: fake}

	resp, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "q", MaxTokens: 100, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Use agents.", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
	assert.Equal(t, defaultGeminiModel, fake.model)
	assert.Equal(t, int32(100), fake.config.MaxOutputTokens)
	assert.True(t, svc.Available())
}

func TestGeminiService_Errors(t *testing.T) {
	svc := &GeminiService{models: &fakeGemini{err: errors.New("quota")}}
	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	assert.ErrorContains(t, err, "quota")

	svc = &GeminiService{models: &fakeGemini{resp: &genai.GenerateContentResponse{}}}
	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	assert.Error(t, err)
}

func TestNewGeminiService_RequiresKey(t *testing.T) {
	_, err := NewGeminiService(context.Background(), "")
	assert.Error(t, err)
}

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockService_Generate(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "Restart with /safeRestart."}},
		}},
		StopReason: types.StopReasonEndTurn,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}}
	svc := &BedrockService{client: fake}

	resp, err := svc.Generate(context.Background(), GenerateRequest{
		Model:     "meta.llama2-13b-chat-v1",
		Prompt:    "How do I restart?",
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, "Restart with /safeRestart.", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.NotNil(t, fake.input)
	assert.Equal(t, "meta.llama2-13b-chat-v1", aws.ToString(fake.input.ModelId))
	assert.Equal(t, int32(256), aws.ToInt32(fake.input.InferenceConfig.MaxTokens))
	require.Len(t, fake.input.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, fake.input.Messages[0].Role)
}

func TestBedrockService_Errors(t *testing.T) {
	svc := &BedrockService{client: &fakeConverse{err: errors.New("throttled")}}
	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	assert.ErrorContains(t, err, "throttled")

	svc = &BedrockService{client: &fakeConverse{out: &bedrockruntime.ConverseOutput{}}}
	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	assert.Error(t, err)
}
