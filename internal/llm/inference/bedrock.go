package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultBedrockModel = "meta.llama3-8b-instruct-v1:0"

// converseAPI is the subset of *bedrockruntime.Client used here.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockService implements InferenceService with the Bedrock Converse API.
type BedrockService struct {
	client converseAPI
}

// NewBedrockService loads AWS credentials from the default chain.
// An empty region defers to AWS_REGION and the shared config.
func NewBedrockService(ctx context.Context, region string) (*BedrockService, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockService{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

// Generate sends the prompt as a single user message.
func (b *BedrockService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultBedrockModel
	}

	inferenceConfig := &types.InferenceConfiguration{
		Temperature:   aws.Float32(float32(req.Temperature)),
		StopSequences: req.Stop,
	}
	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		inferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}

	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: req.Prompt},
			},
		}},
		InferenceConfig: inferenceConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock returned no message")
	}

	var text strings.Builder
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}

	var usage Usage
	if out.Usage != nil {
		usage.PromptTokens = int(aws.ToInt32(out.Usage.InputTokens))
		usage.CompletionTokens = int(aws.ToInt32(out.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(out.Usage.TotalTokens))
	}

	return &GenerateResponse{
		Text:         text.String(),
		FinishReason: string(out.StopReason),
		Usage:        usage,
	}, nil
}

// Available reports whether a client was configured.
func (b *BedrockService) Available() bool {
	return b.client != nil
}
