package caption

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"photopipe/internal/domain"
)

const defaultBedrockModel = "us.deepseek.r1-v1:0"

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type BedrockOptions struct {
	ModelID string
	Options Options
}

// BedrockGenerator captions through the Bedrock Converse API.
type BedrockGenerator struct {
	client  converseAPI
	modelID string
	opts    Options
}

func NewBedrockGenerator(client *bedrockruntime.Client, opts BedrockOptions) *BedrockGenerator {
	return newBedrockGenerator(client, opts)
}

func newBedrockGenerator(client converseAPI, opts BedrockOptions) *BedrockGenerator {
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = defaultBedrockModel
	}
	inference := opts.Options
	if inference == (Options{}) {
		inference = DefaultOptions()
	}
	return &BedrockGenerator{client: client, modelID: modelID, opts: inference}
}

func (g *BedrockGenerator) Generate(ctx context.Context, labels []string) (string, error) {
	out, err := g.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: userPrompt(labels)}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(g.opts.MaxTokens),
			Temperature: aws.Float32(g.opts.Temperature),
			TopP:        aws.Float32(g.opts.TopP),
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("bedrock %s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), domain.ErrProviderFailure)
		}
		return "", fmt.Errorf("bedrock: %w: %v", domain.ErrProviderFailure, err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock: unexpected output %T: %w", out.Output, domain.ErrProviderFailure)
	}
	var texts []string
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberReasoningContent:
			continue
		case *types.ContentBlockMemberText:
			texts = append(texts, b.Value)
		}
	}
	return extractCaption(strings.Join(texts, "\n"))
}

var _ domain.CaptionGenerator = (*BedrockGenerator)(nil)
