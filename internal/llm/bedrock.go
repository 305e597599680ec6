package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockInvoker answers prompts through the Bedrock Converse API.
type BedrockInvoker struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockInvoker(api bedrockConverseAPI, modelID string) (*BedrockInvoker, error) {
	if api == nil {
		return nil, errors.New("llm: bedrock converse client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	return &BedrockInvoker{api: api, modelID: modelID}, nil
}

func (c *BedrockInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return bedrockOutputText(out)
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("llm: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("llm: bedrock response did not include a message output")
	}
	if len(msgOut.Value.Content) == 0 {
		return "", errors.New("llm: bedrock response message was empty")
	}

	var sb strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(textBlock.Value)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("llm: bedrock response contained no text content blocks")
	}
	return text, nil
}
