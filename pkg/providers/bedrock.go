package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// ConverseAPI is the slice of the Bedrock runtime client the invoker uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockInvoker runs completions through the Bedrock Converse API. This is
// the default backend.
type BedrockInvoker struct {
	client    ConverseAPI
	model     string
	maxTokens int32
}

func NewBedrockInvoker(client ConverseAPI, model string, maxTokens int64) *BedrockInvoker {
	return &BedrockInvoker{
		client:    client,
		model:     model,
		maxTokens: int32(maxTokens),
	}
}

func (b *BedrockInvoker) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(b.maxTokens),
		},
	})
	if err != nil {
		return "", &InferenceError{Provider: "bedrock", Err: err}
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(msg.Value.Content) == 0 {
		return "", &MalformedResponseError{Provider: "bedrock", Detail: "empty output message"}
	}
	text, ok := msg.Value.Content[0].(*types.ContentBlockMemberText)
	if !ok {
		return "", &MalformedResponseError{Provider: "bedrock", Detail: "first content block is not text"}
	}
	return text.Value, nil
}
