package providers

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicInvoker runs completions against the Anthropic Messages API,
// selected with SLACKRELAY_AI_PROVIDER=anthropic.
type AnthropicInvoker struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicInvoker(apiKey, model string, maxTokens int64) *AnthropicInvoker {
	return &AnthropicInvoker{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (a *AnthropicInvoker) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", &InferenceError{Provider: "anthropic", Err: err}
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", &MalformedResponseError{Provider: "anthropic", Detail: "no text block in response"}
}
