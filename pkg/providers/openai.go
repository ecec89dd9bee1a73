package providers

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIInvoker runs completions against the Chat Completions API, selected
// with SLACKRELAY_AI_PROVIDER=openai.
type OpenAIInvoker struct {
	client openai.Client
	model  string
}

func NewOpenAIInvoker(apiKey, model string) *OpenAIInvoker {
	return &OpenAIInvoker{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAIInvoker) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", &InferenceError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &MalformedResponseError{Provider: "openai", Detail: "no completion choice with content"}
	}
	return resp.Choices[0].Message.Content, nil
}
