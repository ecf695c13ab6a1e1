package extractor

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ostrovsky/tearloop/internal/translator"
)

// OpenAIChat is a ChatClient over an OpenAI-compatible API.
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// NewOpenAIChat creates a chat client for extraction. A custom baseURL
// covers compatible providers.
func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChat{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIChat) Name() string { return "openai" }

func (c *OpenAIChat) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", &translator.ExternalError{Backend: c.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &translator.ExternalError{Backend: c.Name(), Err: fmt.Errorf("no completion returned")}
	}
	return resp.Choices[0].Message.Content, nil
}
