package translator

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ostrovsky/tearloop/internal/postprocess"
)

// OpenAITranslator calls an OpenAI-compatible chat completion endpoint.
// A custom base URL covers compatible providers (OpenRouter, vLLM, etc).
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

// NewOpenAITranslator creates a translator backed by an OpenAI-compatible API.
func NewOpenAITranslator(apiKey, baseURL, model string) *OpenAITranslator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAITranslator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *OpenAITranslator) Name() string { return "openai" }

func (s *OpenAITranslator) Translate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	prompt := buildDraftPrompt(req)
	temperature := float32(0.3)
	if isRefinement(req) {
		prompt = buildRefinePrompt(req)
		temperature = 0.2
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: draftSystemPrompt(req.TargetLang)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return nil, &ExternalError{Backend: s.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ExternalError{Backend: s.Name(), Err: fmt.Errorf("no completion returned")}
	}

	text := postprocess.Clean(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, &ExternalError{Backend: s.Name(), Err: fmt.Errorf("empty translation returned")}
	}

	return &Result{
		Text:    text,
		Backend: s.Name(),
		Model:   s.model,
		Latency: time.Since(start),
	}, nil
}
