package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ostrovsky/tearloop/internal/postprocess"
)

// OllamaTranslator calls a self-hosted Ollama model.
type OllamaTranslator struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaTranslator creates a translator backed by a local Ollama model.
func NewOllamaTranslator(baseURL, model string) *OllamaTranslator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaTranslator{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

func (s *OllamaTranslator) Name() string { return "ollama" }

func (s *OllamaTranslator) Translate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	prompt := buildDraftPrompt(req)
	if isRefinement(req) {
		prompt = buildRefinePrompt(req)
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  s.model,
		System: draftSystemPrompt(req.TargetLang),
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", s.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &ExternalError{Backend: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ExternalError{Backend: s.Name(), Err: fmt.Errorf("API returned status %d", resp.StatusCode)}
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ExternalError{Backend: s.Name(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	text := postprocess.Clean(out.Response)
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

// IsAvailable checks that the Ollama endpoint answers.
func (s *OllamaTranslator) IsAvailable(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/tags", s.baseURL), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not available: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}
