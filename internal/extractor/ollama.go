package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ostrovsky/tearloop/internal/translator"
)

// OllamaChat is a ChatClient over a self-hosted Ollama endpoint.
type OllamaChat struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaChat creates a chat client for extraction.
func NewOllamaChat(baseURL, model string) *OllamaChat {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaChat{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

func (c *OllamaChat) Name() string { return "ollama" }

func (c *OllamaChat) Chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.model,
		"system": system,
		"prompt": user,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", c.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &translator.ExternalError{Backend: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &translator.ExternalError{Backend: c.Name(), Err: fmt.Errorf("API returned status %d", resp.StatusCode)}
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &translator.ExternalError{Backend: c.Name(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return out.Response, nil
}
