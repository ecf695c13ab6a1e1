// Package extractor proposes typed glossary candidates from source chunks.
//
// Extraction is model-backed, so candidate generation is only best-effort
// deterministic; what must hold is that parsing is strict and malformed model
// output surfaces as a SchemaError after one corrective re-prompt instead of
// being silently coerced or dropped.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/glossary"
)

// ChatClient is the minimal LLM capability the extractor needs.
type ChatClient interface {
	Name() string
	Chat(ctx context.Context, system, user string) (string, error)
}

// SchemaError marks model output that could not be parsed into the expected
// candidate shape even after a re-prompt. Raw preserves the payload for
// diagnosis.
type SchemaError struct {
	Backend string
	Raw     string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: malformed extraction output: %v", e.Backend, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Extractor turns chunks into typed term candidates.
type Extractor struct {
	chat ChatClient
}

// New creates an extractor over the given chat backend.
func New(chat ChatClient) *Extractor {
	return &Extractor{chat: chat}
}

// termPayload is the JSON shape the model is asked to produce.
type termPayload struct {
	Terms []struct {
		Term       string   `json:"term"`
		Type       string   `json:"type"`
		Candidates []string `json:"candidates"`
		Evidence   string   `json:"evidence"`
	} `json:"terms"`
}

const extractSystemPrompt = `You are a senior terminology director for literary translation.
Identify recurring terms in the text that must be translated consistently:
character names, places, organizations, deities, languages, titles of
identity, and domain-specific vocabulary.`

func extractUserPrompt(chunk internal.Chunk, running []glossary.TermEntry) string {
	var b strings.Builder
	if len(running) > 0 {
		b.WriteString("Terms already known from earlier chunks (reuse their renderings, do not re-invent):\n")
		for _, e := range running {
			fmt.Fprintf(&b, "- %s (%s): %s\n", e.Key, e.Type, e.SuggestedFinal())
		}
		b.WriteString("\n")
	}
	b.WriteString(`Return ONLY a JSON object of this exact shape, no commentary:
{"terms":[{"term":"<source surface form>","type":"person|location|organization|deity|language|identity-title|domain-term","candidates":["<best rendering>","<alternative>"],"evidence":"<short span from the text showing the term in context>"}]}

Text:
`)
	b.WriteString(chunk.Text)
	return b.String()
}

// Extract proposes term candidates for one chunk. running biases recall
// toward entity continuity and may be nil. The returned entries carry
// confidence-ordered candidates and the triggering evidence span; Final is
// never set here. Key extraction is idempotent for a fixed chunk+context
// pair: keys are normalized and deduplicated in first-seen order.
func (x *Extractor) Extract(ctx context.Context, chunk internal.Chunk, running []glossary.TermEntry) ([]glossary.TermEntry, error) {
	user := extractUserPrompt(chunk, running)

	raw, err := x.chat.Chat(ctx, extractSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	entries, parseErr := parseCandidates(raw)
	if parseErr == nil {
		return entries, nil
	}

	// One corrective re-prompt, then give up with the raw payload preserved.
	retryUser := fmt.Sprintf("Your previous answer was not valid JSON (%v).\n%s", parseErr, user)
	raw2, err := x.chat.Chat(ctx, extractSystemPrompt, retryUser)
	if err != nil {
		return nil, err
	}
	entries, parseErr2 := parseCandidates(raw2)
	if parseErr2 != nil {
		return nil, &SchemaError{Backend: x.chat.Name(), Raw: raw2, Err: parseErr2}
	}
	return entries, nil
}

// parseCandidates decodes the model payload into draft term entries.
// Tolerates surrounding prose by extracting the outermost JSON object, but
// nothing beyond that.
func parseCandidates(raw string) ([]glossary.TermEntry, error) {
	jsonText := raw
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			jsonText = raw[start : end+1]
		}
	}

	var payload termPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []glossary.TermEntry
	for _, t := range payload.Terms {
		key := glossary.NormalizeKey(t.Term)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		entry := glossary.TermEntry{
			Key:  key,
			Type: glossary.ParseTermType(t.Type),
		}
		if t.Evidence != "" {
			entry.Evidence = []string{t.Evidence}
		}
		for i, r := range t.Candidates {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			score := 1.0 - 0.1*float64(i)
			if score < 0.1 {
				score = 0.1
			}
			entry.Candidates = append(entry.Candidates, glossary.Candidate{
				Rendering: r,
				Score:     score,
				Source:    "extraction",
			})
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
