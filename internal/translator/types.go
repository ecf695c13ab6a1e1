// Package translator defines the external translation capability and its
// backends. Backends are interchangeable: an LLM backend (Ollama or any
// OpenAI-compatible endpoint) honors the glossary block and refinement
// feedback in the request, while the Google Cloud Translation backend
// ignores them and is mainly used for the back-translation round trip.
package translator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request carries everything a backend may use for one translation call.
// GlossaryBlock, ContextTail, Feedback and PriorDraft are advisory: plain
// machine-translation backends ignore them.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	Title      string

	// ContextTail is the tail of the preceding chunk, for continuity.
	ContextTail string
	// GlossaryBlock is the strict-glossary prompt section for this chunk.
	GlossaryBlock string
	// PriorDraft and Feedback are set on refinement passes: the draft being
	// repaired and the critique's required fixes.
	PriorDraft string
	Feedback   []string
}

// Result is one backend's answer.
type Result struct {
	Text    string
	Backend string
	Model   string
	Latency time.Duration
}

// Translator is the external translation capability.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req Request) (*Result, error)
}

// ExternalError marks a transport-level failure of an external call:
// timeouts, rate limits, non-2xx responses. These are retryable up to the
// run's retry budget.
type ExternalError struct {
	Backend string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: external call failed: %v", e.Backend, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsExternal reports whether err is (or wraps) an external-call failure.
func IsExternal(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee)
}
