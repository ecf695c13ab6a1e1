package translator

import (
	"context"
	"fmt"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleTranslator calls the Google Cloud Translation API. It ignores the
// glossary block and feedback; it is a plain machine-translation backend,
// which is what the back-translation round trip wants: an engine independent
// of the one that produced the draft.
type GoogleTranslator struct {
	credentials string
}

// NewGoogleTranslator creates a Google Cloud Translation backend.
// credentials may be empty to use application default credentials.
func NewGoogleTranslator(credentials string) *GoogleTranslator {
	return &GoogleTranslator{credentials: credentials}
}

func (s *GoogleTranslator) Name() string { return "google" }

func (s *GoogleTranslator) Translate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	targetTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", req.TargetLang, err)
	}

	var opts []option.ClientOption
	if s.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, &ExternalError{Backend: s.Name(), Err: fmt.Errorf("failed to create client: %w", err)}
	}
	defer client.Close()

	var translateOpts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceTag, err := language.Parse(req.SourceLang)
		if err != nil {
			return nil, fmt.Errorf("invalid source language %q: %w", req.SourceLang, err)
		}
		translateOpts = &translate.Options{Source: sourceTag}
	}

	translations, err := client.Translate(ctx, []string{req.Text}, targetTag, translateOpts)
	if err != nil {
		return nil, &ExternalError{Backend: s.Name(), Err: err}
	}
	if len(translations) == 0 {
		return nil, &ExternalError{Backend: s.Name(), Err: fmt.Errorf("no translation returned")}
	}

	return &Result{
		Text:    translations[0].Text,
		Backend: s.Name(),
		Latency: time.Since(start),
	}, nil
}
