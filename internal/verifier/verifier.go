// Package verifier scores a draft translation by round-tripping it back to
// the source language and measuring how much of the original it restores.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ostrovsky/tearloop/internal/translator"
)

// Verifier back-translates drafts through an external translation backend.
// The backend should be independent of the one that produced the draft, or
// the round trip just measures the model's self-consistency.
type Verifier struct {
	back       translator.Translator
	sourceLang string
	targetLang string
}

// New creates a Verifier that translates drafts from targetLang back to
// sourceLang using back.
func New(back translator.Translator, sourceLang, targetLang string) *Verifier {
	return &Verifier{back: back, sourceLang: sourceLang, targetLang: targetLang}
}

// Verify round-trips draft to the source language and returns the fidelity
// score together with the back-translated text for audit. Failures of the
// external call are retryable, not fatal.
func (v *Verifier) Verify(ctx context.Context, draft, source string) (float64, string, error) {
	res, err := v.back.Translate(ctx, translator.Request{
		Text:       draft,
		SourceLang: v.targetLang,
		TargetLang: v.sourceLang,
	})
	if err != nil {
		return 0, "", fmt.Errorf("back-translation failed: %w", err)
	}
	return Fidelity(res.Text, source), res.Text, nil
}

// Fidelity measures how much of source is restored by backTranslation, in
// [0, 1]. It is the multiset recall of the source's rune bigrams: the share
// of source bigrams (with multiplicity) that also occur in the back
// translation. Restoring strictly more source content can only add covered
// bigrams, so the score is monotonic in correctly-restored content.
//
// Rune bigrams need no word segmentation, which keeps the metric usable for
// CJK sources.
func Fidelity(backTranslation, source string) float64 {
	sourceBigrams := bigrams(source)
	if len(sourceBigrams) == 0 {
		if strings.TrimSpace(backTranslation) == strings.TrimSpace(source) {
			return 1.0
		}
		return 0.0
	}

	backCounts := make(map[string]int)
	for _, bg := range bigrams(backTranslation) {
		backCounts[bg]++
	}

	covered := 0
	for _, bg := range sourceBigrams {
		if backCounts[bg] > 0 {
			backCounts[bg]--
			covered++
		}
	}
	return float64(covered) / float64(len(sourceBigrams))
}

// bigrams returns the overlapping rune bigrams of text, ignoring whitespace
// and punctuation and folding case.
func bigrams(text string) []string {
	var runes []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		runes = append(runes, r)
	}
	if len(runes) < 2 {
		if len(runes) == 1 {
			return []string{string(runes)}
		}
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
