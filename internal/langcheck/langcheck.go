// Package langcheck sanity-checks that a draft is written in the expected
// target language, using the lingua-go statistical detector.
package langcheck

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// minCheckRunes is the minimum rune count for a reliable detection; shorter
// drafts pass without a note.
const minCheckRunes = 20

// Checker wraps a lingua language detector. Building the detector is
// expensive; reuse the instance across chunks.
type Checker struct {
	det lingua.LanguageDetector
}

// New builds a Checker covering all lingua languages.
func New() *Checker {
	return &Checker{
		det: lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build(),
	}
}

// Note returns a style note when draft does not appear to be written in
// targetLang (ISO 639-1 code), and "" when it passes or cannot be judged.
// The note feeds the critique as refinement guidance; it never blocks
// acceptance on its own.
func (c *Checker) Note(draft, targetLang string) string {
	if targetLang == "" {
		return ""
	}
	text := strings.TrimSpace(draft)
	if len([]rune(text)) < minCheckRunes {
		return ""
	}
	detected, ok := c.det.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	iso := detected.IsoCode639_1().String()
	if strings.EqualFold(iso, targetLang) {
		return ""
	}
	return fmt.Sprintf("draft reads as %s, expected %s; keep the whole output in the target language", iso, strings.ToUpper(targetLang))
}
