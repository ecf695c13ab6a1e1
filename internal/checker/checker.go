// Package checker detects glossary violations in a translated chunk.
//
// The check is a pure function of (translated text, source chunk, snapshot):
// it never consults iteration history, so the same draft checked twice yields
// the same violation set.
package checker

import (
	"strings"

	"github.com/ostrovsky/tearloop/internal/glossary"
)

// ViolationKind classifies a glossary violation.
type ViolationKind string

const (
	// KindMissing: neither the approved rendering nor any known candidate
	// appears in the translation.
	KindMissing ViolationKind = "missing"
	// KindInconsistent: a known candidate rendering was used instead of the
	// approved one.
	KindInconsistent ViolationKind = "inconsistent"
	// KindWrongSense: the rendering of a different sense of the key was used.
	KindWrongSense ViolationKind = "wrong-sense"
)

// Violation is one detected mismatch between a chunk's translation and the
// canonical rendering of a term that occurs in its source.
type Violation struct {
	TermKey  string        `json:"term_key"`
	Expected string        `json:"expected"`
	Found    string        `json:"found"`
	Kind     ViolationKind `json:"kind"`
	// Span is the byte offset of Found in the translated text, or of the key
	// in the source text for missing violations.
	Span int `json:"span"`
}

// Minor reports whether the violation may be tolerated when the run allows
// minor violations: a non-named-entity term rendered with a known candidate
// instead of the approved form.
func (v Violation) Minor(termType glossary.TermType) bool {
	return v.Kind == KindInconsistent && !termType.NamedEntity()
}

// Check verifies translated against the snapshot for every term whose key
// occurs in source. The result is ordered by snapshot entry order and is
// deterministic for a fixed input triple.
func Check(translated, source string, snap *glossary.Snapshot) []Violation {
	violations := []Violation{}
	lowerTranslated := strings.ToLower(translated)

	for _, entry := range snap.RelevantTerms(source, 0) {
		if v, ok := checkEntry(entry, translated, lowerTranslated, source); ok {
			violations = append(violations, v)
		}
	}
	return violations
}

func checkEntry(entry *glossary.TermEntry, translated, lowerTranslated, source string) (Violation, bool) {
	expected := expectedRendering(entry, source)
	if expected == "" {
		return Violation{}, false
	}

	if idx := strings.Index(lowerTranslated, strings.ToLower(expected)); idx >= 0 {
		return Violation{}, false
	}

	// Approved rendering absent. A different sense's rendering counts as
	// wrong-sense; any other known candidate counts as inconsistent.
	for _, sense := range entry.Senses {
		if sense.Final == "" || sense.Final == expected {
			continue
		}
		if idx := strings.Index(lowerTranslated, strings.ToLower(sense.Final)); idx >= 0 {
			return Violation{
				TermKey:  entry.Key,
				Expected: expected,
				Found:    sense.Final,
				Kind:     KindWrongSense,
				Span:     idx,
			}, true
		}
	}

	for _, cand := range entry.Candidates {
		if cand.Rendering == "" || strings.EqualFold(cand.Rendering, expected) {
			continue
		}
		if idx := strings.Index(lowerTranslated, strings.ToLower(cand.Rendering)); idx >= 0 {
			return Violation{
				TermKey:  entry.Key,
				Expected: expected,
				Found:    cand.Rendering,
				Kind:     KindInconsistent,
				Span:     idx,
			}, true
		}
	}

	return Violation{
		TermKey:  entry.Key,
		Expected: expected,
		Kind:     KindMissing,
		Span:     sourceSpan(entry, source),
	}, true
}

// sourceSpan locates the term in the source, falling back to its aliases
// when only an alias occurs there.
func sourceSpan(entry *glossary.TermEntry, source string) int {
	if idx := strings.Index(source, entry.Key); idx >= 0 {
		return idx
	}
	for _, alias := range entry.Aliases {
		if alias == "" {
			continue
		}
		if idx := strings.Index(source, alias); idx >= 0 {
			return idx
		}
	}
	return -1
}

// expectedRendering picks the rendering the chunk should use: the sense whose
// context signature matches the source chunk when the key is polysemous,
// otherwise the entry's approved Final.
func expectedRendering(entry *glossary.TermEntry, source string) string {
	if len(entry.Senses) > 0 {
		sourceSig := glossary.ContextSignature(source)
		for _, sense := range entry.Senses {
			if sense.Final == "" || sense.ContextSignature == "" {
				continue
			}
			if glossary.SignaturesSimilar(sense.ContextSignature, sourceSig) {
				return sense.Final
			}
		}
	}
	return entry.Final
}
