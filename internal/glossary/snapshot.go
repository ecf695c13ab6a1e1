package glossary

import (
	"fmt"
	"strings"
)

// Snapshot is an immutable, run-scoped view of the knowledge base.
// Only entries with an approved Final are included. The snapshot deep-copies
// every entry, so later knowledge-base mutation is never visible to a run in
// flight, and it is safe to share across concurrent chunk workers without
// locking.
type Snapshot struct {
	version      int
	worldSummary string
	entries      []*TermEntry
	byKey        map[string]*TermEntry
}

// Snapshot freezes the current knowledge base for a translation run.
func (kb *KnowledgeBase) Snapshot() *Snapshot {
	s := &Snapshot{
		version:      kb.Version,
		worldSummary: kb.WorldSummary,
		byKey:        make(map[string]*TermEntry),
	}
	for _, k := range kb.order {
		e := kb.entries[k]
		if e.Final == "" {
			continue
		}
		cp := copyEntry(e)
		s.entries = append(s.entries, cp)
		s.byKey[cp.Key] = cp
	}
	return s
}

func copyEntry(e *TermEntry) *TermEntry {
	cp := *e
	cp.Candidates = append([]Candidate(nil), e.Candidates...)
	cp.Evidence = append([]string(nil), e.Evidence...)
	cp.Senses = append([]Sense(nil), e.Senses...)
	cp.Aliases = append([]string(nil), e.Aliases...)
	return &cp
}

// Version returns the knowledge-base version the snapshot was taken at.
func (s *Snapshot) Version() int { return s.version }

// Len returns the number of active entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Lookup returns the active entry for a normalized key.
func (s *Snapshot) Lookup(key string) (*TermEntry, bool) {
	e, ok := s.byKey[NormalizeKey(key)]
	return e, ok
}

// RelevantTerms returns the active entries whose key (or an alias) occurs in
// sourceText, named entities first, capped at max (≤0 means no cap). The
// result order is deterministic: snapshot order within each group.
func (s *Snapshot) RelevantTerms(sourceText string, max int) []*TermEntry {
	var named, other []*TermEntry
	for _, e := range s.entries {
		if !termOccurs(e, sourceText) {
			continue
		}
		if e.Type.NamedEntity() {
			named = append(named, e)
		} else {
			other = append(other, e)
		}
	}
	out := append(named, other...)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func termOccurs(e *TermEntry, text string) bool {
	if strings.Contains(text, e.Key) {
		return true
	}
	for _, alias := range e.Aliases {
		if alias != "" && strings.Contains(text, alias) {
			return true
		}
	}
	return false
}

// PromptBlock renders the strict-glossary section injected into translation
// prompts: only the terms relevant to sourceText, plus the world summary.
func (s *Snapshot) PromptBlock(sourceText string) string {
	const maxPromptTerms = 20
	terms := s.RelevantTerms(sourceText, maxPromptTerms)
	if len(terms) == 0 && s.worldSummary == "" {
		return "No glossary available."
	}

	var b strings.Builder
	b.WriteString("## Strict Glossary:\n")
	b.WriteString("The following renderings are mandatory and must not be changed:\n")
	for _, e := range terms {
		fmt.Fprintf(&b, "- %s -> %s (%s)\n", e.Key, e.Final, e.Type)
		for _, sense := range e.Senses {
			if sense.Final != "" {
				fmt.Fprintf(&b, "  - sense %s -> %s\n", sense.ID, sense.Final)
			}
		}
	}
	if s.worldSummary != "" {
		b.WriteString("\n## World Summary:\n")
		b.WriteString(s.worldSummary)
		b.WriteString("\n")
	}
	return b.String()
}
