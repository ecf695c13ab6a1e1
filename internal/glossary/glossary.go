// Package glossary implements the project knowledge base: a canonical,
// versioned store of terms with approved target-language renderings.
//
// The knowledge base is populated from extraction candidates, mutated only
// through the human-review boundary (ApplyReview), and frozen into an
// immutable Snapshot before a translation run starts.
package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TermType classifies a knowledge-base entry.
type TermType string

const (
	TypePerson        TermType = "person"
	TypeLocation      TermType = "location"
	TypeOrganization  TermType = "organization"
	TypeDeity         TermType = "deity"
	TypeLanguage      TermType = "language"
	TypeIdentityTitle TermType = "identity-title"
	TypeDomainTerm    TermType = "domain-term"
)

// NamedEntity reports whether the type denotes a named entity.
// Named entities must keep a single approved rendering; using any other
// rendering is a major violation.
func (t TermType) NamedEntity() bool {
	switch t {
	case TypePerson, TypeLocation, TypeOrganization, TypeDeity:
		return true
	}
	return false
}

// ParseTermType maps an extraction label to a TermType. Labels may carry an
// "NE:" prefix ("NE:person") or use "org" as shorthand. Unknown labels fall
// back to domain-term rather than failing the whole candidate.
func ParseTermType(label string) TermType {
	label = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(label), "NE:")))
	switch label {
	case "person", "ne:person":
		return TypePerson
	case "location", "place", "ne:location":
		return TypeLocation
	case "organization", "org", "ne:org", "ne:organization":
		return TypeOrganization
	case "deity", "god":
		return TypeDeity
	case "language":
		return TypeLanguage
	case "identity-title", "title", "identity":
		return TypeIdentityTitle
	default:
		return TypeDomainTerm
	}
}

// Candidate is one proposed target-language rendering with its score.
// Candidates are kept in insertion order and never destructively deduplicated
// so the review sheet preserves the full audit trail.
type Candidate struct {
	Rendering string  `json:"rendering"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"` // extraction | conflict | manual
}

// Sense is one distinct meaning of a polysemous key. The context signature is
// a sorted keyword set derived from the evidence span; it is how the checker
// decides which sense a chunk is using.
type Sense struct {
	ID               string `json:"id"`
	ContextSignature string `json:"context_signature"`
	Final            string `json:"final"`
	Evidence         string `json:"evidence,omitempty"`
}

// TermEntry is a canonical vocabulary unit.
// Final is empty until human review approves a rendering; entries without a
// Final are excluded from run snapshots.
type TermEntry struct {
	Key        string      `json:"key"`
	Type       TermType    `json:"type"`
	Final      string      `json:"final"`
	Candidates []Candidate `json:"candidates"`
	Evidence   []string    `json:"evidence,omitempty"`
	Senses     []Sense     `json:"senses,omitempty"`
	Aliases    []string    `json:"aliases,omitempty"`
}

// SuggestedFinal returns the highest-scored candidate rendering, used to
// prefill the review sheet. Returns Final when already approved.
func (e *TermEntry) SuggestedFinal() string {
	if e.Final != "" {
		return e.Final
	}
	best := ""
	bestScore := -1.0
	for _, c := range e.Candidates {
		if c.Score > bestScore {
			best, bestScore = c.Rendering, c.Score
		}
	}
	return best
}

// KnowledgeBase maps normalized keys to term entries. It is not safe for
// concurrent mutation; translation runs operate on a Snapshot instead.
type KnowledgeBase struct {
	Version      int
	WorldSummary string

	entries map[string]*TermEntry
	order   []string // insertion order of normalized keys, for stable export
}

// New creates an empty knowledge base at version 1.
func New() *KnowledgeBase {
	return &KnowledgeBase{
		Version: 1,
		entries: make(map[string]*TermEntry),
	}
}

// NormalizeKey trims whitespace and applies Unicode NFC normalization so
// lookups are stable across extraction passes.
func NormalizeKey(key string) string {
	return norm.NFC.String(strings.TrimSpace(key))
}

// Len returns the number of entries.
func (kb *KnowledgeBase) Len() int { return len(kb.entries) }

// Lookup returns the entry for key (or an alias of it), if any.
func (kb *KnowledgeBase) Lookup(key string) (*TermEntry, bool) {
	k := NormalizeKey(key)
	if e, ok := kb.entries[k]; ok {
		return e, true
	}
	for _, e := range kb.entries {
		for _, alias := range e.Aliases {
			if NormalizeKey(alias) == k {
				return e, true
			}
		}
	}
	return nil, false
}

// Entries returns all entries in insertion order.
func (kb *KnowledgeBase) Entries() []*TermEntry {
	out := make([]*TermEntry, 0, len(kb.order))
	for _, k := range kb.order {
		out = append(out, kb.entries[k])
	}
	return out
}

func (kb *KnowledgeBase) insert(e *TermEntry) {
	k := NormalizeKey(e.Key)
	e.Key = k
	kb.entries[k] = e
	kb.order = append(kb.order, k)
}

// glossaryFile is the on-disk JSON layout, compatible with the review tooling.
type glossaryFile struct {
	Version      int          `json:"version"`
	WorldSummary string       `json:"world_summary,omitempty"`
	Entries      []*TermEntry `json:"entries"`
}

// Load reads a knowledge base from a JSON file.
func Load(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}
	var f glossaryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse glossary: %w", err)
	}
	kb := New()
	if f.Version > 0 {
		kb.Version = f.Version
	}
	kb.WorldSummary = f.WorldSummary
	for _, e := range f.Entries {
		if NormalizeKey(e.Key) == "" {
			continue
		}
		kb.insert(e)
	}
	return kb, nil
}

// Save writes the knowledge base next to path as glossary_v{version}.json,
// bumping the version first. Returns the versioned path written.
func (kb *KnowledgeBase) Save(path string) (string, error) {
	kb.Version++
	versioned := filepath.Join(filepath.Dir(path), fmt.Sprintf("glossary_v%d.json", kb.Version))
	if err := kb.write(versioned); err != nil {
		return "", err
	}
	// Keep the unversioned name pointing at the latest revision.
	if err := kb.write(path); err != nil {
		return "", err
	}
	return versioned, nil
}

func (kb *KnowledgeBase) write(path string) error {
	f := glossaryFile{
		Version:      kb.Version,
		WorldSummary: kb.WorldSummary,
		Entries:      kb.Entries(),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode glossary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create glossary directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write glossary: %w", err)
	}
	return nil
}

// ReviewedEntry is one row coming back from the human-review boundary.
type ReviewedEntry struct {
	Key    string
	Type   TermType
	Final  string
	Senses []Sense
}

// ApplyReview applies reviewed rows to the knowledge base. This is the only
// path that sets Final on existing entries or senses. Rows for unknown keys
// are added as manual entries. Returns the number of entries changed.
func (kb *KnowledgeBase) ApplyReview(rows []ReviewedEntry) int {
	changed := 0
	for _, row := range rows {
		k := NormalizeKey(row.Key)
		if k == "" {
			continue
		}
		e, ok := kb.entries[k]
		if !ok {
			e = &TermEntry{Key: k, Type: row.Type}
			kb.insert(e)
		}
		if row.Final != "" && row.Final != e.Final {
			e.Final = row.Final
			e.Candidates = append(e.Candidates, Candidate{
				Rendering: row.Final,
				Score:     1.0,
				Source:    "manual",
			})
			changed++
		}
		if mergeSenses(e, row.Senses) {
			changed++
		}
		if row.Type != "" {
			e.Type = row.Type
		}
	}
	return changed
}

// mergeSenses applies reviewed senses by ID so a row that only carries an
// ID and a final keeps the sense's stored context signature. Unknown IDs are
// appended. Reports whether anything changed.
func mergeSenses(e *TermEntry, senses []Sense) bool {
	changed := false
	for _, s := range senses {
		if s.ID == "" {
			continue
		}
		found := false
		for i := range e.Senses {
			if e.Senses[i].ID != s.ID {
				continue
			}
			found = true
			if s.Final != "" && s.Final != e.Senses[i].Final {
				e.Senses[i].Final = s.Final
				changed = true
			}
			if s.ContextSignature != "" {
				e.Senses[i].ContextSignature = s.ContextSignature
			}
			break
		}
		if !found {
			e.Senses = append(e.Senses, s)
			changed = true
		}
	}
	return changed
}
