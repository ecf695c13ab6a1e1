package glossary

import (
	"strings"
	"testing"
)

func TestMerge_NewKey(t *testing.T) {
	kb := New()
	report := kb.Merge([]TermEntry{{
		Key:  "非凡者",
		Type: TypeDomainTerm,
		Candidates: []Candidate{
			{Rendering: "Beyonder"},
			{Rendering: "Extraordinary"},
		},
		Evidence: []string{"成为非凡者之后"},
	}})

	if report.Added != 1 {
		t.Fatalf("expected 1 added, got %d", report.Added)
	}
	e, ok := kb.Lookup("非凡者")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if e.Final != "" {
		t.Errorf("extraction must never set Final, got %q", e.Final)
	}
	if len(e.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(e.Candidates))
	}
	if e.Candidates[0].Score != 1.0 || e.Candidates[1].Score != 0.9 {
		t.Errorf("expected confidence-ordered scores 1.0/0.9, got %.1f/%.1f",
			e.Candidates[0].Score, e.Candidates[1].Score)
	}
	if e.Candidates[0].Source != "extraction" {
		t.Errorf("expected source extraction, got %q", e.Candidates[0].Source)
	}
}

func TestMerge_NamedEntityFinalFrozen(t *testing.T) {
	kb := New()
	kb.insert(&TermEntry{
		Key:   "克莱恩·莫雷蒂",
		Type:  TypePerson,
		Final: "Klein Moretti",
		Candidates: []Candidate{
			{Rendering: "Klein Moretti", Score: 1.0, Source: "manual"},
		},
	})

	report := kb.Merge([]TermEntry{{
		Key:  "克莱恩·莫雷蒂",
		Type: TypePerson,
		Candidates: []Candidate{
			{Rendering: "Clay En Moretti"},
		},
		Evidence: []string{"克莱恩·莫雷蒂推开了门"},
	}})

	e, _ := kb.Lookup("克莱恩·莫雷蒂")
	if e.Final != "Klein Moretti" {
		t.Fatalf("approved named-entity Final must be frozen, got %q", e.Final)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(report.Conflicts))
	}
	if report.Conflicts[0].Action != "kept-existing" {
		t.Errorf("expected kept-existing, got %q", report.Conflicts[0].Action)
	}

	found := false
	for _, c := range e.Candidates {
		if c.Rendering == "Clay En Moretti" {
			found = true
			if c.Source != "conflict" || c.Score != 0.5 {
				t.Errorf("diverging rendering should be a conflict candidate, got %+v", c)
			}
		}
	}
	if !found {
		t.Error("diverging rendering should be recorded for audit")
	}
}

func TestMerge_SimilarContextBoostsScore(t *testing.T) {
	evidence := "the ancient dragon guarded enormous treasure beneath the mountain"

	kb := New()
	kb.Merge([]TermEntry{{
		Key:  "巨龙",
		Type: TypeDomainTerm,
		Candidates: []Candidate{
			{Rendering: "wyrm"},
			{Rendering: "dragon"}, // score 0.9 from insertion order
		},
		Evidence: []string{evidence},
	}})

	report := kb.Merge([]TermEntry{{
		Key:        "巨龙",
		Type:       TypeDomainTerm,
		Candidates: []Candidate{{Rendering: "dragon"}},
		Evidence:   []string{evidence},
	}})

	if len(report.Conflicts) != 1 || report.Conflicts[0].Action != "merged" {
		t.Fatalf("expected a merged conflict, got %+v", report.Conflicts)
	}
	e, _ := kb.Lookup("巨龙")
	if len(e.Candidates) != 2 {
		t.Fatalf("same rendering should merge, got %d candidates", len(e.Candidates))
	}
	var dragonScore float64
	for _, c := range e.Candidates {
		if c.Rendering == "dragon" {
			dragonScore = c.Score
		}
	}
	if dragonScore <= 0.9 {
		t.Errorf("repeated rendering should gain score above 0.9, got %.2f", dragonScore)
	}
	if len(e.Senses) != 0 {
		t.Errorf("similar contexts must not split a sense, got %d senses", len(e.Senses))
	}
}

func TestMerge_DissimilarContextSplitsSense(t *testing.T) {
	kb := New()
	kb.Merge([]TermEntry{{
		Key:        "晋升",
		Type:       TypeDomainTerm,
		Candidates: []Candidate{{Rendering: "advancement"}},
		Evidence:   []string{"the ancient dragon guarded enormous treasure beneath the mountain"},
	}})

	report := kb.Merge([]TermEntry{{
		Key:        "晋升",
		Type:       TypeDomainTerm,
		Candidates: []Candidate{{Rendering: "promotion"}},
		Evidence:   []string{"quarterly budget meetings discussed corporate salary structures"},
	}})

	if len(report.Conflicts) != 1 || report.Conflicts[0].Action != "split-sense" {
		t.Fatalf("expected a split-sense conflict, got %+v", report.Conflicts)
	}

	e, _ := kb.Lookup("晋升")
	if len(e.Senses) != 1 {
		t.Fatalf("expected 1 sense, got %d", len(e.Senses))
	}
	sense := e.Senses[0]
	if sense.ID != "晋升#1" {
		t.Errorf("expected sense ID 晋升#1, got %q", sense.ID)
	}
	if sense.Final != "promotion" {
		t.Errorf("expected sense final 'promotion', got %q", sense.Final)
	}
	if sense.ContextSignature == "" {
		t.Error("split sense must carry a context signature")
	}
}

func TestMerge_SkipsEmptyKeys(t *testing.T) {
	kb := New()
	report := kb.Merge([]TermEntry{{Key: "   "}})
	if report.Added != 0 || kb.Len() != 0 {
		t.Errorf("blank keys must be skipped, got %d added", report.Added)
	}
}

func TestContextSignature(t *testing.T) {
	sig := ContextSignature("the ancient dragon guarded enormous treasure beneath the mountain")
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}
	parts := strings.Split(sig, "|")
	if len(parts) > 5 {
		t.Errorf("signature capped at 5 keywords, got %d", len(parts))
	}
	for i := 1; i < len(parts); i++ {
		if parts[i-1] >= parts[i] {
			t.Errorf("signature keywords must be sorted: %q", sig)
		}
	}
	if ContextSignature("the and was") != "" {
		t.Error("stopword-only text should produce an empty signature")
	}

	// Same text, same signature.
	if again := ContextSignature("the ancient dragon guarded enormous treasure beneath the mountain"); again != sig {
		t.Errorf("signature not deterministic: %q vs %q", sig, again)
	}
}

func TestContextSignature_CJK(t *testing.T) {
	sig := ContextSignature("克莱恩推开教堂沉重的大门")
	if sig == "" {
		t.Fatal("expected CJK evidence to yield a signature")
	}
}

func TestSignaturesSimilar(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"dragon|mountain|treasure", "dragon|mountain|treasure", true},
		{"dragon|mountain|treasure", "budget|corporate|salary", false},
		{"", "anything|else", true},
		{"anything|else", "", true},
		{"dragon|mountain|treasure|ancient", "dragon|mountain|treasure|hoard", true},
	}

	for _, tt := range tests {
		if got := SignaturesSimilar(tt.a, tt.b); got != tt.expected {
			t.Errorf("SignaturesSimilar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}
