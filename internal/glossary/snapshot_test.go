package glossary

import (
	"strings"
	"testing"
)

func reviewedKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb := New()
	kb.WorldSummary = "Occult mystery set in a gaslamp city."
	kb.insert(&TermEntry{
		Key:     "克莱恩·莫雷蒂",
		Type:    TypePerson,
		Final:   "Klein Moretti",
		Aliases: []string{"克莱恩"},
	})
	kb.insert(&TermEntry{
		Key:   "非凡者",
		Type:  TypeDomainTerm,
		Final: "Beyonder",
	})
	kb.insert(&TermEntry{
		Key:  "塔罗会",
		Type: TypeOrganization,
		// No Final yet: must be excluded from snapshots.
	})
	return kb
}

func TestSnapshot_OnlyFinalizedEntries(t *testing.T) {
	snap := reviewedKB(t).Snapshot()

	if snap.Len() != 2 {
		t.Fatalf("expected 2 active entries, got %d", snap.Len())
	}
	if _, ok := snap.Lookup("塔罗会"); ok {
		t.Error("entry without Final must not be in the snapshot")
	}
	if _, ok := snap.Lookup("克莱恩·莫雷蒂"); !ok {
		t.Error("finalized entry missing from snapshot")
	}
}

func TestSnapshot_IsolatedFromLaterMutation(t *testing.T) {
	kb := reviewedKB(t)
	snap := kb.Snapshot()

	e, _ := kb.Lookup("克莱恩·莫雷蒂")
	e.Final = "CHANGED"
	e.Aliases[0] = "CHANGED"
	kb.ApplyReview([]ReviewedEntry{{Key: "塔罗会", Final: "Tarot Club"}})

	got, _ := snap.Lookup("克莱恩·莫雷蒂")
	if got.Final != "Klein Moretti" {
		t.Errorf("snapshot must not see later Final change, got %q", got.Final)
	}
	if got.Aliases[0] != "克莱恩" {
		t.Errorf("snapshot must deep-copy aliases, got %q", got.Aliases[0])
	}
	if _, ok := snap.Lookup("塔罗会"); ok {
		t.Error("snapshot must not see entries finalized after it was taken")
	}
	if snap.Len() != 2 {
		t.Errorf("snapshot size changed after mutation: %d", snap.Len())
	}
}

func TestSnapshot_RelevantTerms(t *testing.T) {
	snap := reviewedKB(t).Snapshot()
	source := "那一刻，非凡者克莱恩·莫雷蒂睁开了眼睛。"

	terms := snap.RelevantTerms(source, 0)
	if len(terms) != 2 {
		t.Fatalf("expected 2 relevant terms, got %d", len(terms))
	}
	if terms[0].Key != "克莱恩·莫雷蒂" {
		t.Errorf("named entities must come first, got %q", terms[0].Key)
	}

	// Alias occurrence counts as occurrence of the key.
	aliasOnly := "克莱恩皱起了眉头。"
	terms = snap.RelevantTerms(aliasOnly, 0)
	if len(terms) != 1 || terms[0].Key != "克莱恩·莫雷蒂" {
		t.Fatalf("expected alias match for 克莱恩·莫雷蒂, got %+v", terms)
	}

	if got := snap.RelevantTerms("与术语无关的句子。", 0); len(got) != 0 {
		t.Errorf("expected no relevant terms, got %d", len(got))
	}

	if got := snap.RelevantTerms(source, 1); len(got) != 1 {
		t.Errorf("max must cap the result, got %d", len(got))
	}
}

func TestSnapshot_PromptBlock(t *testing.T) {
	snap := reviewedKB(t).Snapshot()
	source := "非凡者克莱恩·莫雷蒂"

	block := snap.PromptBlock(source)
	if !strings.Contains(block, "## Strict Glossary:") {
		t.Error("prompt block missing glossary header")
	}
	if !strings.Contains(block, "克莱恩·莫雷蒂 -> Klein Moretti (person)") {
		t.Errorf("prompt block missing term mapping:\n%s", block)
	}
	if !strings.Contains(block, "## World Summary:") {
		t.Error("prompt block missing world summary")
	}
	if strings.Contains(block, "塔罗会") {
		t.Error("unapproved entries must not leak into prompts")
	}
}

func TestSnapshot_PromptBlockEmpty(t *testing.T) {
	block := New().Snapshot().PromptBlock("任何文本")
	if block != "No glossary available." {
		t.Errorf("expected fallback text, got %q", block)
	}
}
