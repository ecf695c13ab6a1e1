package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/glossary"
	"github.com/ostrovsky/tearloop/internal/translator"
)

// scriptedChat returns canned responses in order, recording the prompts.
type scriptedChat struct {
	responses []string
	err       error
	calls     int
	users     []string
}

func (s *scriptedChat) Name() string { return "scripted" }

func (s *scriptedChat) Chat(ctx context.Context, system, user string) (string, error) {
	s.calls++
	s.users = append(s.users, user)
	if s.err != nil {
		return "", s.err
	}
	resp := s.responses[len(s.users)-1]
	return resp, nil
}

const validPayload = `{"terms":[
	{"term":"克莱恩·莫雷蒂","type":"person","candidates":["Klein Moretti","Clay Moretti"],"evidence":"克莱恩·莫雷蒂推开了门"},
	{"term":"非凡者","type":"domain-term","candidates":["Beyonder"],"evidence":"成为非凡者"}
]}`

func testChunk() internal.Chunk {
	return internal.Chunk{ID: "0001", PositionKey: 1, Text: "克莱恩·莫雷蒂成为了非凡者。"}
}

func TestExtract_ParsesValidPayload(t *testing.T) {
	chat := &scriptedChat{responses: []string{validPayload}}
	x := New(chat)

	entries, err := x.Extract(context.Background(), testChunk(), nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if chat.calls != 1 {
		t.Errorf("expected 1 chat call, got %d", chat.calls)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	klein := entries[0]
	if klein.Key != "克莱恩·莫雷蒂" || klein.Type != glossary.TypePerson {
		t.Errorf("unexpected first entry: %+v", klein)
	}
	if klein.Final != "" {
		t.Error("extraction must never set Final")
	}
	if len(klein.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(klein.Candidates))
	}
	if klein.Candidates[0].Score != 1.0 || klein.Candidates[1].Score != 0.9 {
		t.Errorf("expected confidence-ordered scores, got %+v", klein.Candidates)
	}
	if len(klein.Evidence) != 1 || klein.Evidence[0] != "克莱恩·莫雷蒂推开了门" {
		t.Errorf("evidence not preserved: %+v", klein.Evidence)
	}
}

func TestExtract_ToleratesSurroundingProse(t *testing.T) {
	chat := &scriptedChat{responses: []string{"Sure! Here you go:\n" + validPayload + "\nLet me know if you need more."}}
	x := New(chat)

	entries, err := x.Extract(context.Background(), testChunk(), nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestExtract_DeduplicatesKeys(t *testing.T) {
	payload := `{"terms":[
		{"term":"非凡者","type":"domain-term","candidates":["Beyonder"]},
		{"term":" 非凡者 ","type":"domain-term","candidates":["Extraordinary"]}
	]}`
	chat := &scriptedChat{responses: []string{payload}}
	x := New(chat)

	entries, err := x.Extract(context.Background(), testChunk(), nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected deduplicated single entry, got %d", len(entries))
	}
	if entries[0].Candidates[0].Rendering != "Beyonder" {
		t.Errorf("first-seen entry must win, got %+v", entries[0].Candidates)
	}
}

func TestExtract_RePromptsOnceOnMalformedOutput(t *testing.T) {
	chat := &scriptedChat{responses: []string{"I found some terms: Klein, Beyonder", validPayload}}
	x := New(chat)

	entries, err := x.Extract(context.Background(), testChunk(), nil)
	if err != nil {
		t.Fatalf("Extract should succeed after re-prompt: %v", err)
	}
	if chat.calls != 2 {
		t.Errorf("expected 2 chat calls, got %d", chat.calls)
	}
	if !strings.Contains(chat.users[1], "not valid JSON") {
		t.Error("re-prompt should tell the model what went wrong")
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries after re-prompt, got %d", len(entries))
	}
}

func TestExtract_SchemaErrorAfterSecondFailure(t *testing.T) {
	chat := &scriptedChat{responses: []string{"still prose", "more prose, no json"}}
	x := New(chat)

	_, err := x.Extract(context.Background(), testChunk(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if schemaErr.Raw != "more prose, no json" {
		t.Errorf("raw payload must be preserved for diagnosis, got %q", schemaErr.Raw)
	}
	if schemaErr.Backend != "scripted" {
		t.Errorf("expected backend name, got %q", schemaErr.Backend)
	}
	if chat.calls != 2 {
		t.Errorf("exactly one re-prompt allowed, got %d calls", chat.calls)
	}
}

func TestExtract_BackendErrorPropagates(t *testing.T) {
	wantErr := &translator.ExternalError{Backend: "scripted", Err: errors.New("connection refused")}
	chat := &scriptedChat{err: wantErr}
	x := New(chat)

	_, err := x.Extract(context.Background(), testChunk(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !translator.IsExternal(err) {
		t.Errorf("transport failures must stay external: %v", err)
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		t.Error("transport failure must not be reported as a schema error")
	}
}

func TestExtract_RunningTermsInPrompt(t *testing.T) {
	chat := &scriptedChat{responses: []string{validPayload}}
	x := New(chat)

	running := []glossary.TermEntry{{
		Key:   "塔罗会",
		Type:  glossary.TypeOrganization,
		Final: "Tarot Club",
	}}
	if _, err := x.Extract(context.Background(), testChunk(), running); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(chat.users[0], "塔罗会") || !strings.Contains(chat.users[0], "Tarot Club") {
		t.Error("known terms should be offered to the model for continuity")
	}
}

func TestParseCandidates_EmptyTerms(t *testing.T) {
	entries, err := parseCandidates(`{"terms":[]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
