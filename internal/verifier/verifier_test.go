package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/ostrovsky/tearloop/internal/translator"
)

type fixedBack struct {
	text string
	err  error
	last translator.Request
}

func (f *fixedBack) Name() string { return "fixed" }

func (f *fixedBack) Translate(ctx context.Context, req translator.Request) (*translator.Result, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &translator.Result{Text: f.text, Backend: "fixed"}, nil
}

func TestFidelity_Identical(t *testing.T) {
	source := "the ancient dragon guarded the mountain pass"
	if got := Fidelity(source, source); got != 1.0 {
		t.Errorf("identical text expected 1.0, got %.3f", got)
	}
}

func TestFidelity_IgnoresCaseAndPunctuation(t *testing.T) {
	if got := Fidelity("hello world", "Hello, World!"); got != 1.0 {
		t.Errorf("case and punctuation must not matter, got %.3f", got)
	}
}

func TestFidelity_Unrelated(t *testing.T) {
	got := Fidelity("quarterly budget review", "克莱恩睁开了眼睛")
	if got != 0.0 {
		t.Errorf("unrelated text expected 0.0, got %.3f", got)
	}
}

func TestFidelity_Bounds(t *testing.T) {
	cases := [][2]string{
		{"", "some source text"},
		{"some source text", ""},
		{"partial overlap here", "partial text over there"},
		{"重复 重复 重复", "重复"},
	}
	for _, c := range cases {
		got := Fidelity(c[0], c[1])
		if got < 0 || got > 1 {
			t.Errorf("Fidelity(%q, %q) = %.3f out of [0,1]", c[0], c[1], got)
		}
	}
}

func TestFidelity_MonotonicInRestoredContent(t *testing.T) {
	source := "the ancient dragon guarded the mountain pass at night"
	partial := "the ancient dragon"
	fuller := "the ancient dragon guarded the mountain pass"

	a := Fidelity(partial, source)
	b := Fidelity(fuller, source)
	c := Fidelity(source, source)
	if !(a < b && b < c) {
		t.Errorf("restoring more source must not lower the score: %.3f, %.3f, %.3f", a, b, c)
	}
}

func TestFidelity_ExtraContentDoesNotLowerScore(t *testing.T) {
	source := "克莱恩睁开了眼睛"
	base := Fidelity(source, source)
	padded := Fidelity(source+"，周围一片寂静", source)
	if padded < base {
		t.Errorf("adding content must not reduce recall: %.3f < %.3f", padded, base)
	}
}

func TestFidelity_CJK(t *testing.T) {
	source := "克莱恩缓缓推开了教堂的大门"
	if got := Fidelity(source, source); got != 1.0 {
		t.Errorf("CJK identity expected 1.0, got %.3f", got)
	}
	if got := Fidelity("克莱恩推开门", source); got <= 0 {
		t.Errorf("partial CJK restoration should score above 0, got %.3f", got)
	}
}

func TestFidelity_EmptySource(t *testing.T) {
	if got := Fidelity("", ""); got != 1.0 {
		t.Errorf("empty source and back expected 1.0, got %.3f", got)
	}
	if got := Fidelity("something", ""); got != 0.0 {
		t.Errorf("content against empty source expected 0.0, got %.3f", got)
	}
}

func TestVerify_RoundTripDirection(t *testing.T) {
	back := &fixedBack{text: "the dragon guarded the pass"}
	v := New(back, "zh", "en")

	score, backText, err := v.Verify(context.Background(), "draft in english", "龙守住了关口")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if back.last.SourceLang != "en" || back.last.TargetLang != "zh" {
		t.Errorf("back-translation must run target->source, got %s->%s",
			back.last.SourceLang, back.last.TargetLang)
	}
	if back.last.Text != "draft in english" {
		t.Errorf("back-translation input must be the draft, got %q", back.last.Text)
	}
	if backText != "the dragon guarded the pass" {
		t.Errorf("unexpected back text %q", backText)
	}
	if score < 0 || score > 1 {
		t.Errorf("score %.3f out of range", score)
	}
}

func TestVerify_BackendError(t *testing.T) {
	wantErr := &translator.ExternalError{Backend: "fixed", Err: errors.New("boom")}
	v := New(&fixedBack{err: wantErr}, "zh", "en")

	_, _, err := v.Verify(context.Background(), "draft", "source")
	if err == nil {
		t.Fatal("expected error")
	}
	if !translator.IsExternal(err) {
		t.Errorf("backend failure must stay recognizably external: %v", err)
	}
}
