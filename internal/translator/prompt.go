package translator

import (
	"fmt"
	"strings"
)

// draftSystemPrompt is the shared system instruction for LLM backends
// producing a first draft.
func draftSystemPrompt(targetLang string) string {
	return fmt.Sprintf(`You are a novelist fluent in %s, translating serialized fiction.

Style requirements:
1. Preserve the narrative rhythm of the original.
2. Keep the register consistent across chapters.
3. Render every glossary term exactly as given, and always the same way.`, targetLang)
}

// buildDraftPrompt renders the user prompt for a first translation pass.
func buildDraftPrompt(req Request) string {
	var b strings.Builder
	if req.GlossaryBlock != "" {
		b.WriteString(req.GlossaryBlock)
		b.WriteString("\n\n")
	}
	if req.ContextTail != "" {
		b.WriteString("## Preceding text (context only, do not translate):\n")
		b.WriteString(req.ContextTail)
		b.WriteString("\n\n")
	}
	if req.Title != "" {
		fmt.Fprintf(&b, "Chapter: %s\n\n", req.Title)
	}
	fmt.Fprintf(&b, "Translate the following %s text into %s.\nOutput only the translation, nothing else.\n\n%s",
		req.SourceLang, req.TargetLang, req.Text)
	return b.String()
}

// buildRefinePrompt renders the user prompt for a refinement pass: the prior
// draft plus the critique's required fixes.
func buildRefinePrompt(req Request) string {
	var b strings.Builder
	if req.GlossaryBlock != "" {
		b.WriteString(req.GlossaryBlock)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "## Original (%s):\n%s\n\n", req.SourceLang, req.Text)
	fmt.Fprintf(&b, "## Draft translation (%s):\n%s\n\n", req.TargetLang, req.PriorDraft)
	b.WriteString("## Required fixes:\n")
	for _, f := range req.Feedback {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	fmt.Fprintf(&b, "\nRewrite the draft applying every fix. Keep everything that is already correct.\nOutput only the corrected %s translation, nothing else.", req.TargetLang)
	return b.String()
}

// isRefinement reports whether the request repairs an existing draft.
func isRefinement(req Request) bool {
	return req.PriorDraft != "" && len(req.Feedback) > 0
}
