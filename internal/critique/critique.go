// Package critique turns checker violations and the fidelity score into a
// structured accept/refine judgment with actionable feedback.
//
// The judgment is a deterministic policy over its inputs, with no model
// call, so the convergence behavior of the refinement loop follows from the
// checker's determinism alone.
package critique

import (
	"fmt"

	"github.com/ostrovsky/tearloop/internal/checker"
	"github.com/ostrovsky/tearloop/internal/glossary"
)

// Verdict is the critique outcome.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRefine Verdict = "refine"
)

// Judgment is the structured critique of one draft.
type Judgment struct {
	Verdict       Verdict             `json:"verdict"`
	Reasons       []string            `json:"reasons"`
	RequiredFixes []checker.Violation `json:"required_fixes"`
	Fidelity      float64             `json:"fidelity"`
}

// Engine applies the run's acceptance policy.
type Engine struct {
	// FidelityThreshold is the minimum back-translation fidelity for accept.
	FidelityThreshold float64
	// AllowMinorViolations tolerates non-named-entity terms rendered with a
	// known candidate instead of the approved form.
	AllowMinorViolations bool

	snap *glossary.Snapshot
}

// NewEngine creates a critique engine bound to the run's snapshot (used to
// grade violation severity by term type).
func NewEngine(snap *glossary.Snapshot, fidelityThreshold float64, allowMinor bool) *Engine {
	return &Engine{
		FidelityThreshold:    fidelityThreshold,
		AllowMinorViolations: allowMinor,
		snap:                 snap,
	}
}

// Critique judges one draft. The verdict is accept iff no blocking violation
// remains and fidelity meets the threshold. Style notes never block on their
// own; they ride along as refinement guidance.
func (e *Engine) Critique(violations []checker.Violation, fidelity float64, styleNotes []string) Judgment {
	j := Judgment{
		Verdict:       VerdictAccept,
		RequiredFixes: violations,
		Fidelity:      fidelity,
	}

	for _, v := range violations {
		if e.AllowMinorViolations && e.isMinor(v) {
			continue
		}
		j.Verdict = VerdictRefine
		j.Reasons = append(j.Reasons, describeViolation(v))
	}

	if fidelity < e.FidelityThreshold {
		j.Verdict = VerdictRefine
		j.Reasons = append(j.Reasons, fmt.Sprintf(
			"back-translation fidelity %.2f is below the %.2f threshold; parts of the source may be dropped or mistranslated",
			fidelity, e.FidelityThreshold))
	}

	if j.Verdict == VerdictRefine {
		j.Reasons = append(j.Reasons, styleNotes...)
	}
	return j
}

func (e *Engine) isMinor(v checker.Violation) bool {
	entry, ok := e.snap.Lookup(v.TermKey)
	if !ok {
		return false
	}
	return v.Minor(entry.Type)
}

func describeViolation(v checker.Violation) string {
	switch v.Kind {
	case checker.KindMissing:
		return fmt.Sprintf("term %q must be rendered as %q but no known rendering was found", v.TermKey, v.Expected)
	case checker.KindWrongSense:
		return fmt.Sprintf("term %q uses the rendering %q of a different sense; this context requires %q", v.TermKey, v.Found, v.Expected)
	default:
		return fmt.Sprintf("term %q is rendered as %q but the approved rendering is %q", v.TermKey, v.Found, v.Expected)
	}
}
