package tear

import "fmt"

// State is one step of the per-chunk Translate-Evaluate-Refine machine.
//
//	pending -> translating -> evaluating -> done
//	                ^              |
//	                +-- refining <-+
//
// done is reached either by acceptance or by exhausting the iteration budget
// (degraded success); failed is reached when an external call exhausts its
// retry budget. Both are terminal for the run; a failed chunk is eligible to
// restart from pending on a later resume.
type State string

const (
	StatePending     State = "pending"
	StateTranslating State = "translating"
	StateEvaluating  State = "evaluating"
	StateRefining    State = "refining"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether the state ends the chunk's run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func allowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateTranslating
	case StateTranslating:
		return to == StateEvaluating || to == StateFailed
	case StateEvaluating:
		return to == StateRefining || to == StateDone || to == StateFailed
	case StateRefining:
		return to == StateTranslating
	default:
		return false
	}
}

// transition validates and applies a state change on the record.
// An invalid transition is a programming error, not a runtime condition.
func transition(rec *TranslationRecord, to State) error {
	if !allowedTransition(rec.State, to) {
		return fmt.Errorf("disallowed transition for chunk %s: %s -> %s", rec.ChunkID, rec.State, to)
	}
	rec.State = to
	return nil
}
