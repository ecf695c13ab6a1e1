package tear

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/checker"
	"github.com/ostrovsky/tearloop/internal/critique"
	"github.com/ostrovsky/tearloop/internal/ledger"
)

// TranslationRecord is the per-chunk outcome owned by the orchestrator. It
// is mutated only between persisted state transitions; every transition
// appends the full record to the run ledger.
type TranslationRecord struct {
	ChunkID     string `json:"chunk_id"`
	PositionKey int    `json:"position_key"`
	State       State  `json:"state"`

	Source           string               `json:"source"`
	Draft            string               `json:"draft,omitempty"`
	BackTranslation  string               `json:"back_translation,omitempty"`
	Critique         *critique.Judgment   `json:"critique,omitempty"`
	Violations       []checker.Violation  `json:"violations"`
	FinalTranslation string               `json:"final_translation,omitempty"`
	Fidelity         float64              `json:"fidelity,omitempty"`
	IterationCount   int                  `json:"iteration_count"`
	Status           internal.ChunkStatus `json:"status"`
	// Degraded marks a chunk finalized at the iteration cap with unresolved
	// violations, flagged for human follow-up.
	Degraded  bool   `json:"degraded,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func newRecord(chunk internal.Chunk) *TranslationRecord {
	return &TranslationRecord{
		ChunkID:     chunk.ID,
		PositionKey: chunk.PositionKey,
		State:       StatePending,
		Source:      chunk.Text,
		Violations:  []checker.Violation{},
		Status:      internal.StatusPending,
	}
}

func encodeRecord(rec *TranslationRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return payload, nil
}

// DecodeRecord parses a ledger payload back into a TranslationRecord.
func DecodeRecord(payload []byte) (*TranslationRecord, error) {
	var rec TranslationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode ledger payload: %w", err)
	}
	return &rec, nil
}

// CompletedRecords decodes the done records from a ledger replay.
func CompletedRecords(latest map[string]ledger.Record) ([]*TranslationRecord, error) {
	var out []*TranslationRecord
	for _, lr := range latest {
		if lr.Status != internal.StatusDone {
			continue
		}
		rec, err := DecodeRecord(lr.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Merge assembles the final output from completed records, restoring
// document order by position key regardless of completion order.
func Merge(records []*TranslationRecord) string {
	sorted := append([]*TranslationRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PositionKey < sorted[j].PositionKey
	})
	parts := make([]string, 0, len(sorted))
	for _, rec := range sorted {
		parts = append(parts, rec.FinalTranslation)
	}
	return strings.Join(parts, "\n\n")
}
