package internal

// Chunk is the smallest independently processed unit of source text.
// Chunks are produced by an external cleaning/segmentation step (or by the
// built-in chunker for raw text input) and are immutable once created.
// PositionKey is the chunk's stable document position; it is the only thing
// the merge step uses to restore document order.
type Chunk struct {
	ID          string `json:"id"`
	PositionKey int    `json:"position_key"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text"`
	// ContextTail is the tail of the preceding chunk, carried along so LLM
	// backends can keep narrative continuity across chunk boundaries.
	ContextTail string `json:"context_tail,omitempty"`
}

// ChunkStatus is the coarse per-chunk outcome recorded in the run ledger.
type ChunkStatus string

const (
	StatusPending    ChunkStatus = "pending"
	StatusInProgress ChunkStatus = "in_progress"
	StatusDone       ChunkStatus = "done"
	StatusFailed     ChunkStatus = "failed"
)
