// Package ledger persists per-chunk state transitions as an append-only
// record stream, enabling resumable, auditable translation runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ostrovsky/tearloop/internal"
)

// Ledger is an append-only store over SQLite. Appends are serialized so one
// logical record per state transition lands intact even when many chunk
// workers finish transitions at once; records are never edited in place.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

// Record is one persisted state transition.
type Record struct {
	Seq         int64
	RunID       string
	ChunkID     string
	PositionKey int
	State       string
	Status      internal.ChunkStatus
	CreatedAt   time.Time
	Payload     []byte
}

// Run is the header row for one translation run.
type Run struct {
	ID              string
	SourceLang      string
	TargetLang      string
	GlossaryVersion int
	CreatedAt       time.Time
}

// Open opens (creating if needed) a ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		glossary_version INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- records is append-only: resumption replays it in seq order and the
	-- last record per chunk wins.
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		position_key INTEGER NOT NULL,
		state TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, chunk_id, seq);
	`
	_, err := l.db.Exec(schema)
	return err
}

// CreateRun records a run header. Re-creating an existing run (a resume) is
// not an error.
func (l *Ledger) CreateRun(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, source_lang, target_lang, glossary_version, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SourceLang, run.TargetLang, run.GlossaryVersion, time.Now())
	return err
}

// GetRun returns a run header.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	err := l.db.QueryRowContext(ctx,
		`SELECT id, source_lang, target_lang, glossary_version, created_at FROM runs WHERE id = ?`,
		runID).Scan(&r.ID, &r.SourceLang, &r.TargetLang, &r.GlossaryVersion, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Append writes one record. The lock makes an append atomic from the point
// of view of concurrent workers; a record is fully written or not at all.
func (l *Ledger) Append(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO records (run_id, chunk_id, position_key, state, status, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ChunkID, rec.PositionKey, rec.State, string(rec.Status), string(rec.Payload), time.Now())
	if err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	return nil
}

// Replay returns the latest record per chunk for a run, reconstructing the
// last known status before scheduling remaining work.
func (l *Ledger) Replay(ctx context.Context, runID string) (map[string]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, chunk_id, position_key, state, status, payload FROM records WHERE run_id = ? ORDER BY seq`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to replay ledger: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]Record)
	for rows.Next() {
		var rec Record
		var status, payload string
		if err := rows.Scan(&rec.Seq, &rec.ChunkID, &rec.PositionKey, &rec.State, &status, &payload); err != nil {
			return nil, err
		}
		rec.RunID = runID
		rec.Status = internal.ChunkStatus(status)
		rec.Payload = []byte(payload)
		latest[rec.ChunkID] = rec
	}
	return latest, rows.Err()
}

// Counts summarises a run's terminal outcomes.
type Counts struct {
	Done     int
	Degraded int
	Failed   int
	Pending  int
}

// History returns every record for one chunk in append order, for audit.
func (l *Ledger) History(ctx context.Context, runID, chunkID string) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, chunk_id, position_key, state, status, payload, created_at FROM records WHERE run_id = ? AND chunk_id = ? ORDER BY seq`,
		runID, chunkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var status, payload string
		if err := rows.Scan(&rec.Seq, &rec.ChunkID, &rec.PositionKey, &rec.State, &status, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.RunID = runID
		rec.Status = internal.ChunkStatus(status)
		rec.Payload = []byte(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
