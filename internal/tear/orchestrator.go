// Package tear drives the per-chunk Translate-Evaluate-Refine loop: an
// explicit bounded state machine over external translation calls, the
// glossary consistency checker, the back-translation verifier and the
// critique engine, persisting every transition to the run ledger.
package tear

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/checker"
	"github.com/ostrovsky/tearloop/internal/critique"
	"github.com/ostrovsky/tearloop/internal/glossary"
	"github.com/ostrovsky/tearloop/internal/langcheck"
	"github.com/ostrovsky/tearloop/internal/ledger"
	"github.com/ostrovsky/tearloop/internal/translator"
	"github.com/ostrovsky/tearloop/internal/verifier"
)

// Config is the run configuration of the refinement loop.
type Config struct {
	SourceLang string
	TargetLang string

	// MaxIterations bounds translate passes per chunk (≥1). Reaching the cap
	// finalizes the best available draft as a degraded success.
	MaxIterations int
	// FidelityThreshold is the minimum back-translation fidelity for accept.
	FidelityThreshold float64
	// AllowMinorViolations tolerates candidate renderings of non-named-entity
	// terms.
	AllowMinorViolations bool
	// ConcurrencyLimit bounds concurrent chunk workers (≥1).
	ConcurrencyLimit int
	// RetryBudget is the number of retries per external call (≥0).
	RetryBudget int
	// RetryDelay is the initial backoff between retries; it doubles per
	// attempt.
	RetryDelay time.Duration
}

// Orchestrator runs the TEaR state machine over a set of chunks against a
// frozen knowledge-base snapshot.
type Orchestrator struct {
	translate translator.Translator
	verify    *verifier.Verifier
	engine    *critique.Engine
	lang      *langcheck.Checker // may be nil
	snap      *glossary.Snapshot
	led       *ledger.Ledger
	breaker   *gobreaker.CircuitBreaker
	cfg       Config
}

// RunSummary is the user-visible outcome of one run.
type RunSummary struct {
	Done     int
	Degraded int
	Failed   int
	Skipped  int // already done in a previous run
	// Flagged lists degraded and failed records with their last violation
	// set, for targeted human follow-up.
	Flagged []*TranslationRecord
}

// New creates an orchestrator. lang may be nil to skip the draft-language
// check. The snapshot is read-only and shared by all workers.
func New(t translator.Translator, v *verifier.Verifier, snap *glossary.Snapshot, led *ledger.Ledger, lang *langcheck.Checker, cfg Config) (*Orchestrator, error) {
	if snap == nil {
		return nil, &ValidationError{Msg: "nil knowledge-base snapshot"}
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 3
	}
	if cfg.ConcurrencyLimit < 1 {
		cfg.ConcurrencyLimit = 4
	}
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.FidelityThreshold < 0 || cfg.FidelityThreshold > 1 {
		return nil, fmt.Errorf("fidelity threshold %v outside [0,1]", cfg.FidelityThreshold)
	}

	return &Orchestrator{
		translate: t,
		verify:    v,
		engine:    critique.NewEngine(snap, cfg.FidelityThreshold, cfg.AllowMinorViolations),
		lang:      lang,
		snap:      snap,
		led:       led,
		breaker:   newBreaker(),
		cfg:       cfg,
	}, nil
}

// Run processes chunks with bounded parallelism. A resumed run replays the
// ledger first: chunks already done keep their records untouched; everything
// else restarts from pending. Chunk failures stay local to the chunk.
func (o *Orchestrator) Run(ctx context.Context, runID string, chunks []internal.Chunk) (*RunSummary, error) {
	if err := o.led.CreateRun(ctx, ledgerRun(o, runID)); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	previous, err := o.led.Replay(ctx, runID)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{}
	var pending []internal.Chunk
	for _, chunk := range chunks {
		if prev, ok := previous[chunk.ID]; ok && prev.Status == internal.StatusDone {
			summary.Skipped++
			continue
		}
		pending = append(pending, chunk)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan internal.Chunk)
	)

	for i := 0; i < o.cfg.ConcurrencyLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				rec := o.processChunk(ctx, runID, chunk)
				mu.Lock()
				switch {
				case rec.Status == internal.StatusFailed:
					summary.Failed++
					summary.Flagged = append(summary.Flagged, rec)
				case rec.Degraded:
					summary.Degraded++
					summary.Done++
					summary.Flagged = append(summary.Flagged, rec)
				case rec.Status == internal.StatusDone:
					summary.Done++
				}
				mu.Unlock()
			}
		}()
	}

	for _, chunk := range pending {
		select {
		case jobs <- chunk:
		case <-ctx.Done():
			// Stop feeding; in-flight workers persist their current
			// transition before exiting.
			close(jobs)
			wg.Wait()
			return summary, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return summary, ctx.Err()
}

// processChunk runs one chunk's state machine to a terminal state. Every
// transition is persisted before the next step starts, so a crash or
// cancellation never loses more than the step in progress.
func (o *Orchestrator) processChunk(ctx context.Context, runID string, chunk internal.Chunk) *TranslationRecord {
	rec := newRecord(chunk)
	o.persist(ctx, runID, rec)

	if chunk.Text == "" {
		return o.fail(ctx, runID, rec, &ValidationError{Msg: fmt.Sprintf("chunk %s has empty text", chunk.ID)})
	}

	glossaryBlock := o.snap.PromptBlock(chunk.Text)

	var best *TranslationRecord
	var feedback []string
	var priorDraft string

	for {
		if err := ctx.Err(); err != nil {
			// Cancelled between transitions: the last persisted state stands
			// and the chunk resumes from pending next run.
			return rec
		}

		if err := transition(rec, StateTranslating); err != nil {
			return o.fail(ctx, runID, rec, err)
		}
		rec.Status = internal.StatusInProgress
		o.persist(ctx, runID, rec)

		res, err := o.callExternal(ctx, func(ctx context.Context) (*translator.Result, error) {
			return o.translate.Translate(ctx, translator.Request{
				Text:          chunk.Text,
				SourceLang:    o.cfg.SourceLang,
				TargetLang:    o.cfg.TargetLang,
				Title:         chunk.Title,
				ContextTail:   chunk.ContextTail,
				GlossaryBlock: glossaryBlock,
				PriorDraft:    priorDraft,
				Feedback:      feedback,
			})
		})
		if err != nil {
			return o.fail(ctx, runID, rec, err)
		}

		rec.IterationCount++
		rec.Draft = res.Text

		if err := transition(rec, StateEvaluating); err != nil {
			return o.fail(ctx, runID, rec, err)
		}
		o.persist(ctx, runID, rec)

		violations := checker.Check(rec.Draft, chunk.Text, o.snap)

		var fidelity float64
		backRes, err := o.callExternal(ctx, func(ctx context.Context) (*translator.Result, error) {
			score, backText, err := o.verify.Verify(ctx, rec.Draft, chunk.Text)
			if err != nil {
				return nil, err
			}
			fidelity = score
			return &translator.Result{Text: backText}, nil
		})
		if err != nil {
			return o.fail(ctx, runID, rec, err)
		}

		var styleNotes []string
		if o.lang != nil {
			if note := o.lang.Note(rec.Draft, o.cfg.TargetLang); note != "" {
				styleNotes = append(styleNotes, note)
			}
		}

		judgment := o.engine.Critique(violations, fidelity, styleNotes)
		rec.BackTranslation = backRes.Text
		rec.Violations = violations
		rec.Fidelity = fidelity
		rec.Critique = &judgment

		if best == nil || betterDraft(rec, best) {
			snapshot := *rec
			best = &snapshot
		}

		if judgment.Verdict == critique.VerdictAccept {
			rec.FinalTranslation = rec.Draft
			if err := transition(rec, StateDone); err != nil {
				return o.fail(ctx, runID, rec, err)
			}
			rec.Status = internal.StatusDone
			o.persist(ctx, runID, rec)
			return rec
		}

		if rec.IterationCount >= o.cfg.MaxIterations {
			// Degraded success: finalize the best draft seen, violations
			// left non-empty so downstream review can flag it.
			rec.Draft = best.Draft
			rec.BackTranslation = best.BackTranslation
			rec.Violations = best.Violations
			rec.Fidelity = best.Fidelity
			rec.Critique = best.Critique
			rec.FinalTranslation = best.Draft
			rec.Degraded = true
			if err := transition(rec, StateDone); err != nil {
				return o.fail(ctx, runID, rec, err)
			}
			rec.Status = internal.StatusDone
			o.persist(ctx, runID, rec)
			return rec
		}

		if err := transition(rec, StateRefining); err != nil {
			return o.fail(ctx, runID, rec, err)
		}
		o.persist(ctx, runID, rec)

		feedback = judgment.Reasons
		priorDraft = rec.Draft
	}
}

func ledgerRun(o *Orchestrator, runID string) ledger.Run {
	return ledger.Run{
		ID:              runID,
		SourceLang:      o.cfg.SourceLang,
		TargetLang:      o.cfg.TargetLang,
		GlossaryVersion: o.snap.Version(),
	}
}

// betterDraft reports whether a beats b: fewer violations, ties broken by
// higher fidelity.
func betterDraft(a, b *TranslationRecord) bool {
	if len(a.Violations) != len(b.Violations) {
		return len(a.Violations) < len(b.Violations)
	}
	return a.Fidelity > b.Fidelity
}

func (o *Orchestrator) fail(ctx context.Context, runID string, rec *TranslationRecord, err error) *TranslationRecord {
	rec.LastError = err.Error()
	rec.State = StateFailed
	rec.Status = internal.StatusFailed
	o.persist(ctx, runID, rec)
	fmt.Fprintf(os.Stderr, "chunk %s failed: %v\n", rec.ChunkID, err)
	return rec
}

// persist appends the record's current state to the ledger. The append uses
// a non-cancelable context: once a transition happened, its record must land
// even while the run is shutting down.
func (o *Orchestrator) persist(ctx context.Context, runID string, rec *TranslationRecord) {
	payload, err := encodeRecord(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode record for chunk %s: %v\n", rec.ChunkID, err)
		return
	}
	if err := o.led.Append(context.WithoutCancel(ctx), ledger.Record{
		RunID:       runID,
		ChunkID:     rec.ChunkID,
		PositionKey: rec.PositionKey,
		State:       string(rec.State),
		Status:      rec.Status,
		Payload:     payload,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist chunk %s: %v\n", rec.ChunkID, err)
	}
}
