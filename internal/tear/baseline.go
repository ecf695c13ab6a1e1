package tear

import (
	"context"
	"fmt"
	"sync"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/translator"
)

// RunBaseline translates every chunk exactly once and finalizes the draft
// without the knowledge base, evaluation or refinement: the request carries
// only the chunk and its context. The records it writes use the same schema
// as a full run, so status and merge work on baseline runs too.
func (o *Orchestrator) RunBaseline(ctx context.Context, runID string, chunks []internal.Chunk) (*RunSummary, error) {
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
				rec := o.baselineChunk(ctx, runID, chunk)
				mu.Lock()
				if rec.Status == internal.StatusFailed {
					summary.Failed++
					summary.Flagged = append(summary.Flagged, rec)
				} else if rec.Status == internal.StatusDone {
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
			close(jobs)
			wg.Wait()
			return summary, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return summary, ctx.Err()
}

func (o *Orchestrator) baselineChunk(ctx context.Context, runID string, chunk internal.Chunk) *TranslationRecord {
	rec := newRecord(chunk)
	o.persist(ctx, runID, rec)

	if chunk.Text == "" {
		return o.fail(ctx, runID, rec, &ValidationError{Msg: fmt.Sprintf("chunk %s has empty text", chunk.ID)})
	}

	if err := transition(rec, StateTranslating); err != nil {
		return o.fail(ctx, runID, rec, err)
	}
	rec.Status = internal.StatusInProgress
	o.persist(ctx, runID, rec)

	res, err := o.callExternal(ctx, func(ctx context.Context) (*translator.Result, error) {
		return o.translate.Translate(ctx, translator.Request{
			Text:        chunk.Text,
			SourceLang:  o.cfg.SourceLang,
			TargetLang:  o.cfg.TargetLang,
			Title:       chunk.Title,
			ContextTail: chunk.ContextTail,
		})
	})
	if err != nil {
		return o.fail(ctx, runID, rec, err)
	}

	rec.IterationCount = 1
	rec.Draft = res.Text
	rec.FinalTranslation = res.Text
	if err := transition(rec, StateEvaluating); err != nil {
		return o.fail(ctx, runID, rec, err)
	}
	if err := transition(rec, StateDone); err != nil {
		return o.fail(ctx, runID, rec, err)
	}
	rec.Status = internal.StatusDone
	o.persist(ctx, runID, rec)
	return rec
}
