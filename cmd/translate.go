/*
Copyright © 2026 Marko Ostrovsky

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ostrovsky/tearloop/internal/chunker"
	"github.com/ostrovsky/tearloop/internal/config"
	"github.com/ostrovsky/tearloop/internal/langcheck"
	"github.com/ostrovsky/tearloop/internal/ledger"
	"github.com/ostrovsky/tearloop/internal/tear"
	"github.com/ostrovsky/tearloop/internal/verifier"
)

var (
	translateInput    string
	translateOutput   string
	translateRunID    string
	translateResume   bool
	translateMaxChars int
	translateNoLang   bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a document with the iterative refinement loop",
	Long: `Translate a document chunk by chunk. Each chunk cycles through
translate, evaluate and refine until the draft passes the glossary
consistency check and the back-translation fidelity threshold, or the
iteration cap finalizes the best draft as a degraded result.

Every state transition is appended to the run ledger, so an interrupted run
resumes with --resume --run-id <id> without repeating finished chunks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if translateInput == translateOutput {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		if translateResume && translateRunID == "" {
			return fmt.Errorf("--resume requires --run-id")
		}

		bindFlags(cmd, map[string]string{
			"source":                 "source",
			"target":                 "target",
			"backend":                "backend",
			"back_backend":           "back-backend",
			"glossary":               "glossary",
			"ledger":                 "ledger",
			"max_iterations":         "max-iterations",
			"fidelity_threshold":     "fidelity-threshold",
			"allow_minor_violations": "allow-minor-violations",
			"concurrency":            "concurrency",
		})

		s, err := config.Load()
		if err != nil {
			return err
		}

		chunks, err := loadChunks(translateInput, translateMaxChars)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return fmt.Errorf("input %s produced no chunks", translateInput)
		}

		kb, err := loadKnowledgeBase(s.GlossaryPath)
		if err != nil {
			return err
		}
		snap := kb.Snapshot()
		if snap.Len() == 0 {
			fmt.Fprintln(os.Stderr, "Warning: knowledge base has no finalized entries; translating without a glossary")
		}

		led, err := ledger.Open(s.LedgerPath)
		if err != nil {
			return err
		}
		defer led.Close()

		drafter, err := buildDrafter(s)
		if err != nil {
			return err
		}
		back, err := buildBackTranslator(s)
		if err != nil {
			return err
		}

		var lang *langcheck.Checker
		if !translateNoLang {
			lang = langcheck.New()
		}

		orch, err := tear.New(drafter, verifier.New(back, s.SourceLang, s.TargetLang), snap, led, lang, tear.Config{
			SourceLang:           s.SourceLang,
			TargetLang:           s.TargetLang,
			MaxIterations:        s.MaxIterations,
			FidelityThreshold:    s.FidelityThreshold,
			AllowMinorViolations: s.AllowMinorViolations,
			ConcurrencyLimit:     s.Concurrency,
			RetryBudget:          s.RetryBudget,
			RetryDelay:           s.RetryDelay,
		})
		if err != nil {
			return err
		}

		runID := translateRunID
		if runID == "" {
			runID = uuid.New().String()
			fmt.Fprintf(os.Stderr, "Run ID: %s\n", runID)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if translateResume {
			if prev, err := led.GetRun(ctx, runID); err == nil && prev != nil {
				if prev.GlossaryVersion != snap.Version() {
					fmt.Fprintf(os.Stderr, "Warning: run started with glossary v%d, current is v%d\n",
						prev.GlossaryVersion, snap.Version())
				}
			}
		}

		summary, runErr := orch.Run(ctx, runID, chunks)
		printSummary(summary, runID)
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Run interrupted: %v\nResume with: tearloop translate --resume --run-id %s -i %s -o %s\n",
				runErr, runID, translateInput, translateOutput)
			return nil
		}

		latest, err := led.Replay(ctx, runID)
		if err != nil {
			return err
		}
		records, err := tear.CompletedRecords(latest)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no chunks completed")
		}

		if err := writeOutput(translateOutput, tear.Merge(records)); err != nil {
			return err
		}
		fmt.Printf("Merged %d chunks into %s\n", len(records), translateOutput)
		return nil
	},
}

func printSummary(summary *tear.RunSummary, runID string) {
	fmt.Printf("Run %s: %d done (%d degraded), %d failed, %d skipped\n",
		runID, summary.Done, summary.Degraded, summary.Failed, summary.Skipped)
	for _, rec := range summary.Flagged {
		fmt.Fprintf(os.Stderr, "  flagged %s: %d violations, fidelity %.2f",
			rec.ChunkID, len(rec.Violations), rec.Fidelity)
		if rec.LastError != "" {
			fmt.Fprintf(os.Stderr, ", error: %s", rec.LastError)
		}
		fmt.Fprintln(os.Stderr)
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateInput, "input", "i", "", "Input document (.txt or .jsonl) (required)")
	translateCmd.Flags().StringVarP(&translateOutput, "output", "o", "", "Output file for the merged translation (required)")
	translateCmd.Flags().StringVar(&translateRunID, "run-id", "", "Run identifier (generated when empty)")
	translateCmd.Flags().BoolVar(&translateResume, "resume", false, "Resume a previous run, skipping finished chunks")
	translateCmd.Flags().IntVar(&translateMaxChars, "max-chars", chunker.DefaultMaxChars, "Maximum characters per chunk when splitting plain text")
	translateCmd.Flags().BoolVar(&translateNoLang, "no-langcheck", false, "Skip the draft language check")

	translateCmd.Flags().StringP("source", "s", "", "Source language code")
	translateCmd.Flags().StringP("target", "t", "", "Target language code")
	translateCmd.Flags().String("backend", "", "Drafting backend: ollama or openai")
	translateCmd.Flags().String("back-backend", "", "Back-translation backend: google, ollama or openai")
	translateCmd.Flags().String("glossary", "", "Knowledge base path")
	translateCmd.Flags().String("ledger", "", "Run ledger database path")
	translateCmd.Flags().Int("max-iterations", 0, "Refinement iteration cap per chunk")
	translateCmd.Flags().Float64("fidelity-threshold", 0, "Minimum back-translation fidelity for accept")
	translateCmd.Flags().Bool("allow-minor-violations", false, "Accept drafts with minor glossary violations")
	translateCmd.Flags().Int("concurrency", 0, "Concurrent chunk workers")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}
