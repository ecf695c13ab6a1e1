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
	"github.com/ostrovsky/tearloop/internal/glossary"
	"github.com/ostrovsky/tearloop/internal/ledger"
	"github.com/ostrovsky/tearloop/internal/tear"
	"github.com/ostrovsky/tearloop/internal/verifier"
)

var (
	baselineInput    string
	baselineOutput   string
	baselineRunID    string
	baselineMaxChars int
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Single-pass translation without refinement",
	Long: `Translate every chunk exactly once without the knowledge base and skip
evaluation and refinement. Useful as a comparison run against the full loop;
the ledger records share the full run schema, so status and merge work the
same way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if baselineInput == baselineOutput {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		bindFlags(cmd, map[string]string{
			"source":  "source",
			"target":  "target",
			"backend": "backend",
		})

		s, err := config.Load()
		if err != nil {
			return err
		}

		chunks, err := loadChunks(baselineInput, baselineMaxChars)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return fmt.Errorf("input %s produced no chunks", baselineInput)
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

		orch, err := tear.New(drafter, verifier.New(back, s.SourceLang, s.TargetLang), glossary.New().Snapshot(), led, nil, tear.Config{
			SourceLang:       s.SourceLang,
			TargetLang:       s.TargetLang,
			MaxIterations:    1,
			ConcurrencyLimit: s.Concurrency,
			RetryBudget:      s.RetryBudget,
			RetryDelay:       s.RetryDelay,
		})
		if err != nil {
			return err
		}

		runID := baselineRunID
		if runID == "" {
			runID = uuid.New().String()
			fmt.Fprintf(os.Stderr, "Run ID: %s\n", runID)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, runErr := orch.RunBaseline(ctx, runID, chunks)
		printSummary(summary, runID)
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Run interrupted: %v\n", runErr)
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

		if err := writeOutput(baselineOutput, tear.Merge(records)); err != nil {
			return err
		}
		fmt.Printf("Merged %d chunks into %s\n", len(records), baselineOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(baselineCmd)

	baselineCmd.Flags().StringVarP(&baselineInput, "input", "i", "", "Input document (.txt or .jsonl) (required)")
	baselineCmd.Flags().StringVarP(&baselineOutput, "output", "o", "", "Output file for the merged translation (required)")
	baselineCmd.Flags().StringVar(&baselineRunID, "run-id", "", "Run identifier (generated when empty)")
	baselineCmd.Flags().IntVar(&baselineMaxChars, "max-chars", chunker.DefaultMaxChars, "Maximum characters per chunk when splitting plain text")

	baselineCmd.Flags().StringP("source", "s", "", "Source language code")
	baselineCmd.Flags().StringP("target", "t", "", "Target language code")
	baselineCmd.Flags().String("backend", "", "Drafting backend: ollama or openai")

	baselineCmd.MarkFlagRequired("input")
	baselineCmd.MarkFlagRequired("output")
}
