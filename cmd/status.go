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
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/config"
	"github.com/ostrovsky/tearloop/internal/ledger"
	"github.com/ostrovsky/tearloop/internal/tear"
)

var (
	statusRunID   string
	statusVerbose bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a run's progress and flagged chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, map[string]string{"ledger": "ledger"})

		s, err := config.Load()
		if err != nil {
			return err
		}

		led, err := ledger.Open(s.LedgerPath)
		if err != nil {
			return err
		}
		defer led.Close()

		ctx := context.Background()
		run, err := led.GetRun(ctx, statusRunID)
		if err != nil {
			return err
		}

		latest, err := led.Replay(ctx, statusRunID)
		if err != nil {
			return err
		}

		var counts ledger.Counts
		var flagged []*tear.TranslationRecord
		for _, lr := range latest {
			rec, err := tear.DecodeRecord(lr.Payload)
			if err != nil {
				fmt.Fprintf(os.Stderr, "chunk %s: unreadable record: %v\n", lr.ChunkID, err)
				continue
			}
			switch rec.Status {
			case internal.StatusDone:
				counts.Done++
				if rec.Degraded {
					counts.Degraded++
					flagged = append(flagged, rec)
				}
			case internal.StatusFailed:
				counts.Failed++
				flagged = append(flagged, rec)
			default:
				counts.Pending++
			}
		}

		fmt.Printf("Run %s (%s -> %s, glossary v%d)\n", run.ID, run.SourceLang, run.TargetLang, run.GlossaryVersion)
		fmt.Printf("  done: %d (%d degraded)\n  failed: %d\n  in flight: %d\n",
			counts.Done, counts.Degraded, counts.Failed, counts.Pending)

		if len(flagged) == 0 {
			return nil
		}

		sort.Slice(flagged, func(i, j int) bool { return flagged[i].PositionKey < flagged[j].PositionKey })

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nCHUNK\tSTATE\tITER\tVIOLATIONS\tFIDELITY\tERROR")
		for _, rec := range flagged {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
				rec.ChunkID, rec.State, rec.IterationCount, len(rec.Violations), rec.Fidelity, rec.LastError)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if statusVerbose {
			for _, rec := range flagged {
				for _, v := range rec.Violations {
					fmt.Printf("  %s: %s term %q expected %q", rec.ChunkID, v.Kind, v.TermKey, v.Expected)
					if v.Found != "" {
						fmt.Printf(" found %q", v.Found)
					}
					fmt.Println()
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusRunID, "run-id", "", "Run identifier (required)")
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "List individual glossary violations")
	statusCmd.Flags().String("ledger", "", "Run ledger database path")

	statusCmd.MarkFlagRequired("run-id")
}
