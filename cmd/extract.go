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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/chunker"
	"github.com/ostrovsky/tearloop/internal/config"
	"github.com/ostrovsky/tearloop/internal/extractor"
	"github.com/ostrovsky/tearloop/internal/glossary"
)

var (
	extractInput    string
	extractMaxChars int
	extractWorld    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Mine term candidates from a source document",
	Long: `Extract recurring names and terms from the source document into the
knowledge base. Each chunk is sent to the extraction backend together with
the terms found so far, and the results are merged conflict-aware: confirmed
named-entity renderings are never overwritten, diverging renderings are
recorded as candidates for review.

Run "tearloop glossary export" afterwards to produce the review sheet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, map[string]string{
			"glossary": "glossary",
			"backend":  "backend",
		})

		s, err := config.Load()
		if err != nil {
			return err
		}

		chunks, err := loadChunks(extractInput, extractMaxChars)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return fmt.Errorf("input %s produced no chunks", extractInput)
		}

		kb, err := loadKnowledgeBase(s.GlossaryPath)
		if err != nil {
			return err
		}
		if extractWorld != "" {
			kb.WorldSummary = extractWorld
		}

		chat, err := buildChatClient(s)
		if err != nil {
			return err
		}
		ext := extractor.New(chat)

		stats, err := runExtraction(context.Background(), ext, kb, chunks)
		if err != nil {
			return err
		}

		versioned, err := kb.Save(s.GlossaryPath)
		if err != nil {
			return err
		}

		fmt.Printf("Extracted %d term mentions into %d entries\n", stats.terms, kb.Len())
		if stats.conflicts > 0 {
			fmt.Printf("Recorded %d rendering conflicts for review\n", stats.conflicts)
		}
		fmt.Printf("Knowledge base written to %s\n", versioned)

		if len(stats.unresolved) > 0 {
			return fmt.Errorf("%d chunks produced unparseable extraction output (%s); re-run extract on them",
				len(stats.unresolved), strings.Join(stats.unresolved, ", "))
		}
		return nil
	},
}

type extractStats struct {
	terms      int
	conflicts  int
	unresolved []string
}

// runExtraction mines every chunk, merging results as it goes. Chunks whose
// output stays unparseable after the extractor's re-prompt are recorded as
// unresolved rather than failing the pass; everything mined so far is still
// worth saving.
func runExtraction(ctx context.Context, ext *extractor.Extractor, kb *glossary.KnowledgeBase, chunks []internal.Chunk) (*extractStats, error) {
	stats := &extractStats{}
	for i, chunk := range chunks {
		terms, err := ext.Extract(ctx, chunk, runningEntries(kb))
		if err != nil {
			var schemaErr *extractor.SchemaError
			if errors.As(err, &schemaErr) {
				fmt.Fprintf(os.Stderr, "chunk %s: unparseable extraction output: %v\n", chunk.ID, err)
				stats.unresolved = append(stats.unresolved, chunk.ID)
				continue
			}
			return nil, fmt.Errorf("extraction failed on chunk %s: %w", chunk.ID, err)
		}

		report := kb.Merge(terms)
		stats.terms += len(terms)
		stats.conflicts += len(report.Conflicts)
		fmt.Fprintf(os.Stderr, "chunk %d/%d: %d terms (%d new, %d conflicts)\n",
			i+1, len(chunks), len(terms), report.Added, len(report.Conflicts))
	}
	return stats, nil
}

// runningEntries flattens the knowledge base for the extraction prompt.
func runningEntries(kb *glossary.KnowledgeBase) []glossary.TermEntry {
	ptrs := kb.Entries()
	out := make([]glossary.TermEntry, 0, len(ptrs))
	for _, e := range ptrs {
		out = append(out, *e)
	}
	return out
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "Source document (.txt or .jsonl) (required)")
	extractCmd.Flags().IntVar(&extractMaxChars, "max-chars", chunker.DefaultMaxChars, "Maximum characters per chunk when splitting plain text")
	extractCmd.Flags().StringVar(&extractWorld, "world-summary", "", "Short setting description stored with the knowledge base")
	extractCmd.Flags().String("glossary", "", "Knowledge base path")
	extractCmd.Flags().String("backend", "", "Extraction backend: ollama or openai")

	extractCmd.MarkFlagRequired("input")
}
