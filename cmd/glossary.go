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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ostrovsky/tearloop/internal/config"
	"github.com/ostrovsky/tearloop/internal/glossary"
	"github.com/ostrovsky/tearloop/internal/review"
)

var (
	glossarySheet    string
	glossaryOpenOnly bool
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Inspect and review the knowledge base",
}

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print knowledge base entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, map[string]string{"glossary": "glossary"})

		s, err := config.Load()
		if err != nil {
			return err
		}
		kb, err := glossary.Load(s.GlossaryPath)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TERM\tTYPE\tFINAL\tCANDIDATES\tSENSES")
		for _, e := range kb.Entries() {
			if glossaryOpenOnly && e.Final != "" {
				continue
			}
			final := e.Final
			if final == "" {
				final = "(open)"
			}
			renderings := make([]string, 0, len(e.Candidates))
			for _, c := range e.Candidates {
				renderings = append(renderings, c.Rendering)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				e.Key, e.Type, final, strings.Join(renderings, ", "), len(e.Senses))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "\n%d entries, glossary version %d\n", kb.Len(), kb.Version)
		return nil
	},
}

var glossaryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the candidate review sheet (CSV)",
	Long: `Write a CSV sheet of every entry that has no confirmed final rendering.
A reviewer fills the "final" column and feeds the sheet back with
"tearloop glossary import".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, map[string]string{"glossary": "glossary"})

		s, err := config.Load()
		if err != nil {
			return err
		}
		kb, err := glossary.Load(s.GlossaryPath)
		if err != nil {
			return err
		}

		n, err := review.Export(kb, glossarySheet)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d open entries to %s\n", n, glossarySheet)
		return nil
	},
}

var glossaryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply a reviewed candidate sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, map[string]string{"glossary": "glossary"})

		s, err := config.Load()
		if err != nil {
			return err
		}
		kb, err := glossary.Load(s.GlossaryPath)
		if err != nil {
			return err
		}

		rows, err := review.Import(glossarySheet)
		if err != nil {
			return err
		}
		changed := kb.ApplyReview(rows)
		if changed == 0 {
			fmt.Println("No entries changed")
			return nil
		}

		versioned, err := kb.Save(s.GlossaryPath)
		if err != nil {
			return err
		}
		fmt.Printf("Finalized %d entries, knowledge base written to %s\n", changed, versioned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)
	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryExportCmd)
	glossaryCmd.AddCommand(glossaryImportCmd)

	glossaryCmd.PersistentFlags().String("glossary", "", "Knowledge base path")

	glossaryListCmd.Flags().BoolVar(&glossaryOpenOnly, "open", false, "Only show entries without a confirmed final rendering")
	glossaryExportCmd.Flags().StringVarP(&glossarySheet, "sheet", "f", "./data/review.csv", "Review sheet path")
	glossaryImportCmd.Flags().StringVarP(&glossarySheet, "sheet", "f", "./data/review.csv", "Review sheet path")
}
