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
	"os"

	"github.com/spf13/cobra"

	"github.com/ostrovsky/tearloop/internal/config"
)

var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tearloop",
	Short: "Glossary-consistent long-document translator",
	Long: `A CLI pipeline for translating long documents with a shared glossary.

The pipeline runs in stages:

  tearloop extract    Mine term candidates from the source into a knowledge base
  tearloop glossary   Review, import and export glossary entries
  tearloop translate  Run the iterative translate-evaluate-refine loop
  tearloop baseline   Single-pass translation for comparison
  tearloop status     Inspect a run's progress and flagged chunks

Drafting backends: Ollama (self-hosted) and OpenAI-compatible APIs.
Back-translation: Google Translate, Ollama or OpenAI.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { config.Init(cfgFile) })
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tearloop.yaml)")
}
