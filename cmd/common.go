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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ostrovsky/tearloop/internal"
	"github.com/ostrovsky/tearloop/internal/chunker"
	"github.com/ostrovsky/tearloop/internal/config"
	"github.com/ostrovsky/tearloop/internal/extractor"
	"github.com/ostrovsky/tearloop/internal/glossary"
	"github.com/ostrovsky/tearloop/internal/translator"
)

// bindFlags points viper keys at the command's flags. Binding at run time
// keeps commands that share flag names from clobbering each other's
// bindings during package init.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// loadChunks reads the input document. A .jsonl file is taken as
// pre-segmented chunks; anything else is read as plain text and split.
func loadChunks(path string, maxChars int) ([]internal.Chunk, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return chunker.ReadJSONL(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return chunker.SplitText(string(raw), title, maxChars), nil
}

// loadKnowledgeBase opens the glossary file, or starts an empty knowledge
// base when it does not exist yet.
func loadKnowledgeBase(path string) (*glossary.KnowledgeBase, error) {
	kb, err := glossary.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return glossary.New(), nil
		}
		return nil, err
	}
	return kb, nil
}

func buildDrafter(s *config.Settings) (translator.Translator, error) {
	switch s.Backend {
	case "ollama":
		return translator.NewOllamaTranslator(s.OllamaURL, s.OllamaModel), nil
	case "openai":
		if s.OpenAIKey == "" {
			return nil, fmt.Errorf("openai backend requires an API key (OPENAI_API_KEY or openai_key)")
		}
		return translator.NewOpenAITranslator(s.OpenAIKey, s.OpenAIBase, s.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

func buildBackTranslator(s *config.Settings) (translator.Translator, error) {
	switch s.BackBackend {
	case "google":
		return translator.NewGoogleTranslator(s.GoogleCredentials), nil
	case "ollama":
		return translator.NewOllamaTranslator(s.OllamaURL, s.OllamaModel), nil
	case "openai":
		if s.OpenAIKey == "" {
			return nil, fmt.Errorf("openai back-translation requires an API key")
		}
		return translator.NewOpenAITranslator(s.OpenAIKey, s.OpenAIBase, s.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown back-translation backend %q", s.BackBackend)
	}
}

func buildChatClient(s *config.Settings) (extractor.ChatClient, error) {
	switch s.Backend {
	case "ollama":
		return extractor.NewOllamaChat(s.OllamaURL, s.OllamaModel), nil
	case "openai":
		if s.OpenAIKey == "" {
			return nil, fmt.Errorf("openai backend requires an API key")
		}
		return extractor.NewOpenAIChat(s.OpenAIKey, s.OpenAIBase, s.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

func writeOutput(path, text string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
