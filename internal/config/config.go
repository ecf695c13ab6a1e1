// Package config loads run settings from flags, a config file and
// TEARLOOP-prefixed environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Settings holds everything the pipeline commands need to build their
// components.
type Settings struct {
	SourceLang string
	TargetLang string

	// Backend selects the drafting engine: ollama or openai.
	Backend     string
	OllamaURL   string
	OllamaModel string
	OpenAIKey   string
	OpenAIBase  string
	OpenAIModel string

	// BackBackend selects the back-translation engine: google, ollama or
	// openai. Keeping it independent from the drafting backend avoids a
	// model grading its own output.
	BackBackend       string
	GoogleCredentials string

	MaxIterations        int
	FidelityThreshold    float64
	AllowMinorViolations bool
	Concurrency          int
	RetryBudget          int
	RetryDelay           time.Duration

	GlossaryPath string
	LedgerPath   string
}

// Init points viper at the config file and environment. When cfgFile is
// empty it searches for .tearloop.yaml in the working and home directories.
func Init(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tearloop")
	}

	viper.SetEnvPrefix("TEARLOOP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	viper.SetDefault("source", "zh")
	viper.SetDefault("target", "en")
	viper.SetDefault("backend", "ollama")
	viper.SetDefault("ollama_url", "http://localhost:11434")
	viper.SetDefault("ollama_model", "llama3.2")
	viper.SetDefault("openai_model", "")
	viper.SetDefault("back_backend", "google")
	viper.SetDefault("max_iterations", 3)
	viper.SetDefault("fidelity_threshold", 0.55)
	viper.SetDefault("allow_minor_violations", false)
	viper.SetDefault("concurrency", 4)
	viper.SetDefault("retry_budget", 2)
	viper.SetDefault("retry_delay", "500ms")
	viper.SetDefault("glossary", "./data/glossary.json")
	viper.SetDefault("ledger", "./data/tearloop.db")
}

// Load materializes and validates the settings.
func Load() (*Settings, error) {
	s := &Settings{
		SourceLang:           viper.GetString("source"),
		TargetLang:           viper.GetString("target"),
		Backend:              viper.GetString("backend"),
		OllamaURL:            viper.GetString("ollama_url"),
		OllamaModel:          viper.GetString("ollama_model"),
		OpenAIKey:            openAIKey(),
		OpenAIBase:           viper.GetString("openai_base_url"),
		OpenAIModel:          viper.GetString("openai_model"),
		BackBackend:          viper.GetString("back_backend"),
		GoogleCredentials:    viper.GetString("google_credentials"),
		MaxIterations:        viper.GetInt("max_iterations"),
		FidelityThreshold:    viper.GetFloat64("fidelity_threshold"),
		AllowMinorViolations: viper.GetBool("allow_minor_violations"),
		Concurrency:          viper.GetInt("concurrency"),
		RetryBudget:          viper.GetInt("retry_budget"),
		RetryDelay:           viper.GetDuration("retry_delay"),
		GlossaryPath:         viper.GetString("glossary"),
		LedgerPath:           viper.GetString("ledger"),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings the pipeline cannot run with.
func (s *Settings) Validate() error {
	if s.SourceLang == "" || s.TargetLang == "" {
		return fmt.Errorf("source and target languages are required")
	}
	if s.SourceLang == s.TargetLang {
		return fmt.Errorf("source and target languages must differ")
	}
	switch s.Backend {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown backend %q (want ollama or openai)", s.Backend)
	}
	switch s.BackBackend {
	case "google", "ollama", "openai":
	default:
		return fmt.Errorf("unknown back-translation backend %q (want google, ollama or openai)", s.BackBackend)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.FidelityThreshold < 0 || s.FidelityThreshold > 1 {
		return fmt.Errorf("fidelity_threshold must be within [0,1], got %v", s.FidelityThreshold)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if s.RetryBudget < 0 {
		return fmt.Errorf("retry_budget cannot be negative, got %d", s.RetryBudget)
	}
	return nil
}

// openAIKey prefers the conventional environment variable over the config
// file.
func openAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("openai_key")
}
