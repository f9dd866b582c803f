package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/lox/kenny/cmd/kenny/shared"
	"github.com/lox/kenny/internal/config"
	"github.com/lox/kenny/internal/generator"
)

// Globals are flags shared by every command.
type Globals struct {
	Config    string `short:"c" default:"kenny.hcl" env:"KENNY_CONFIG" help:"Path to HCL config file (optional)"`
	Debug     bool   `help:"Enable debug logging"`
	LogFormat string `help:"Log format: console or json (overrides config)"`
	Questions string `help:"Question bank file (overrides config)"`
	Database  string `help:"SQLite database path (overrides config)"`
	Provider  string `help:"Generator provider: openai, gemini or none (overrides config)"`
	Seed      *int64 `help:"Deterministic RNG seed (optional)"`

	OpenAIKey string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key"`
	GeminiKey string `name:"gemini-api-key" env:"GEMINI_API_KEY" help:"Gemini API key"`
}

// loadConfig reads the config file and applies command line overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Debug {
		cfg.Log.Level = "debug"
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if g.Questions != "" {
		cfg.Questions.File = g.Questions
	}
	if g.Database != "" {
		cfg.Storage.Path = g.Database
	}
	if g.Provider != "" {
		cfg.Generator.Provider = g.Provider
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (g *Globals) logger(w io.Writer, cfg *config.Config) (zerolog.Logger, error) {
	return shared.SetupLogger(w, cfg.Log.Level, cfg.Log.Format)
}

// generator builds the model client for the configured provider. A missing
// key disables generation rather than failing; every caller has a fallback.
func (g *Globals) generator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*generator.Client, error) {
	var backend generator.Backend

	switch cfg.Generator.Provider {
	case config.ProviderOpenAI:
		if g.OpenAIKey == "" {
			logger.Warn().Msg("OPENAI_API_KEY not set, generated content disabled")
			break
		}
		b, err := generator.NewOpenAI(g.OpenAIKey, cfg.Generator.Model, cfg.Generator.BaseURL)
		if err != nil {
			return nil, err
		}
		backend = b

	case config.ProviderGemini:
		if g.GeminiKey == "" {
			logger.Warn().Msg("GEMINI_API_KEY not set, generated content disabled")
			break
		}
		b, err := generator.NewGemini(ctx, g.GeminiKey, cfg.Generator.Model)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	return generator.New(backend, logger), nil
}
