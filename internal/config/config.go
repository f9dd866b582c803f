// Package config loads the bot's HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete bot configuration.
type Config struct {
	Game      GameConfig
	Questions QuestionsConfig
	Storage   StorageConfig
	Generator GeneratorConfig
	Log       LogConfig
	Hub       HubConfig
}

// GameConfig tunes the round loop and its triggers.
type GameConfig struct {
	DefaultRounds    int      `hcl:"default_rounds,optional"`
	MaxRounds        int      `hcl:"max_rounds,optional"`
	AnswerTimeout    string   `hcl:"answer_timeout,optional"`
	CurveballChance  *float64 `hcl:"curveball_chance,optional"`
	LeaderboardSize  int      `hcl:"leaderboard_size,optional"`
	Command          string   `hcl:"command,optional"`
	TriggerPhrase    string   `hcl:"trigger_phrase,optional"`
	ClassifyMentions bool     `hcl:"classify_mentions,optional"`
}

// QuestionsConfig points at the static question bank.
type QuestionsConfig struct {
	File  string `hcl:"file,optional"`
	Watch bool   `hcl:"watch,optional"`
}

// StorageConfig selects the SQLite database.
type StorageConfig struct {
	Path string `hcl:"path,optional"`
}

// GeneratorConfig selects the language model backend.
type GeneratorConfig struct {
	Provider string `hcl:"provider,optional"`
	Model    string `hcl:"model,optional"`
	BaseURL  string `hcl:"base_url,optional"`
	Timeout  string `hcl:"timeout,optional"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// HubConfig configures the local websocket chat hub.
type HubConfig struct {
	Address string `hcl:"address,optional"`
	BotName string `hcl:"bot_name,optional"`
}

// Generator providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// fileConfig mirrors Config with optional blocks.
type fileConfig struct {
	Game      *GameConfig      `hcl:"game,block"`
	Questions *QuestionsConfig `hcl:"questions,block"`
	Storage   *StorageConfig   `hcl:"storage,block"`
	Generator *GeneratorConfig `hcl:"generator,block"`
	Log       *LogConfig       `hcl:"log,block"`
	Hub       *HubConfig       `hcl:"hub,block"`
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	return decode(file)
}

// Parse decodes configuration from src; filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}
	return decode(file)
}

func decode(file *hcl.File) (*Config, error) {
	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	c := &Config{}
	if fc.Game != nil {
		c.Game = *fc.Game
	}
	if fc.Questions != nil {
		c.Questions = *fc.Questions
	}
	if fc.Storage != nil {
		c.Storage = *fc.Storage
	}
	if fc.Generator != nil {
		c.Generator = *fc.Generator
	}
	if fc.Log != nil {
		c.Log = *fc.Log
	}
	if fc.Hub != nil {
		c.Hub = *fc.Hub
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Game.DefaultRounds == 0 {
		c.Game.DefaultRounds = 5
	}
	if c.Game.MaxRounds == 0 {
		c.Game.MaxRounds = 20
	}
	if c.Game.AnswerTimeout == "" {
		c.Game.AnswerTimeout = "30s"
	}
	if c.Game.CurveballChance == nil {
		chance := 0.2
		c.Game.CurveballChance = &chance
	}
	if c.Game.LeaderboardSize == 0 {
		c.Game.LeaderboardSize = 3
	}
	if c.Game.Command == "" {
		c.Game.Command = "/trivia"
	}
	if c.Game.TriggerPhrase == "" {
		c.Game.TriggerPhrase = "play trivia"
	}
	if c.Questions.File == "" {
		c.Questions.File = "questions.csv"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "kenny.db"
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = ProviderOpenAI
	}
	if c.Generator.Timeout == "" {
		c.Generator.Timeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Hub.Address == "" {
		c.Hub.Address = ":8080"
	}
	if c.Hub.BotName == "" {
		c.Hub.BotName = "kenny"
	}
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	if c.Game.DefaultRounds <= 0 {
		return fmt.Errorf("game: default_rounds must be positive")
	}
	if c.Game.MaxRounds < c.Game.DefaultRounds {
		return fmt.Errorf("game: max_rounds (%d) must be at least default_rounds (%d)", c.Game.MaxRounds, c.Game.DefaultRounds)
	}
	timeout, err := c.AnswerTimeout()
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return fmt.Errorf("game: answer_timeout must be positive")
	}
	if chance := *c.Game.CurveballChance; chance < 0 || chance > 1 {
		return fmt.Errorf("game: curveball_chance must be between 0 and 1")
	}
	if c.Game.LeaderboardSize <= 0 {
		return fmt.Errorf("game: leaderboard_size must be positive")
	}
	if !strings.HasPrefix(c.Game.Command, "/") {
		return fmt.Errorf("game: command must start with '/'")
	}

	switch c.Generator.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderNone:
	default:
		return fmt.Errorf("generator: invalid provider %q", c.Generator.Provider)
	}
	genTimeout, err := c.GeneratorTimeout()
	if err != nil {
		return err
	}
	if genTimeout <= 0 {
		return fmt.Errorf("generator: timeout must be positive")
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log: invalid format %q", c.Log.Format)
	}
	return nil
}

// AnswerTimeout parses the configured per-round wait.
func (c *Config) AnswerTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Game.AnswerTimeout)
	if err != nil {
		return 0, fmt.Errorf("game: invalid answer_timeout %q: %w", c.Game.AnswerTimeout, err)
	}
	return d, nil
}

// GeneratorTimeout parses the deadline for a single generator call.
func (c *Config) GeneratorTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Generator.Timeout)
	if err != nil {
		return 0, fmt.Errorf("generator: invalid timeout %q: %w", c.Generator.Timeout, err)
	}
	return d, nil
}
