package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/kenny/cmd/kenny/shared"
	"github.com/lox/kenny/internal/chat/console"
)

// ConsoleCmd plays trivia in the terminal. Logs go to a file so they don't
// interleave with the game.
type ConsoleCmd struct {
	LogFile string `default:"kenny-console.log" help:"File to write logs to"`
}

func (c *ConsoleCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	logger, err := g.logger(logFile, cfg)
	if err != nil {
		return err
	}

	consoleLogger := log.New(logFile)
	if cfg.Log.Level == "debug" {
		consoleLogger.SetLevel(log.DebugLevel)
	} else {
		consoleLogger.SetLevel(log.InfoLevel)
	}

	transport := console.New(os.Stdin, os.Stdout, cfg.Hub.BotName, consoleLogger)

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()
	return runBot(ctx, g, cfg, logger, transport)
}
