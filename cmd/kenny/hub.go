package main

import (
	"os"

	"github.com/lox/kenny/cmd/kenny/shared"
	"github.com/lox/kenny/internal/chat/hub"
)

// HubCmd serves a websocket chat hub with the bot as a participant.
type HubCmd struct {
	Addr    string `help:"Listen address (overrides config)"`
	BotName string `help:"Name the bot posts as and answers to (overrides config)"`
}

func (c *HubCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Hub.Address = c.Addr
	}
	if c.BotName != "" {
		cfg.Hub.BotName = c.BotName
	}
	logger, err := g.logger(os.Stderr, cfg)
	if err != nil {
		return err
	}

	transport := hub.New(cfg.Hub.Address, logger, hub.WithBotName(cfg.Hub.BotName))

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()
	return runBot(ctx, g, cfg, logger, transport)
}
