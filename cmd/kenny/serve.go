package main

import (
	"os"

	"github.com/lox/kenny/cmd/kenny/shared"
	"github.com/lox/kenny/internal/chat/slack"
)

// ServeCmd runs the bot against Slack over Socket Mode.
type ServeCmd struct {
	BotToken string `env:"SLACK_BOT_TOKEN" required:"" help:"Slack bot token (xoxb-...)"`
	AppToken string `env:"SLACK_APP_TOKEN" required:"" help:"Slack app-level token (xapp-...)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger, err := g.logger(os.Stderr, cfg)
	if err != nil {
		return err
	}

	transport, err := slack.New(c.BotToken, c.AppToken, logger)
	if err != nil {
		return err
	}

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()
	return runBot(ctx, g, cfg, logger, transport)
}
