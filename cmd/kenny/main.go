package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Globals

	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Serve     ServeCmd         `cmd:"" help:"Run the bot in a Slack workspace"`
	Hub       HubCmd           `cmd:"" help:"Run the bot behind a local websocket chat hub"`
	Console   ConsoleCmd       `cmd:"" help:"Play against the bot in this terminal"`
	Questions QuestionsCmd     `cmd:"" help:"Check a question bank file"`
	Game      GameCmd          `cmd:"" help:"Show a stored game and its scores"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kenny"),
		kong.Description("Trivia games for chat channels"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
