package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/kenny/internal/storage"
	"github.com/lox/kenny/internal/storage/sqlite"
	"github.com/lox/kenny/internal/trivia"
)

// GameCmd prints a stored game. With --channel it shows the channel's
// unfinished game, which after a crash is the stale record left behind.
type GameCmd struct {
	ID      int64  `arg:"" optional:"" help:"Game id"`
	Channel string `help:"Show the in-progress game for this channel instead"`
	Top     int    `default:"10" help:"Number of scores to show"`
}

func (c *GameCmd) Run(g *Globals) error {
	if c.ID == 0 && c.Channel == "" {
		return errors.New("either a game id or --channel is required")
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := sqlite.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	var game storage.Game
	if c.Channel != "" {
		game, err = store.ActiveGame(ctx, c.Channel)
	} else {
		game, err = store.Game(ctx, c.ID)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("no matching game")
	}
	if err != nil {
		return err
	}

	scores, err := store.Leaderboard(ctx, game.ID, c.Top)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Game %d in %s", game.ID, game.Channel)))
	fmt.Printf("  %s, round %d of %d, started %s\n\n",
		game.State, game.CurrentRound, game.TotalRounds, game.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(trivia.FormatLeaderboard(scores))
	return nil
}
