package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/kenny/internal/chat"
	"github.com/lox/kenny/internal/config"
	"github.com/lox/kenny/internal/pending"
	"github.com/lox/kenny/internal/questions"
	"github.com/lox/kenny/internal/randutil"
	"github.com/lox/kenny/internal/storage/sqlite"
	"github.com/lox/kenny/internal/trivia"
)

const shutdownTimeout = 10 * time.Second

// runBot wires storage, questions, the generator and the game manager to
// transport and runs until ctx is cancelled or the transport stops.
func runBot(ctx context.Context, g *Globals, cfg *config.Config, logger zerolog.Logger, transport chat.Transport) error {
	timeout, err := cfg.AnswerTimeout()
	if err != nil {
		return err
	}
	genTimeout, err := cfg.GeneratorTimeout()
	if err != nil {
		return err
	}

	store, err := sqlite.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	bank, err := questions.Load(cfg.Questions.File)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	gen, err := g.generator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	seed := randutil.Seed(g.Seed)
	registry := pending.NewRegistry()
	manager := trivia.NewManager(logger, transport, store, bank, gen, registry,
		trivia.WithConfig(trivia.Config{
			AnswerTimeout:    timeout,
			GeneratorTimeout: genTimeout,
			CurveballChance:  *cfg.Game.CurveballChance,
			LeaderboardSize:  cfg.Game.LeaderboardSize,
			MaxRounds:        cfg.Game.MaxRounds,
		}),
		trivia.WithRNG(randutil.New(seed)),
	)
	router := trivia.NewRouter(logger, manager, registry, gen, transport, trivia.RouterConfig{
		Command:          cfg.Game.Command,
		TriggerPhrase:    cfg.Game.TriggerPhrase,
		DefaultRounds:    cfg.Game.DefaultRounds,
		ClassifyMentions: cfg.Game.ClassifyMentions,
	})

	logger.Info().
		Int("questions", bank.Len()).
		Str("database", cfg.Storage.Path).
		Str("provider", cfg.Generator.Provider).
		Dur("answer_timeout", timeout).
		Float64("curveball_chance", *cfg.Game.CurveballChance).
		Int64("seed", seed).
		Msg("Starting trivia bot")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer cancel()
		return transport.Run(gctx, router)
	})
	if cfg.Questions.Watch {
		grp.Go(func() error {
			return questions.Watch(gctx, bank, logger)
		})
	}
	runErr := grp.Wait()

	logger.Info().Int("active_games", len(manager.ActiveGames())).Msg("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Games did not stop in time")
	}
	return runErr
}
