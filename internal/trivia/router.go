package trivia

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lox/kenny/internal/chat"
	"github.com/lox/kenny/internal/pending"
)

const startFailedText = ":x: Sorry, I couldn't start a trivia game right now."

// RouterConfig controls which chat input starts a game.
type RouterConfig struct {
	Command          string
	TriggerPhrase    string
	DefaultRounds    int
	ClassifyMentions bool
}

// DefaultRouterConfig returns the standard triggers.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Command:       "/trivia",
		TriggerPhrase: "play trivia",
		DefaultRounds: 5,
	}
}

// Router is the chat.Handler that feeds inbound messages to the pending
// answer registry and turns commands and mentions into games.
type Router struct {
	manager  *Manager
	registry *pending.Registry
	gen      Generator
	poster   chat.Poster
	config   RouterConfig
	logger   zerolog.Logger
}

var _ chat.Handler = (*Router)(nil)

// NewRouter wires a router to manager and the registry it waits on.
func NewRouter(logger zerolog.Logger, manager *Manager, registry *pending.Registry, gen Generator, poster chat.Poster, cfg RouterConfig) *Router {
	if cfg.DefaultRounds <= 0 {
		cfg.DefaultRounds = DefaultRouterConfig().DefaultRounds
	}
	return &Router{
		manager:  manager,
		registry: registry,
		gen:      gen,
		poster:   poster,
		config:   cfg,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// HandleMessage offers every message to the channel's pending answer. It
// never blocks.
func (r *Router) HandleMessage(_ context.Context, msg chat.Message) {
	if r.registry.TryResolve(msg.Channel, msg.User, msg.Text, msg.Timestamp) {
		r.logger.Debug().
			Str("channel", msg.Channel).
			Str("user", msg.User).
			Str("timestamp", msg.Timestamp).
			Msg("Message resolved pending answer")
	}
}

// HandleCommand starts a game for the configured command. The argument is an
// optional round count.
func (r *Router) HandleCommand(ctx context.Context, cmd chat.Command) {
	if cmd.Name != r.config.Command {
		r.logger.Debug().Str("command", cmd.Name).Msg("Ignoring unknown command")
		return
	}
	rounds := ParseRounds(cmd.Text, r.config.DefaultRounds)
	r.logger.Info().
		Str("channel", cmd.Channel).
		Str("user", cmd.User).
		Int("rounds", rounds).
		Msg("Trivia command invoked")
	r.start(ctx, cmd.Channel, rounds)
}

// HandleMention starts a game when the mention contains the trigger phrase
// (or, when enabled, the generator classifies it as a request to play) and
// otherwise replies with banter.
func (r *Router) HandleMention(ctx context.Context, msg chat.Message) {
	r.logger.Info().Str("channel", msg.Channel).Str("user", msg.User).Str("text", msg.Text).Msg("Mention received")

	if r.wantsTrivia(ctx, msg.Text) {
		r.start(ctx, msg.Channel, r.config.DefaultRounds)
		return
	}

	gctx, cancel := r.manager.generatorContext(ctx)
	reply, err := r.gen.Banter(gctx, msg.User, msg.Text)
	err = generatorErr(gctx, err)
	cancel()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Banter generation failed, echoing instead")
		reply = fmt.Sprintf("Hey %s! You said: %s", chat.Mention(msg.User), msg.Text)
	}
	if err := r.poster.PostMessage(ctx, msg.Channel, reply); err != nil {
		r.logger.Error().Err(err).Str("channel", msg.Channel).Msg("Failed to reply to mention")
	}
}

func (r *Router) wantsTrivia(ctx context.Context, text string) bool {
	if r.config.TriggerPhrase != "" && strings.Contains(strings.ToLower(text), strings.ToLower(r.config.TriggerPhrase)) {
		return true
	}
	if !r.config.ClassifyMentions {
		return false
	}
	gctx, cancel := r.manager.generatorContext(ctx)
	defer cancel()
	yes, err := r.gen.WantsTrivia(gctx, text)
	if err := generatorErr(gctx, err); err != nil {
		r.logger.Warn().Err(err).Msg("Intent classification failed")
		return false
	}
	return yes
}

func (r *Router) start(ctx context.Context, channel string, rounds int) {
	err := r.manager.StartGame(ctx, channel, rounds)
	switch {
	case err == nil:
	case errors.Is(err, ErrGameInProgress):
		r.logger.Debug().Str("channel", channel).Msg("Game already running")
	default:
		r.logger.Error().Err(err).Str("channel", channel).Msg("Failed to start game")
		if perr := r.poster.PostMessage(ctx, channel, startFailedText); perr != nil {
			r.logger.Error().Err(perr).Str("channel", channel).Msg("Failed to post start failure")
		}
	}
}

// ParseRounds reads a round count from command text. Anything that is not a
// positive integer yields def.
func ParseRounds(text string, def int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	n, err := strconv.Atoi(strings.Fields(text)[0])
	if err != nil || n <= 0 {
		return def
	}
	return n
}
