// Package trivia runs one trivia game per chat channel: it posts questions,
// waits for the first matching answer or a timeout, keeps score, and reports
// a leaderboard when the last round is over.
package trivia

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/kenny/internal/chat"
	"github.com/lox/kenny/internal/pending"
	"github.com/lox/kenny/internal/questions"
	"github.com/lox/kenny/internal/randutil"
	"github.com/lox/kenny/internal/storage"
)

// Store persists games and scores. Calls for the same game are serialised by
// the implementation and durable when they return.
type Store interface {
	CreateGame(ctx context.Context, channel string, totalRounds int) (int64, error)
	IncrementRound(ctx context.Context, gameID int64) error
	RecordScore(ctx context.Context, gameID int64, user string) error
	FinalizeGame(ctx context.Context, gameID int64) error
	Leaderboard(ctx context.Context, gameID int64, limit int) ([]storage.Score, error)
}

// QuestionBank is the static question source.
type QuestionBank interface {
	Pick(r *rand.Rand) (questions.Question, error)
}

// Generator produces model-written content. Every method may fail; callers
// substitute fixed fallbacks.
type Generator interface {
	Curveball(ctx context.Context) (questions.Question, error)
	Congratulate(ctx context.Context, user, question string) (string, error)
	Banter(ctx context.Context, user, text string) (string, error)
	WantsTrivia(ctx context.Context, text string) (bool, error)
}

// Config tunes the round loop.
type Config struct {
	AnswerTimeout time.Duration
	// GeneratorTimeout bounds each generator call. Zero means no bound.
	GeneratorTimeout time.Duration
	CurveballChance  float64
	LeaderboardSize  int
	MaxRounds        int
}

// DefaultConfig returns the standard game settings.
func DefaultConfig() Config {
	return Config{
		AnswerTimeout:    30 * time.Second,
		GeneratorTimeout: 10 * time.Second,
		CurveballChance:  0.2,
		LeaderboardSize:  3,
		MaxRounds:        20,
	}
}

// Phase is where a running game is in its lifecycle.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseRunning   Phase = "running"
	PhaseReporting Phase = "reporting"
)

// GameStatus is a snapshot of a running game.
type GameStatus struct {
	Channel     string
	GameID      int64
	TotalRounds int
	Round       int
	Phase       Phase
	StartedAt   time.Time
}

type game struct {
	channel     string
	totalRounds int
	startedAt   time.Time

	// Guarded by Manager.mu.
	id    int64
	round int
	phase Phase
}

// Manager owns the per-channel games.
type Manager struct {
	poster   chat.Poster
	store    Store
	bank     QuestionBank
	gen      Generator
	registry *pending.Registry
	clock    quartz.Clock
	rng      *randutil.Locked
	config   Config
	logger   zerolog.Logger

	mu     sync.Mutex
	active map[string]*game
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the default game settings.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithClock sets the clock used for answer and generator timeouts.
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithRNG sets the random source for question selection.
func WithRNG(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = randutil.NewLocked(rng) }
}

// NewManager creates a manager. registry must be the same registry the
// Router resolves answers against.
func NewManager(logger zerolog.Logger, poster chat.Poster, store Store, bank QuestionBank, gen Generator, registry *pending.Registry, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		poster:   poster,
		store:    store,
		bank:     bank,
		gen:      gen,
		registry: registry,
		clock:    quartz.NewReal(),
		rng:      randutil.NewLocked(randutil.New(time.Now().UnixNano())),
		config:   DefaultConfig(),
		logger:   logger.With().Str("component", "trivia").Logger(),
		active:   make(map[string]*game),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartGame starts a game of totalRounds rounds in channel. Requests above the
// configured maximum are clamped. If the channel already has a game, a notice
// is posted and ErrGameInProgress returned.
func (m *Manager) StartGame(ctx context.Context, channel string, totalRounds int) error {
	if totalRounds <= 0 {
		return ErrInvalidRounds
	}
	if m.config.MaxRounds > 0 && totalRounds > m.config.MaxRounds {
		totalRounds = m.config.MaxRounds
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if _, running := m.active[channel]; running {
		m.mu.Unlock()
		if err := m.poster.PostMessage(ctx, channel, alreadyRunningText); err != nil {
			m.logger.Warn().Err(err).Str("channel", channel).Msg("Failed to post already-running notice")
		}
		return ErrGameInProgress
	}
	g := &game{
		channel:     channel,
		totalRounds: totalRounds,
		startedAt:   m.clock.Now(),
		phase:       PhaseStarting,
	}
	m.active[channel] = g
	m.wg.Add(1)
	m.mu.Unlock()

	id, err := m.store.CreateGame(ctx, channel, totalRounds)
	if err != nil {
		m.release(channel)
		m.wg.Done()
		return fmt.Errorf("create game: %w", err)
	}

	m.mu.Lock()
	g.id = id
	g.phase = PhaseRunning
	m.mu.Unlock()

	if err := m.poster.PostMessage(ctx, channel, fmt.Sprintf(kickoffFormat, totalRounds)); err != nil {
		m.logger.Warn().Err(err).Str("channel", channel).Msg("Failed to post kickoff message")
	}

	go m.run(g)

	m.logger.Info().
		Int64("game_id", id).
		Str("channel", channel).
		Int("rounds", totalRounds).
		Msg("Started game")
	return nil
}

// Active reports whether channel has a running game.
func (m *Manager) Active(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[channel]
	return ok
}

// ActiveGames returns a snapshot of all running games ordered by channel.
func (m *Manager) ActiveGames() []GameStatus {
	m.mu.Lock()
	out := make([]GameStatus, 0, len(m.active))
	for _, g := range m.active {
		out = append(out, GameStatus{
			Channel:     g.channel,
			GameID:      g.id,
			TotalRounds: g.totalRounds,
			Round:       g.round,
			Phase:       g.phase,
			StartedAt:   g.startedAt,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Shutdown stops accepting games, cancels the running ones and waits for
// their goroutines to exit or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// generatorContext derives the context for one generator call. It is
// cancelled with ErrGeneratorTimeout once the configured timeout passes on
// the manager's clock.
func (m *Manager) generatorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.GeneratorTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	timer := m.clock.AfterFunc(m.config.GeneratorTimeout, func() {
		cancel(ErrGeneratorTimeout)
	}, "trivia", "generator")
	return ctx, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

func (m *Manager) release(channel string) {
	m.mu.Lock()
	delete(m.active, channel)
	m.mu.Unlock()
}

func (m *Manager) setProgress(g *game, round int, phase Phase) {
	m.mu.Lock()
	g.round = round
	g.phase = phase
	m.mu.Unlock()
}

// run is the game goroutine. Whatever happens, the channel is released when
// it returns.
func (m *Manager) run(g *game) {
	defer m.wg.Done()
	defer m.release(g.channel)

	logger := m.logger.With().Str("channel", g.channel).Int64("game_id", g.id).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Game loop panicked, abandoning game")
		}
	}()

	if err := m.play(m.ctx, g, logger); err != nil {
		logger.Error().Err(err).Msg("Error in game loop, abandoning game")
		return
	}
	logger.Info().Msg("Game finished")
}

func (m *Manager) play(ctx context.Context, g *game, logger zerolog.Logger) error {
	for round := 1; round <= g.totalRounds; round++ {
		if err := m.playRound(ctx, g, round, logger); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
	}

	m.setProgress(g, g.totalRounds, PhaseReporting)
	top, err := m.store.Leaderboard(ctx, g.id, m.config.LeaderboardSize)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	if err := m.poster.PostMessage(ctx, g.channel, FormatLeaderboard(top)); err != nil {
		return fmt.Errorf("post leaderboard: %w", err)
	}
	if err := m.store.FinalizeGame(ctx, g.id); err != nil {
		return fmt.Errorf("finalize game: %w", err)
	}
	return nil
}
