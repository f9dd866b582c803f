package trivia

import (
	"context"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lox/kenny/internal/pending"
	"github.com/lox/kenny/internal/questions"
	"github.com/lox/kenny/internal/randutil"
	"github.com/lox/kenny/internal/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

// waitForCondition polls condition until it holds or timeout elapses.
func waitForCondition(t *testing.T, condition func() bool, timeout time.Duration, errMsg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(errMsg)
}

type post struct {
	channel string
	text    string
}

type reaction struct {
	channel   string
	timestamp string
	name      string
}

type fakePoster struct {
	mu        sync.Mutex
	posts     []post
	reactions []reaction
	postErr   error
	reactErr  error
}

func (p *fakePoster) PostMessage(_ context.Context, channel, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return p.postErr
	}
	p.posts = append(p.posts, post{channel: channel, text: text})
	return nil
}

func (p *fakePoster) AddReaction(_ context.Context, channel, timestamp, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reactErr != nil {
		return p.reactErr
	}
	p.reactions = append(p.reactions, reaction{channel: channel, timestamp: timestamp, name: name})
	return nil
}

func (p *fakePoster) texts(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ps := range p.posts {
		if ps.channel == channel {
			out = append(out, ps.text)
		}
	}
	return out
}

func (p *fakePoster) count(channel, substr string) int {
	n := 0
	for _, text := range p.texts(channel) {
		if strings.Contains(text, substr) {
			n++
		}
	}
	return n
}

func (p *fakePoster) reactionsSnapshot() []reaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]reaction(nil), p.reactions...)
}

type fakeGame struct {
	channel  string
	total    int
	current  int
	finished bool
}

type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	games        map[int64]*fakeGame
	creates      int
	increments   int
	finalizes    int
	scores       map[int64][]storage.Score
	createGate   chan struct{}
	createErr    error
	incrementErr error
	log          []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:  make(map[int64]*fakeGame),
		scores: make(map[int64][]storage.Score),
	}
}

func (s *fakeStore) CreateGame(ctx context.Context, channel string, totalRounds int) (int64, error) {
	if s.createGate != nil {
		select {
		case <-s.createGate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.nextID++
	s.games[s.nextID] = &fakeGame{channel: channel, total: totalRounds}
	s.log = append(s.log, "create")
	return s.nextID, nil
}

func (s *fakeStore) IncrementRound(_ context.Context, gameID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrementErr != nil {
		return s.incrementErr
	}
	g, ok := s.games[gameID]
	if !ok {
		return storage.ErrNotFound
	}
	s.increments++
	g.current++
	s.log = append(s.log, "increment")
	return nil
}

func (s *fakeStore) RecordScore(_ context.Context, gameID int64, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, "score:"+user)
	scores := s.scores[gameID]
	for i := range scores {
		if scores[i].User == user {
			scores[i].Score++
			return nil
		}
	}
	s.scores[gameID] = append(scores, storage.Score{User: user, Score: 1})
	return nil
}

func (s *fakeStore) FinalizeGame(_ context.Context, gameID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return storage.ErrNotFound
	}
	s.finalizes++
	g.finished = true
	s.log = append(s.log, "finalize")
	return nil
}

func (s *fakeStore) Leaderboard(_ context.Context, gameID int64, limit int) ([]storage.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]storage.Score(nil), s.scores[gameID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) game(id int64) fakeGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.games[id]
}

func (s *fakeStore) counts() (creates, increments, finalizes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.increments, s.finalizes
}

func (s *fakeStore) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

type fakeBank struct {
	questions []questions.Question
	panicMsg  string
}

func (b *fakeBank) Pick(r *rand.Rand) (questions.Question, error) {
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	if len(b.questions) == 0 {
		return questions.Question{}, questions.ErrEmptyBank
	}
	return b.questions[r.IntN(len(b.questions))], nil
}

type fakeGen struct {
	mu          sync.Mutex
	curveball   questions.Question
	curveErr    error
	congrats    string
	congratsErr error
	banter      string
	banterErr   error
	wants       bool
	wantsErr    error
	curveCalls  int
	// hang makes every call block until its context is done.
	hang  bool
	calls int
}

func (g *fakeGen) enter(ctx context.Context) error {
	g.mu.Lock()
	g.calls++
	hang := g.hang
	g.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGen) Curveball(ctx context.Context) (questions.Question, error) {
	if err := g.enter(ctx); err != nil {
		return questions.Question{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.curveCalls++
	return g.curveball, g.curveErr
}

func (g *fakeGen) Congratulate(ctx context.Context, user, _ string) (string, error) {
	if err := g.enter(ctx); err != nil {
		return "", err
	}
	if g.congratsErr != nil {
		return "", g.congratsErr
	}
	return fmt.Sprintf(g.congrats, user), nil
}

func (g *fakeGen) Banter(ctx context.Context, _, _ string) (string, error) {
	if err := g.enter(ctx); err != nil {
		return "", err
	}
	return g.banter, g.banterErr
}

func (g *fakeGen) WantsTrivia(ctx context.Context, _ string) (bool, error) {
	if err := g.enter(ctx); err != nil {
		return false, err
	}
	return g.wants, g.wantsErr
}

var errUnavailable = errors.New("generator unavailable")

type harness struct {
	manager  *Manager
	router   *Router
	registry *pending.Registry
	store    *fakeStore
	poster   *fakePoster
	bank     *fakeBank
	gen      *fakeGen
	clock    *quartz.Mock
}

type harnessOption func(*harness, *Config)

func withCurveballChance(p float64) harnessOption {
	return func(_ *harness, c *Config) { c.CurveballChance = p }
}

func withMaxRounds(n int) harnessOption {
	return func(_ *harness, c *Config) { c.MaxRounds = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		registry: pending.NewRegistry(),
		store:    newFakeStore(),
		poster:   &fakePoster{},
		bank: &fakeBank{questions: []questions.Question{
			{Category: "Math", Text: "2+2?", Answer: "4"},
		}},
		gen:   &fakeGen{congrats: "Way to go %s!", curveErr: errUnavailable},
		clock: quartz.NewMock(t),
	}

	cfg := DefaultConfig()
	cfg.CurveballChance = 0
	for _, opt := range opts {
		opt(h, &cfg)
	}

	h.manager = NewManager(testLogger(), h.poster, h.store, h.bank, h.gen, h.registry,
		WithConfig(cfg),
		WithClock(h.clock),
		WithRNG(randutil.New(1)),
	)
	h.router = NewRouter(testLogger(), h.manager, h.registry, h.gen, h.poster, DefaultRouterConfig())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, h.manager.Shutdown(ctx))
	})
	return h
}

// awaitQuestion blocks until round k has been posted in channel and its
// answer is pending.
func (h *harness) awaitQuestion(t *testing.T, channel string, k int) {
	t.Helper()
	prefix := fmt.Sprintf("*Round %d/", k)
	waitForCondition(t, func() bool {
		return h.poster.count(channel, prefix) == 1 && h.registry.Pending(channel)
	}, 2*time.Second, fmt.Sprintf("round %d never started waiting for an answer", k))
}

// expire fires the current round's answer timeout.
func (h *harness) expire(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
}

func (h *harness) awaitFinished(t *testing.T, channel string) {
	t.Helper()
	waitForCondition(t, func() bool { return !h.manager.Active(channel) }, 2*time.Second,
		"game never released its channel")
}
