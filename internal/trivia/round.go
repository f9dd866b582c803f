package trivia

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/lox/kenny/internal/chat"
	"github.com/lox/kenny/internal/pending"
	"github.com/lox/kenny/internal/questions"
)

const (
	alreadyRunningText = ":warning: A trivia game is already in progress in this channel!"
	kickoffFormat      = ":checkered_flag: Kicking off a trivia game with %d rounds! 🏁"
	questionFormat     = "*Round %d/%d*: %s :thinking_face:"
	timeUpFormat       = ":hourglass_flowing_sand: Time's up! The answer was *%s*."
	congratsFormat     = ":tada: Nice job, %s!"
	winReaction        = "tada"
)

// fallbackCurveball stands in for a curveball the generator could not make.
var fallbackCurveball = questions.Question{
	Category: "Curveball",
	Text:     "(curveball) What is the capital of France?",
	Answer:   "Paris",
}

func (m *Manager) playRound(ctx context.Context, g *game, round int, logger zerolog.Logger) error {
	if err := m.store.IncrementRound(ctx, g.id); err != nil {
		return fmt.Errorf("increment round: %w", err)
	}
	m.setProgress(g, round, PhaseRunning)

	q := m.pickQuestion(ctx, logger)
	logger.Debug().Int("round", round).Str("category", q.Category).Msg("Asking question")

	if err := m.poster.PostMessage(ctx, g.channel, fmt.Sprintf(questionFormat, round, g.totalRounds, q.Text)); err != nil {
		return fmt.Errorf("post question: %w", err)
	}

	won, answered, err := m.waitForAnswer(ctx, g.channel, q.Answer)
	if err != nil {
		return err
	}
	if !answered {
		logger.Info().Int("round", round).Msg("Round timed out")
		if err := m.poster.PostMessage(ctx, g.channel, fmt.Sprintf(timeUpFormat, q.Answer)); err != nil {
			return fmt.Errorf("post timeout: %w", err)
		}
		return nil
	}

	logger.Info().Int("round", round).Str("user", won.User).Msg("Correct answer")
	if err := m.store.RecordScore(ctx, g.id, won.User); err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	if err := m.poster.AddReaction(ctx, g.channel, won.Timestamp, winReaction); err != nil {
		logger.Warn().Err(err).Str("timestamp", won.Timestamp).Msg("Failed to react to winning message")
	}

	text, err := m.congratulate(ctx, won.User, q.Text)
	if err != nil {
		logger.Warn().Err(err).Msg("Congratulation generation failed, using fallback")
		text = fmt.Sprintf(congratsFormat, chat.Mention(won.User))
	}
	if err := m.poster.PostMessage(ctx, g.channel, text); err != nil {
		return fmt.Errorf("post congratulation: %w", err)
	}
	return nil
}

// pickQuestion draws a curveball with the configured probability and a bank
// question otherwise. It never fails: generation problems fall back to a
// fixed question.
func (m *Manager) pickQuestion(ctx context.Context, logger zerolog.Logger) questions.Question {
	if m.rng.Float64() < m.config.CurveballChance {
		q, err := m.curveball(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Curveball generation failed, using fallback question")
			return fallbackCurveball
		}
		return q
	}

	var (
		q   questions.Question
		err error
	)
	m.rng.With(func(r *rand.Rand) { q, err = m.bank.Pick(r) })
	if err != nil {
		logger.Error().Err(err).Msg("Question bank failed, using fallback question")
		return fallbackCurveball
	}
	return q
}

func (m *Manager) curveball(ctx context.Context) (questions.Question, error) {
	gctx, cancel := m.generatorContext(ctx)
	defer cancel()
	q, err := m.gen.Curveball(gctx)
	return q, generatorErr(gctx, err)
}

func (m *Manager) congratulate(ctx context.Context, user, question string) (string, error) {
	gctx, cancel := m.generatorContext(ctx)
	defer cancel()
	text, err := m.gen.Congratulate(gctx, user, question)
	return text, generatorErr(gctx, err)
}

// generatorErr reports the timeout rather than a bare cancellation when a
// generator call was cut short.
func generatorErr(ctx context.Context, err error) error {
	if err != nil && errors.Is(context.Cause(ctx), ErrGeneratorTimeout) {
		return fmt.Errorf("%w: %w", ErrGeneratorTimeout, err)
	}
	return err
}

// waitForAnswer registers the channel's pending answer and blocks until it is
// resolved, the answer timeout fires, or ctx is done. The registration is
// always removed before it returns.
func (m *Manager) waitForAnswer(ctx context.Context, channel, expected string) (pending.Answer, bool, error) {
	// The timer exists before the entry is visible to the router.
	timer := m.clock.NewTimer(m.config.AnswerTimeout, "trivia", "answer")
	defer timer.Stop()

	h, err := m.registry.Register(channel, expected)
	if err != nil {
		return pending.Answer{}, false, fmt.Errorf("register pending answer: %w", err)
	}
	defer m.registry.Unregister(channel)

	select {
	case won := <-h.Done():
		return won, true, nil

	case <-timer.C:
		won, answered := m.expireAnswer(channel, h)
		return won, answered, nil

	case <-ctx.Done():
		return pending.Answer{}, false, ctx.Err()
	}
}

// expireAnswer closes the round after its timer fired. Once unregistered
// nothing else can resolve h, so a value already in Done beat the deadline.
func (m *Manager) expireAnswer(channel string, h *pending.Handle) (pending.Answer, bool) {
	m.registry.Unregister(channel)
	select {
	case won := <-h.Done():
		return won, true
	default:
		return pending.Answer{}, false
	}
}
