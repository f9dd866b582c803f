// Package generator produces curveball questions and chatty replies with a
// large language model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lox/kenny/internal/chat"
	"github.com/lox/kenny/internal/questions"
)

var (
	// ErrUnavailable is returned when no model backend is configured.
	ErrUnavailable = errors.New("generator unavailable")
	// ErrMalformed is returned when the model's output cannot be used.
	ErrMalformed = errors.New("malformed generated content")
)

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// Backend completes prompts against a model provider.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Client turns trivia-specific requests into model completions.
type Client struct {
	backend Backend
	logger  zerolog.Logger
}

// New wraps backend. A nil backend yields a client whose calls all fail with
// ErrUnavailable.
func New(backend Backend, logger zerolog.Logger) *Client {
	name := "none"
	if backend != nil {
		name = backend.Name()
	}
	return &Client{
		backend: backend,
		logger:  logger.With().Str("component", "generator").Str("backend", name).Logger(),
	}
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	if c.backend == nil {
		return "", ErrUnavailable
	}
	out, err := c.backend.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty completion: %w", ErrMalformed)
	}
	return out, nil
}

const curveballSystem = "You are a trivia question generator. " +
	"Provide exactly one trivia question and its answer as a JSON object with keys 'question' and 'answer'. " +
	"Do not include any additional text."

// Curveball asks the model for a fresh question.
func (c *Client) Curveball(ctx context.Context) (questions.Question, error) {
	out, err := c.complete(ctx, Request{
		System:      curveballSystem,
		Prompt:      "Give me one trivia question.",
		Temperature: 0.8,
		MaxTokens:   150,
		JSON:        true,
	})
	if err != nil {
		return questions.Question{}, fmt.Errorf("curveball: %w", err)
	}
	q, err := parseQuestion(out)
	if err != nil {
		c.logger.Debug().Str("content", out).Msg("Unusable curveball content")
		return questions.Question{}, fmt.Errorf("curveball: %w", err)
	}
	return q, nil
}

// Congratulate writes a short celebration for user answering question.
func (c *Client) Congratulate(ctx context.Context, user, question string) (string, error) {
	prompt := fmt.Sprintf(
		"Compose a witty, upbeat message congratulating %s for correctly answering the trivia question: '%s'. Keep it short and fun.",
		chat.Mention(user), question,
	)
	out, err := c.complete(ctx, Request{
		System:      "You are a witty, enthusiastic host.",
		Prompt:      prompt,
		Temperature: 0.9,
		MaxTokens:   60,
	})
	if err != nil {
		return "", fmt.Errorf("congratulate: %w", err)
	}
	return out, nil
}

// Banter replies to a mention that is not a game request.
func (c *Client) Banter(ctx context.Context, user, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Reply to %s's message in a witty, fun, and friendly way.\nUser message: '%s'\nKeep it short, clever, and conversational.",
		chat.Mention(user), text,
	)
	out, err := c.complete(ctx, Request{
		System:      "You are a witty, friendly chatbot who loves to banter with users.",
		Prompt:      prompt,
		Temperature: 0.95,
		MaxTokens:   60,
	})
	if err != nil {
		return "", fmt.Errorf("banter: %w", err)
	}
	return out, nil
}

// WantsTrivia classifies whether text asks to start a game.
func (c *Client) WantsTrivia(ctx context.Context, text string) (bool, error) {
	prompt := fmt.Sprintf(
		"User message: '%s'. Respond with 'yes' if they want to start a trivia game, otherwise 'no'.",
		text,
	)
	out, err := c.complete(ctx, Request{
		System:      "Classify if user intent is to play trivia.",
		Prompt:      prompt,
		Temperature: 0,
		MaxTokens:   3,
	})
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	return strings.HasPrefix(strings.ToLower(out), "yes"), nil
}
