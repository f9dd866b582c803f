// Package console is a single-user terminal transport for trying the bot
// without a chat workspace.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lox/kenny/internal/chat"
)

const (
	// Channel is the only channel the console talks in.
	Channel = "console"
	// User is the name given to everything typed at the prompt.
	User = "you"
)

// Console reads lines from in and renders bot output to out.
type Console struct {
	in      io.Reader
	out     io.Writer
	botName string
	logger  *log.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

var _ chat.Transport = (*Console)(nil)

// New creates a console transport.
func New(in io.Reader, out io.Writer, botName string, logger *log.Logger) *Console {
	return &Console{
		in:      in,
		out:     out,
		botName: botName,
		logger:  logger.WithPrefix("console"),
	}
}

// Run reads input until EOF, "exit" or ctx is cancelled. Handlers started by
// commands and mentions are waited for before it returns.
func (c *Console) Run(ctx context.Context, h chat.Handler) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.printf("%s %s\n",
		PromptStyle.Render(fmt.Sprintf("%s@#%s", User, Channel)),
		HintStyle.Render(fmt.Sprintf("Type /trivia to start a game, mention @%s to chat, exit to quit.", c.botName)))
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil

		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				c.logger.Debug("Exit requested")
				return nil
			}

			msg := chat.Message{
				Channel:   Channel,
				User:      User,
				Text:      line,
				Timestamp: uuid.NewString(),
			}
			c.logger.Debug("Input", "id", msg.Timestamp, "text", line)
			chat.Dispatch(ctx, h, msg, c.botName, c.spawn)
		}
	}
}

// PostMessage prints a bot message.
func (c *Console) PostMessage(_ context.Context, channel, text string) error {
	if channel != Channel {
		c.logger.Warn("Dropping message for unknown channel", "channel", channel)
		return nil
	}
	c.printf("%s %s\n", BotNameStyle.Render(c.botName), BotTextStyle.Render(text))
	return nil
}

// AddReaction prints the reaction under the prompt.
func (c *Console) AddReaction(_ context.Context, channel, timestamp, name string) error {
	if channel != Channel {
		return nil
	}
	c.logger.Debug("Reaction", "id", timestamp, "name", name)
	c.printf("%s\n", ReactionStyle.Render(fmt.Sprintf("  %s reacted with :%s:", c.botName, name)))
	return nil
}

func (c *Console) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}
