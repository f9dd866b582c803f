// Package chat defines the boundary between the trivia bot and the chat
// systems it is connected to.
package chat

import (
	"context"
	"fmt"
	"strings"
)

// Message is a chat message observed by a transport.
type Message struct {
	Channel string
	User    string
	Text    string
	// Timestamp is the transport's reference to the message, used for
	// reactions. On Slack this is the message ts.
	Timestamp string
}

// Command is an explicit bot command such as "/trivia 5".
type Command struct {
	Channel string
	User    string
	Name    string
	Text    string
}

// Poster sends output to chat channels.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
	AddReaction(ctx context.Context, channel, timestamp, name string) error
}

// Handler consumes inbound chat events. HandleMessage must return quickly;
// transports call it from their delivery loop so answers keep their arrival
// order. HandleMention and HandleCommand may block on I/O and are run off the
// delivery loop.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandleMention(ctx context.Context, msg Message)
	HandleCommand(ctx context.Context, cmd Command)
}

// Transport is a chat connection that can both post and deliver events.
type Transport interface {
	Poster
	// Run delivers events to h until ctx is cancelled or the connection fails.
	Run(ctx context.Context, h Handler) error
}

// Mention formats a user reference the way chat clients render it.
func Mention(user string) string {
	return fmt.Sprintf("<@%s>", user)
}

// ParseCommand splits "/name args" into a Command. ok is false when text is
// not a command.
func ParseCommand(channel, user, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return Command{}, false
	}
	name, args, _ := strings.Cut(text, " ")
	return Command{
		Channel: channel,
		User:    user,
		Name:    name,
		Text:    strings.TrimSpace(args),
	}, true
}

// Dispatch delivers a line typed into a local transport. "/name args" is a
// command; anything else is a message, and additionally a mention when it
// contains "@botName". spawn runs the handlers that may block.
func Dispatch(ctx context.Context, h Handler, msg Message, botName string, spawn func(func())) {
	if cmd, ok := ParseCommand(msg.Channel, msg.User, msg.Text); ok {
		spawn(func() { h.HandleCommand(ctx, cmd) })
		return
	}
	if botName != "" && strings.Contains(strings.ToLower(msg.Text), "@"+strings.ToLower(botName)) {
		spawn(func() { h.HandleMention(ctx, msg) })
	}
	h.HandleMessage(ctx, msg)
}
