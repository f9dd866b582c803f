// Package slack connects the bot to a Slack workspace over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lox/kenny/internal/chat"
)

// ErrMissingToken is returned when either token is empty.
var ErrMissingToken = errors.New("slack bot token and app-level token are required")

// webAPI is the subset of *slack.Client the transport calls.
type webAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Transport is a chat.Transport for Slack.
type Transport struct {
	api    webAPI
	socket *socketmode.Client
	logger zerolog.Logger

	botUserID string
	wg        sync.WaitGroup
}

var _ chat.Transport = (*Transport)(nil)

// New creates a Socket Mode transport. botToken is the xoxb- token used for
// Web API calls, appToken the xapp- token that opens the socket.
func New(botToken, appToken string, logger zerolog.Logger) (*Transport, error) {
	if botToken == "" || appToken == "" {
		return nil, ErrMissingToken
	}
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &Transport{
		api:    api,
		socket: socketmode.New(api),
		logger: logger.With().Str("component", "slack").Logger(),
	}, nil
}

// Run opens the socket and delivers events to h until ctx is cancelled.
func (t *Transport) Run(ctx context.Context, h chat.Handler) error {
	auth, err := t.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	t.botUserID = auth.UserID
	t.logger.Info().Str("bot_user", auth.User).Str("team", auth.Team).Msg("Authenticated with Slack")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	socketErr := make(chan error, 1)
	go func() {
		socketErr <- t.socket.RunContext(ctx)
	}()
	defer t.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-socketErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("slack socket: %w", err)
			}
			return nil
		case evt := <-t.socket.Events:
			t.handleEvent(ctx, evt, h, t.socket)
		}
	}
}

// PostMessage sends text to channel.
func (t *Transport) PostMessage(ctx context.Context, channel, text string) error {
	_, _, err := t.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// AddReaction reacts to the message with the given ts.
func (t *Transport) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	if err := t.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channel, timestamp)); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// handleEvent acknowledges every envelope, then routes it. Messages are
// handled inline so answers keep their order; mentions and commands run on
// their own goroutines.
func (t *Transport) handleEvent(ctx context.Context, evt socketmode.Event, h chat.Handler, ack acker) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		t.logger.Info().Msg("Connecting to Slack")
	case socketmode.EventTypeConnected:
		t.logger.Info().Msg("Connected to Slack")
	case socketmode.EventTypeConnectionError:
		t.logger.Warn().Interface("data", evt.Data).Msg("Slack connection error")

	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			ack.Ack(*evt.Request)
		}
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			t.logger.Debug().Msg("Ignoring malformed events API envelope")
			return
		}
		if eventsAPI.Type != slackevents.CallbackEvent {
			return
		}
		t.handleCallback(ctx, eventsAPI.InnerEvent, h)

	case socketmode.EventTypeSlashCommand:
		if evt.Request != nil {
			ack.Ack(*evt.Request)
		}
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			t.logger.Debug().Msg("Ignoring malformed slash command")
			return
		}
		c := chat.Command{Channel: cmd.ChannelID, User: cmd.UserID, Name: cmd.Command, Text: cmd.Text}
		t.spawn(func() { h.HandleCommand(ctx, c) })

	default:
		t.logger.Debug().Str("type", string(evt.Type)).Msg("Ignoring socket mode event")
	}
}

func (t *Transport) handleCallback(ctx context.Context, inner slackevents.EventsAPIInnerEvent, h chat.Handler) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		msg := chat.Message{Channel: ev.Channel, User: ev.User, Text: ev.Text, Timestamp: ev.TimeStamp}
		t.spawn(func() { h.HandleMention(ctx, msg) })

	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.SubType != "" || ev.User == "" || ev.User == t.botUserID {
			return
		}
		h.HandleMessage(ctx, chat.Message{Channel: ev.Channel, User: ev.User, Text: ev.Text, Timestamp: ev.TimeStamp})

	default:
		t.logger.Debug().Str("type", inner.Type).Msg("Ignoring callback event")
	}
}

func (t *Transport) spawn(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}
