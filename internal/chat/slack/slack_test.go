package slack

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/kenny/internal/chat"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

type fakeAPI struct {
	posts     []string
	reactions []slack.ItemRef
	names     []string
	err       error
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.posts = append(f.posts, channelID)
	return channelID, "1700000000.000100", nil
}

func (f *fakeAPI) AddReactionContext(_ context.Context, name string, item slack.ItemRef) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, name)
	f.reactions = append(f.reactions, item)
	return nil
}

func (f *fakeAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOT", User: "kenny"}, nil
}

type fakeAcker struct {
	acked []string
}

func (f *fakeAcker) Ack(req socketmode.Request, _ ...interface{}) {
	f.acked = append(f.acked, req.EnvelopeID)
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []chat.Message
	mentions []chat.Message
	commands []chat.Command
}

func (r *recordingHandler) HandleMessage(_ context.Context, msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingHandler) HandleMention(_ context.Context, msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mentions = append(r.mentions, msg)
}

func (r *recordingHandler) HandleCommand(_ context.Context, cmd chat.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func newTestTransport() (*Transport, *fakeAPI) {
	api := &fakeAPI{}
	return &Transport{api: api, logger: testLogger(), botUserID: "UBOT"}, api
}

func callback(envelope string, data interface{}) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Data: data},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

func TestNewRequiresTokens(t *testing.T) {
	_, err := New("", "xapp-1", testLogger())
	assert.ErrorIs(t, err, ErrMissingToken)
	_, err = New("xoxb-1", "", testLogger())
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestMessageEvents(t *testing.T) {
	tests := []struct {
		name    string
		event   *slackevents.MessageEvent
		deliver bool
	}{
		{"user message", &slackevents.MessageEvent{Channel: "C1", User: "U1", Text: "paris", TimeStamp: "1.1"}, true},
		{"bot message", &slackevents.MessageEvent{Channel: "C1", User: "U2", BotID: "B1", Text: "paris", TimeStamp: "1.2"}, false},
		{"own message", &slackevents.MessageEvent{Channel: "C1", User: "UBOT", Text: "paris", TimeStamp: "1.3"}, false},
		{"edited message", &slackevents.MessageEvent{Channel: "C1", User: "U1", SubType: "message_changed", TimeStamp: "1.4"}, false},
		{"no user", &slackevents.MessageEvent{Channel: "C1", Text: "paris", TimeStamp: "1.5"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTestTransport()
			h := &recordingHandler{}
			ack := &fakeAcker{}

			tr.handleEvent(context.Background(), callback("env-1", tt.event), h, ack)
			tr.wg.Wait()

			assert.Equal(t, []string{"env-1"}, ack.acked)
			if tt.deliver {
				require.Len(t, h.messages, 1)
				assert.Equal(t, chat.Message{Channel: "C1", User: "U1", Text: "paris", Timestamp: "1.1"}, h.messages[0])
			} else {
				assert.Empty(t, h.messages)
			}
		})
	}
}

func TestAppMention(t *testing.T) {
	tr, _ := newTestTransport()
	h := &recordingHandler{}
	ack := &fakeAcker{}

	tr.handleEvent(context.Background(), callback("env-2", &slackevents.AppMentionEvent{
		Channel: "C1", User: "U1", Text: "<@UBOT> play trivia", TimeStamp: "2.0",
	}), h, ack)
	tr.wg.Wait()

	assert.Equal(t, []string{"env-2"}, ack.acked)
	require.Len(t, h.mentions, 1)
	assert.Equal(t, "<@UBOT> play trivia", h.mentions[0].Text)
	assert.Empty(t, h.messages)
}

func TestSlashCommand(t *testing.T) {
	tr, _ := newTestTransport()
	h := &recordingHandler{}
	ack := &fakeAcker{}

	tr.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeSlashCommand,
		Data:    slack.SlashCommand{Command: "/trivia", Text: "3", ChannelID: "C1", UserID: "U1"},
		Request: &socketmode.Request{EnvelopeID: "env-3"},
	}, h, ack)
	tr.wg.Wait()

	assert.Equal(t, []string{"env-3"}, ack.acked)
	assert.Equal(t, []chat.Command{{Channel: "C1", User: "U1", Name: "/trivia", Text: "3"}}, h.commands)
}

func TestIgnoredEvents(t *testing.T) {
	tr, _ := newTestTransport()
	h := &recordingHandler{}
	ack := &fakeAcker{}

	tr.handleEvent(context.Background(), socketmode.Event{Type: socketmode.EventTypeConnected}, h, ack)
	tr.handleEvent(context.Background(), socketmode.Event{Type: socketmode.EventTypeEventsAPI, Data: "garbage"}, h, ack)
	tr.handleEvent(context.Background(), callback("env-4", &slackevents.ReactionAddedEvent{}), h, ack)
	tr.wg.Wait()

	assert.Equal(t, []string{"env-4"}, ack.acked)
	assert.Empty(t, h.messages)
	assert.Empty(t, h.mentions)
	assert.Empty(t, h.commands)
}

func TestMalformedEnvelopesAreAcked(t *testing.T) {
	tr, _ := newTestTransport()
	h := &recordingHandler{}
	ack := &fakeAcker{}

	tr.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeEventsAPI,
		Data:    "garbage",
		Request: &socketmode.Request{EnvelopeID: "env-5"},
	}, h, ack)
	tr.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeSlashCommand,
		Data:    map[string]string{"command": "/trivia"},
		Request: &socketmode.Request{EnvelopeID: "env-6"},
	}, h, ack)
	tr.wg.Wait()

	assert.Equal(t, []string{"env-5", "env-6"}, ack.acked)
	assert.Empty(t, h.messages)
	assert.Empty(t, h.commands)
}

func TestPostAndReact(t *testing.T) {
	tr, api := newTestTransport()
	ctx := context.Background()

	require.NoError(t, tr.PostMessage(ctx, "C1", "hello"))
	require.NoError(t, tr.AddReaction(ctx, "C1", "1.1", "tada"))

	assert.Equal(t, []string{"C1"}, api.posts)
	assert.Equal(t, []string{"tada"}, api.names)
	assert.Equal(t, slack.NewRefToMessage("C1", "1.1"), api.reactions[0])

	api.err = errors.New("channel_not_found")
	assert.ErrorContains(t, tr.PostMessage(ctx, "C9", "hello"), "channel_not_found")
	assert.ErrorContains(t, tr.AddReaction(ctx, "C9", "1.1", "tada"), "channel_not_found")
}
