// Package hub is a self-hosted chat transport: browsers or scripts connect
// over websocket, talk in named channels and see the bot's replies.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/kenny/internal/chat"
)

// DefaultChannel is used when a client neither subscribes nor names a channel.
const DefaultChannel = "general"

// Event types sent to clients.
const (
	EventMessage  = "message"
	EventReaction = "reaction"
)

// Event is the JSON frame the hub sends to clients.
type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	User      string    `json:"user,omitempty"`
	Text      string    `json:"text,omitempty"`
	Reaction  string    `json:"reaction,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// inbound is the JSON frame clients send.
type inbound struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
}

// Hub is a chat.Transport backed by websocket clients.
type Hub struct {
	addr     string
	botName  string
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup

	ctx     context.Context
	handler chat.Handler
}

var _ chat.Transport = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithBotName sets the name used for bot posts and for detecting mentions.
func WithBotName(name string) Option {
	return func(h *Hub) { h.botName = name }
}

// New creates a hub that will listen on addr.
func New(addr string, logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		addr:    addr,
		botName: "kenny",
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger.With().Str("component", "hub").Logger(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run listens on the configured address and serves until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, handler chat.Handler) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.addr, err)
	}
	return h.Serve(ctx, ln, handler)
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// client and waits for in-flight handlers.
func (h *Hub) Serve(ctx context.Context, ln net.Listener, handler chat.Handler) error {
	h.mu.Lock()
	h.ctx = ctx
	h.handler = handler
	h.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/health", h.handleHealth)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	h.logger.Info().Str("addr", ln.Addr().String()).Msg("Chat hub listening")

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		h.logger.Warn().Err(serr).Msg("HTTP shutdown incomplete")
	}

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		c.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PostMessage broadcasts a bot message to the channel's subscribers.
func (h *Hub) PostMessage(_ context.Context, channel, text string) error {
	h.broadcast(Event{
		Type:      EventMessage,
		ID:        uuid.NewString(),
		Channel:   channel,
		User:      h.botName,
		Text:      text,
		Timestamp: time.Now(),
	})
	return nil
}

// AddReaction broadcasts a reaction to the message with id timestamp.
func (h *Hub) AddReaction(_ context.Context, channel, timestamp, name string) error {
	h.broadcast(Event{
		Type:      EventReaction,
		ID:        timestamp,
		Channel:   channel,
		User:      h.botName,
		Reaction:  name,
		Timestamp: time.Now(),
	})
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for c := range h.clients {
		if !c.Subscribed(ev.Channel) {
			continue
		}
		if err := c.Send(ev); err != nil {
			h.logger.Warn().Err(err).Str("user", c.user).Msg("Failed to send event to client")
			continue
		}
		count++
	}
	h.logger.Debug().Str("channel", ev.Channel).Str("type", ev.Type).Int("recipients", count).Msg("Broadcast event")
}

// receive is called from a client's read pump.
func (h *Hub) receive(c *client, in inbound) {
	if in.Text == "" {
		return
	}
	channel := in.Channel
	if channel == "" {
		channel = c.defaultChannel
	}
	user := in.User
	if user == "" {
		user = c.user
	}
	c.Subscribe(channel)

	id := uuid.NewString()
	h.broadcast(Event{
		Type:      EventMessage,
		ID:        id,
		Channel:   channel,
		User:      user,
		Text:      in.Text,
		Timestamp: time.Now(),
	})

	h.mu.RLock()
	ctx, handler := h.ctx, h.handler
	h.mu.RUnlock()

	msg := chat.Message{Channel: channel, User: user, Text: in.Text, Timestamp: id}
	chat.Dispatch(ctx, handler, msg, h.botName, h.spawn)
}

// spawn runs fn on a tracked goroutine unless the hub is closing.
func (h *Hub) spawn(fn func()) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		fn()
	}()
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.logger.Info().Str("user", c.user).Int("total", len(h.clients)).Msg("Client connected")
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.logger.Info().Str("user", c.user).Int("total", len(h.clients)).Msg("Client disconnected")
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	query := r.URL.Query()
	user := query.Get("user")
	if user == "" {
		user = "guest-" + uuid.NewString()[:8]
	}
	channels := query["channel"]
	if len(channels) == 0 {
		channels = []string{DefaultChannel}
	}

	c := newClient(conn, h, user, channels)
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
