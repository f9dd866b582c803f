package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192
)

// ErrClientClosed is returned when sending to a disconnected client.
var ErrClientClosed = errors.New("client connection closed")

// ErrSlowClient is returned when a client's send buffer is full. The client
// is disconnected.
var ErrSlowClient = errors.New("client send buffer full")

type client struct {
	conn           *websocket.Conn
	hub            *Hub
	user           string
	defaultChannel string
	send           chan Event
	ctx            context.Context
	cancel         context.CancelFunc
	closeOnce      sync.Once

	mu       sync.RWMutex
	channels map[string]struct{}
}

func newClient(conn *websocket.Conn, hub *Hub, user string, channels []string) *client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:           conn,
		hub:            hub,
		user:           user,
		defaultChannel: channels[0],
		send:           make(chan Event, 256),
		ctx:            ctx,
		cancel:         cancel,
		channels:       make(map[string]struct{}, len(channels)),
	}
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	return c
}

// Subscribe adds channel to the set of channels the client receives.
func (c *client) Subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

// Subscribed reports whether the client receives events for channel.
func (c *client) Subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// Send queues ev for the write pump.
func (c *client) Send(ev Event) error {
	select {
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	default:
		c.Close()
		return ErrSlowClient
	}
}

// Close stops both pumps. It is safe to call more than once.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.hub.wg.Done()
	defer c.hub.unregister(c)
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("user", c.user).Msg("WebSocket read error")
			}
			return
		}
		c.hub.receive(c, in)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.hub.wg.Done()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Debug().Err(err).Str("user", c.user).Msg("Failed to write event")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
