// Package pending correlates the question a channel is waiting on with the
// chat message that eventually answers it.
package pending

import (
	"errors"
	"sync"

	"github.com/lox/kenny/internal/answer"
)

// ErrAlreadyPending is returned by Register when the channel already has a
// live entry.
var ErrAlreadyPending = errors.New("channel already has a pending answer")

// Answer identifies the message that resolved a pending entry.
type Answer struct {
	User      string
	Text      string
	Timestamp string
}

// Handle is the waiting side of a pending entry.
type Handle struct {
	expected string
	done     chan Answer
	resolved bool // guarded by Registry.mu
}

// Done delivers the winning answer. It receives at most one value and is
// never closed.
func (h *Handle) Done() <-chan Answer {
	return h.done
}

// Expected returns the canonical answer the handle is waiting for.
func (h *Handle) Expected() string {
	return h.expected
}

// Registry maps channels to their single pending entry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Handle
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Handle)}
}

// Register installs a pending entry for channel.
func (r *Registry) Register(channel, expected string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[channel]; ok {
		return nil, ErrAlreadyPending
	}
	h := &Handle{
		expected: expected,
		done:     make(chan Answer, 1),
	}
	r.entries[channel] = h
	return h, nil
}

// TryResolve checks text against the channel's pending answer. It returns true
// only for the message that resolves the entry; later calls return false until
// a new entry is registered.
func (r *Registry) TryResolve(channel, user, text, timestamp string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.entries[channel]
	if !ok || h.resolved {
		return false
	}
	if !answer.Matches(text, h.expected) {
		return false
	}

	h.resolved = true
	// The buffer holds exactly one answer and resolved gates every send.
	h.done <- Answer{User: user, Text: text, Timestamp: timestamp}
	return true
}

// Unregister removes the channel's entry whether or not it was resolved.
func (r *Registry) Unregister(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, channel)
}

// Pending reports whether channel has a live entry.
func (r *Registry) Pending(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[channel]
	return ok
}

// Len returns the number of channels currently waiting for an answer.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
