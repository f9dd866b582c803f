package pending

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryResolveWithoutEntry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	assert.False(t, r.TryResolve("C1", "U1", "paris", "1.0"))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Pending("C1"))
}

func TestRegisterResolvesOnce(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	h, err := r.Register("C1", "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", h.Expected())

	assert.False(t, r.TryResolve("C1", "U0", "london", "0.9"), "wrong answer must not resolve")
	assert.True(t, r.TryResolve("C1", "U1", "I think paris", "1.0"))
	assert.False(t, r.TryResolve("C1", "U2", "paris", "1.1"), "second match must be a no-op")
	assert.False(t, r.TryResolve("C1", "U3", "anything", "1.2"))

	select {
	case got := <-h.Done():
		assert.Equal(t, Answer{User: "U1", Text: "I think paris", Timestamp: "1.0"}, got)
	default:
		t.Fatal("handle was not resolved")
	}

	select {
	case extra := <-h.Done():
		t.Fatalf("unexpected second answer: %+v", extra)
	default:
	}

	assert.True(t, r.Pending("C1"), "resolution does not remove the entry")
}

func TestRegisterConflict(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.Register("C1", "Paris")
	require.NoError(t, err)

	_, err = r.Register("C1", "Rome")
	assert.ErrorIs(t, err, ErrAlreadyPending)

	_, err = r.Register("C2", "Rome")
	assert.NoError(t, err, "other channels are independent")
}

func TestUnregisterIdempotent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.Register("C1", "Paris")
	require.NoError(t, err)

	r.Unregister("C1")
	r.Unregister("C1")
	r.Unregister("never-registered")

	assert.False(t, r.Pending("C1"))
	assert.False(t, r.TryResolve("C1", "U1", "paris", "1.0"))

	_, err = r.Register("C1", "Rome")
	assert.NoError(t, err, "channel can be registered again after unregister")
}

func TestConcurrentResolveSingleWinner(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	h, err := r.Register("C1", "Paris")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.TryResolve("C1", fmt.Sprintf("U%d", i), "paris", fmt.Sprintf("%d.0", i)) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, h.Done(), 1)
}

func TestChannelsAreIsolated(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	h1, err := r.Register("C1", "Paris")
	require.NoError(t, err)
	h2, err := r.Register("C2", "Rome")
	require.NoError(t, err)

	assert.False(t, r.TryResolve("C2", "U1", "paris", "1.0"))
	assert.True(t, r.TryResolve("C1", "U1", "paris", "1.0"))
	assert.Len(t, h1.Done(), 1)
	assert.Len(t, h2.Done(), 0)
	assert.Equal(t, 2, r.Len())
}
