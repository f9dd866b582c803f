package questions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/coder/quartz"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay batches the burst of events editors emit on save.
const DefaultReloadDelay = 250 * time.Millisecond

// Watcher reloads a bank whenever its file changes. The parent directory is
// watched so that atomic rename-on-save is picked up.
type Watcher struct {
	bank   *Bank
	fs     *fsnotify.Watcher
	target string
	delay  time.Duration
	clock  quartz.Clock
	logger zerolog.Logger
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithReloadDelay sets how long the watcher waits for changes to settle.
func WithReloadDelay(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatchClock sets the clock used for the reload delay.
func WithWatchClock(clock quartz.Clock) WatchOption {
	return func(w *Watcher) { w.clock = clock }
}

// NewWatcher starts watching b's file. Changes made after it returns are
// seen by Run.
func NewWatcher(b *Bank, logger zerolog.Logger, opts ...WatchOption) (*Watcher, error) {
	if b.Path() == "" {
		return nil, fmt.Errorf("bank was not loaded from a file")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	target := filepath.Clean(b.Path())
	if err := fs.Add(filepath.Dir(target)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	w := &Watcher{
		bank:   b,
		fs:     fs,
		target: target,
		delay:  DefaultReloadDelay,
		clock:  quartz.NewReal(),
		logger: logger.With().Str("component", "questions").Str("path", target).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch reloads b on every change until ctx is cancelled.
func Watch(ctx context.Context, b *Bank, logger zerolog.Logger, opts ...WatchOption) error {
	w, err := NewWatcher(b, logger, opts...)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Run handles file events until ctx is cancelled and then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()
	w.logger.Info().Msg("Watching question bank for changes")

	var (
		timer  *quartz.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = w.clock.NewTimer(w.delay, "questions", "reload")
			} else {
				timer.Reset(w.delay, "questions", "reload")
			}
			reload = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Question watcher error")

		case <-reload:
			reload = nil
			if err := w.bank.Reload(); err != nil {
				w.logger.Error().Err(err).Msg("Failed to reload question bank, keeping previous questions")
				continue
			}
			w.logger.Info().Int("questions", w.bank.Len()).Msg("Reloaded question bank")
		}
	}
}
