// Package file publishes the events of a disk store as soon as they are
// written, using filesystem notifications instead of a polling interval.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	eventsourcing "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/eventbus/memory"
	"github.com/terraskye/eventsourcing-core/eventstore/disk"
)

// Watcher follows the global log directory of a disk.FileStore and hands
// every new event to an EventBus.
//
// Events written while the watcher was down are delivered on start. A
// failed publish is retried on the next filesystem notification.
type Watcher struct {
	dir    string
	poller *memory.Subscriber
	logger *slog.Logger
}

type Option func(*Watcher)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher that starts at log position from.
func NewWatcher(store *disk.FileStore, bus eventsourcing.EventBus, from uint64, opts ...Option) *Watcher {
	w := &Watcher{
		dir:    store.AllDir(),
		poller: memory.NewSubscriber(store, bus, from),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Position returns the log position of the next event to deliver.
func (w *Watcher) Position() uint64 {
	return w.poller.Position()
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	// Crash-recovery: deliver what was written before the watch started.
	w.deliver(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || strings.HasSuffix(ev.Name, ".tmp") {
				continue
			}
			w.deliver(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "file watcher error", slog.String("dir", w.dir), slog.Any("error", err))
		}
	}
}

func (w *Watcher) deliver(ctx context.Context) {
	n, err := w.poller.Poll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "error delivering events",
			slog.String("dir", w.dir),
			slog.Uint64("position", w.poller.Position()),
			slog.Any("error", err),
		)
		return
	}
	if n > 0 {
		w.logger.DebugContext(ctx, "delivered events", slog.Int("count", n))
	}
}
