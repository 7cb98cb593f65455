// Package worker drains the async audit inbox into the store.
package worker

import (
	"context"
	"log/slog"

	"parley/pkg/platform/audit"
)

// Worker consumes events from the inbox and persists them. Run blocks until
// the context is cancelled; append failures are logged and skipped so one
// bad event cannot wedge the trail.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.Error("audit append failed",
					"action", event.Action, "user_id", event.UserID, "error", err)
			}
		}
	}
}

// drain flushes whatever is already buffered at shutdown. Uses a background
// context because the run context is already cancelled.
func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			if err := w.store.Append(context.Background(), event); err != nil {
				w.logger.Error("audit append failed during drain",
					"action", event.Action, "error", err)
			}
		default:
			return
		}
	}
}
