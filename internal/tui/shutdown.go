package tui

import (
	"context"
	"time"
)

// ShutdownManager coordinates graceful shutdown of the listeners, the
// day-rollover scheduler and the event store.
type ShutdownManager struct {
	// DrainTimeout is the maximum time to wait for in-flight requests to complete.
	DrainTimeout time.Duration

	// StopListeners stops the receivers and the HTTP API from accepting new connections.
	StopListeners func(ctx context.Context) error

	// StopScheduler stops the rollover scheduler.
	StopScheduler func()

	// Cleanup performs any additional cleanup (closing the store and publisher).
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops listeners (draining up to DrainTimeout), then the
// scheduler, then runs cleanup. Listeners go first so no write arrives
// after the store is closed.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	var err error
	if sm.StopListeners != nil {
		err = sm.StopListeners(ctx)
	}

	if sm.StopScheduler != nil {
		sm.StopScheduler()
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}

	return err
}
