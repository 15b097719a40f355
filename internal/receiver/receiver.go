// Package receiver accepts OTLP log records over HTTP and gRPC and turns
// records named tally.log into logged events for the signed-in user.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/nixlim/tally/internal/state"
)

// Sink is where accepted records are logged. *tracker.Tracker satisfies it.
type Sink interface {
	Identity() state.Identity
	Log(ctx context.Context, kind state.Kind) (state.Event, error)
}

// Option configures a receiver.
type Option func(*options)

type options struct {
	logger Logger
}

// WithLogger sets a debug logger for every accepted or rejected record.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// listen binds addr, reporting a port conflict in a readable form.
func listen(bind string, port int) (net.Listener, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bind, port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("port %d already in use", port)
		}
		return nil, fmt.Errorf("listening on %s:%d: %w", bind, port, err)
	}
	return lis, nil
}
