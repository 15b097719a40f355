package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nixlim/tally/internal/config"
	"github.com/nixlim/tally/internal/receiver"
)

var intakeLogPath string

// listeners holds the OTLP receivers started for a run.
type listeners struct {
	grpc      *receiver.GRPCReceiver
	http      *receiver.HTTPReceiver
	intakeLog *os.File
}

// startReceivers starts both OTLP receivers when enabled in config. A
// failure stops whatever was already started.
func startReceivers(ctx context.Context, a *app) (*listeners, error) {
	l := &listeners{}
	if !a.cfg.Receiver.Enabled {
		return l, nil
	}

	var opts []receiver.Option
	if intakeLogPath != "" {
		f, err := os.OpenFile(config.ExpandHome(intakeLogPath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening intake log %q: %w", intakeLogPath, err)
		}
		l.intakeLog = f
		opts = append(opts, receiver.WithLogger(receiver.NewFileLogger(f)))
	}

	l.grpc = receiver.NewGRPCReceiver(a.cfg.Receiver, a.tracker, opts...)
	if err := l.grpc.Start(ctx); err != nil {
		l.stop()
		return nil, fmt.Errorf("starting gRPC receiver: %w", err)
	}
	l.http = receiver.NewHTTPReceiver(a.cfg.Receiver, a.tracker, opts...)
	if err := l.http.Start(ctx); err != nil {
		l.stop()
		return nil, fmt.Errorf("starting HTTP receiver: %w", err)
	}
	return l, nil
}

func (l *listeners) stop() {
	if l.grpc != nil {
		l.grpc.Stop()
	}
	if l.http != nil {
		l.http.Stop()
	}
	if l.intakeLog != nil {
		_ = l.intakeLog.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&intakeLogPath, "intake-log", "", "write every OTLP record received (JSONL) to this file")
}
