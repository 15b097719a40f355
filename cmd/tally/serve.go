package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nixlim/tally/internal/scheduler"
	"github.com/nixlim/tally/internal/server"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/tui"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the JSON API and OTLP receivers without the dashboard",
	GroupID: "server",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, *cfg)
		if err != nil {
			return err
		}
		if !a.persistent {
			log.Printf("WARNING: serving from an in-memory store; events are lost on exit")
		}

		if err := a.start(ctx); err != nil {
			if !errors.Is(err, state.ErrNoIdentity) {
				a.Close()
				return err
			}
			log.Printf("WARNING: nobody is signed in; writes are rejected until `tally login`")
		}

		addr := cfg.Server.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		api := server.New(addr, a.tracker)
		if err := api.Start(); err != nil {
			a.Close()
			return fmt.Errorf("starting HTTP API on %s: %w", addr, err)
		}
		log.Printf("HTTP API listening on %s", api.Addr())

		recv, err := startReceivers(ctx, a)
		if err != nil {
			_ = api.Shutdown(context.Background())
			a.Close()
			return err
		}
		if recv.grpc != nil {
			log.Printf("OTLP receivers listening on %s (gRPC) and %s (HTTP)", recv.grpc.Addr(), recv.http.Addr())
		}

		sched := scheduler.New(a.tracker, cfg.Scheduler.Interval())
		sched.Start()

		shutdownMgr := tui.NewShutdownManager()
		shutdownMgr.StopListeners = func(ctx context.Context) error {
			recv.stop()
			return api.Shutdown(ctx)
		}
		shutdownMgr.StopScheduler = sched.Stop
		shutdownMgr.Cleanup = a.Close

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			log.Printf("received %s, shutting down", sig)
		case <-ctx.Done():
		}

		cancel()
		if err := shutdownMgr.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Printf("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP API listen address (overrides server.http_addr)")
}
