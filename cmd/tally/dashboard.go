package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nixlim/tally/internal/scheduler"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/tracker"
	"github.com/nixlim/tally/internal/tui"
)

// runDashboard opens the terminal UI. The first load runs in the
// background so the loading state is visible.
func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, *cfg)
	if err != nil {
		return err
	}

	dest, err := a.destination(ctx)
	if err != nil {
		a.Close()
		return err
	}

	quietLogs()

	recv, err := startReceivers(ctx, a)
	if err != nil {
		a.Close()
		return err
	}

	var p *tea.Program
	sched := scheduler.New(a.tracker, cfg.Scheduler.Interval(),
		scheduler.WithOnRollover(func() {
			if p != nil {
				p.Send(tui.RolloverMsg{Today: a.tracker.State().Today})
			}
		}),
	)

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.StopListeners = func(context.Context) error {
		recv.stop()
		return nil
	}
	shutdownMgr.StopScheduler = sched.Stop
	shutdownMgr.Cleanup = a.Close
	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			cancel()
			if err := shutdownMgr.Shutdown(); err != nil {
				log.Printf("ERROR: shutdown: %v", err)
			}
		})
	}

	model := tui.NewModel(*cfg,
		tui.WithTracker(a.tracker),
		tui.WithActivityProvider(a.activity),
		tui.WithDestination(dest),
		tui.WithPersistenceFlag(a.persistent),
		tui.WithOnShutdown(shutdown),
	)

	p = tea.NewProgram(model, tea.WithAltScreen())
	a.onChange = func(st tracker.State) { p.Send(tui.StateMsg(st)) }

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			p.Quit()
		case <-ctx.Done():
		}
	}()

	go func() {
		if err := a.start(ctx); err != nil && !errors.Is(err, state.ErrNoIdentity) {
			log.Printf("ERROR: initial load: %v", err)
		}
		sched.Start()
	}()

	_, err = p.Run()
	shutdown()
	if err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
