// Command tally records two kinds of daily events per user and shows
// today's counts with a per-day history.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/nixlim/tally/internal/config"
)

var (
	configPath string
	logPath    string

	cfg      *config.Config
	logClose func() error
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Count two kinds of events per day",
	Long: `tally logs t1 and t2 events for the signed-in user and shows today's
counts plus a gap-free per-day history since the configured start date.

Run without a subcommand to open the terminal dashboard.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logClose == nil {
			return nil
		}
		closeLog := logClose
		logClose = nil
		return closeLog()
	},
	RunE: runDashboard,
}

// loadConfig reads the config file and points the standard logger at the
// log file, or stderr when none is given.
func loadConfig(cmd *cobra.Command, args []string) error {
	var (
		result *config.LoadResult
		err    error
	)
	if configPath != "" {
		result, err = config.LoadFrom(config.ExpandHome(configPath))
	} else {
		result, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "tally: config warning: %s\n", w)
	}
	cfg = &result.Config

	if logPath != "" {
		f, err := os.OpenFile(config.ExpandHome(logPath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file %q: %w", logPath, err)
		}
		log.SetOutput(f)
		logClose = f.Close
	}
	return nil
}

// quietLogs silences the standard logger unless a log file was given, so
// warnings do not draw over the dashboard.
func quietLogs() {
	if logPath == "" {
		log.SetOutput(io.Discard)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/tally/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "append diagnostic logs to this file")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Event Commands:"},
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)

	rootCmd.AddCommand(logCmd, deleteCmd, seriesCmd, exportCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tally: %v\n", err)
		os.Exit(1)
	}
}
