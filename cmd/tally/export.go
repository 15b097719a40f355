package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nixlim/tally/internal/export"
)

var exportStdout bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export your full history as CSV",
	Long: `Export writes every event as CSV. When stdout is a pipe, or with --stdout,
the CSV is written there. Otherwise it is saved to export.dir, or uploaded
to export.s3_bucket when one is configured.`,
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openSignedIn(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		blob, err := a.tracker.Export(ctx)
		if err != nil {
			return err
		}
		if blob.Degraded() {
			fmt.Fprintln(os.Stderr, "tally: no timestamp column found; the export has empty timestamps")
		}
		if blob.Truncated {
			fmt.Fprintln(os.Stderr, "tally: export stopped at the read limit; older events are missing")
		}

		if exportStdout || !term.IsTerminal(int(os.Stdout.Fd())) {
			_, err := os.Stdout.Write(blob.Data)
			return err
		}

		var dest export.Destination
		if dest, err = a.destination(ctx); err != nil {
			return err
		}
		where, err := dest.Write(ctx, blob)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d rows to %s\n", blob.Rows, where)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "write the CSV to stdout even on a terminal")
}
