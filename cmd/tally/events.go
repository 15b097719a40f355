package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nixlim/tally/internal/state"
)

var logCmd = &cobra.Command{
	Use:     "log <t1|t2>",
	Short:   "Record one event for today",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := state.ParseKind(args[0])
		if err != nil {
			return err
		}
		a, err := openSignedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ev, err := a.tracker.Log(cmd.Context(), kind)
		if err != nil {
			return err
		}
		st := a.tracker.State()
		fmt.Printf("Logged %s on %s (%s)\n", ev.Kind, ev.OccurredOn.MDY(), ev.ID)
		fmt.Printf("Today: t1 %d  t2 %d\n", st.Totals.T1, st.Totals.T2)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete one or more of your events",
	GroupID: "events",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSignedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range args {
			if err := a.tracker.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", id)
		}
		return nil
	},
}

var seriesJSON bool

var seriesCmd = &cobra.Command{
	Use:     "series",
	Short:   "Print per-day counts from the start date to today",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSignedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.tracker.State()
		if seriesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tT1\tT2\tTOTAL")
		for i := len(st.Series) - 1; i >= 0; i-- {
			b := st.Series[i]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", b.Day.MDY(), b.T1, b.T2, b.Total())
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if st.Truncated {
			fmt.Fprintln(os.Stderr, "tally: older events beyond the read limit are not counted")
		}
		return nil
	},
}

func init() {
	seriesCmd.Flags().BoolVar(&seriesJSON, "json", false, "print the full state as JSON")
}
