package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixlim/tally/internal/config"
	"github.com/nixlim/tally/internal/identity"
	"github.com/nixlim/tally/internal/state"
)

func sessionFile() identity.SessionFile {
	return identity.SessionFile{Path: config.ExpandHome(cfg.Identity.SessionFile)}
}

var loginCmd = &cobra.Command{
	Use:     "login <user-id>",
	Short:   "Sign in as the given user id",
	GroupID: "session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := sessionFile().Login(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", id)
		if cfg.Identity.UserID != "" {
			fmt.Printf("Note: identity.user_id (%s) is configured and takes precedence\n", cfg.Identity.UserID)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Sign out",
	GroupID: "session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sessionFile().Logout(); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Print the signed-in user id",
	GroupID: "session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := identity.Chain{identity.Static(cfg.Identity.UserID), sessionFile()}
		id, err := ids.Current(context.Background())
		if errors.Is(err, state.ErrNoIdentity) {
			fmt.Println("Not signed in")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}
