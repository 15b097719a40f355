package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixlim/tally/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Init writes the effective configuration (defaults, file values and
environment overrides) to the config file so it can be edited. An existing
file is left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if configPath != "" {
			path = config.ExpandHome(configPath)
		}
		res, err := config.WriteFile(path, *cfg, initForce)
		if err != nil {
			return err
		}
		switch res {
		case config.WriteCreated:
			fmt.Printf("Created %s\n", path)
		case config.WriteReplaced:
			fmt.Printf("Replaced %s\n", path)
		case config.WriteExists:
			fmt.Printf("%s already exists. Use --force to overwrite it.\n", path)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
