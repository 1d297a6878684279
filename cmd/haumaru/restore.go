package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/haumaru/internal/engine"
)

var (
	restoreKey    string
	restoreTarget string
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a key (or the whole tree) as of an optional point in time into a target directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		path, from, err := engine.ParseKeySelector(restoreKey)
		if err != nil {
			return err
		}

		e, err := engine.New(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		return e.Restore(context.Background(), path, from, restoreTarget)
	},
}

func init() {
	addPathFlags(restoreCmd)
	restoreCmd.Flags().StringVar(&restoreKey, "key", "", "key selector, \"path[@unix_ts]\"")
	restoreCmd.Flags().StringVar(&restoreTarget, "target", "", "destination directory to restore into")
	restoreCmd.MarkFlagRequired("target")
}
