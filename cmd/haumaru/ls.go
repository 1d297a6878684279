package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/haumaru/internal/engine"
)

var lsKey string

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List a directory's children, or a single file's detail, as of an optional point in time",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		path, from, err := engine.ParseKeySelector(lsKey)
		if err != nil {
			return err
		}

		e, err := engine.New(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		return e.List(context.Background(), path, from, os.Stdout)
	},
}

func init() {
	addPathFlags(lsCmd)
	lsCmd.Flags().StringVar(&lsKey, "key", "", "key selector, \"path[@unix_ts]\"")
}
