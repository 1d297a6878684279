package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/haumaru/internal/engine"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Stream every node revision in the index as plain text (debugging aid)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		e, err := engine.New(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		recs, err := e.Dump(context.Background())
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("#%d backup_set=%d kind=%s path=%q size=%d mode=%o deleted=%t\n",
				r.ID, r.Node.BackupSet, r.Node.Kind, r.Node.Path, r.Node.Size, r.Node.Mode, r.Node.Deleted)
		}
		return nil
	},
}

func init() {
	addPathFlags(dumpCmd)
}
