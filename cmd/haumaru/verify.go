package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/haumaru/internal/engine"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [<like>...]",
	Short: "Verify every hashable node against the object store, reporting failures",
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

		filter := strings.Join(args, "")
		checked, failed, err := e.Verify(context.Background(), filter)
		if err != nil {
			return err
		}
		fmt.Printf("checked %d node(s), %d failure(s)\n", checked, failed)
		if failed > 0 {
			return fmt.Errorf("verify found %d failure(s)", failed)
		}
		return nil
	},
}

func init() {
	addPathFlags(verifyCmd)
}
