package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vertexdlt/gowasm"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.wasm>",
		Short: "decode and validate a module without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := gowasm.Parse(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d export(s)\n", m.NumExports())
			return nil
		},
	}
}
