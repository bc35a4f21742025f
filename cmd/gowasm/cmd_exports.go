package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vertexdlt/gowasm"
	"github.com/vertexdlt/gowasm/wasm"
)

func newExportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports <file.wasm>",
		Short: "list a module's exports",
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
			out := cmd.OutOrStdout()
			for i := 0; i < m.NumExports(); i++ {
				e, entry, _ := m.ExportByIndex(i)
				if e.Kind == wasm.ExternalFunc {
					if ft, err := m.FuncType(entry); err == nil {
						fmt.Fprintf(out, "%-6s %s %v -> %v\n", e.Kind, e.Name, ft.Params, ft.Results)
						continue
					}
				}
				fmt.Fprintf(out, "%-6s %s\n", e.Kind, e.Name)
			}
			return nil
		},
	}
}
