package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertexdlt/gowasm"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gowasm",
		Short:         "inspect and run WebAssembly modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			gowasm.SetLogger(l)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log decode/validate/trap detail to stderr")

	root.AddCommand(newValidateCmd(), newExportsCmd(), newRunCmd())
	return root
}
