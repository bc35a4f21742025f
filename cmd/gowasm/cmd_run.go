package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vertexdlt/gowasm"
	"github.com/vertexdlt/gowasm/vm"
	"github.com/vertexdlt/gowasm/wasm"
)

func newRunCmd() *cobra.Command {
	var gasLimit uint64
	var maxValueStackDepth int
	var maxCallDepth int

	cmd := &cobra.Command{
		Use:   "run <file.wasm> <export> [args...]",
		Short: "instantiate a module and call one of its exported functions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := gowasm.Parse(data)
			if err != nil {
				return err
			}
			entry, ok := m.ExportByName(args[1])
			if !ok {
				return fmt.Errorf("no export named %q", args[1])
			}
			ft, err := m.FuncType(entry)
			if err != nil {
				return err
			}
			if len(args)-2 != len(ft.Params) {
				return fmt.Errorf("%s takes %d argument(s), got %d", args[1], len(ft.Params), len(args)-2)
			}

			callArgs := make([]vm.Value, len(ft.Params))
			for i, p := range ft.Params {
				v, err := parseValue(p, args[2+i])
				if err != nil {
					return fmt.Errorf("argument %d: %w", i, err)
				}
				callArgs[i] = v
			}

			opts := []gowasm.Option{
				gowasm.WithMaxValueStackDepth(maxValueStackDepth),
				gowasm.WithMaxCallDepth(maxCallDepth),
			}
			if gasLimit > 0 {
				opts = append(opts, gowasm.WithGasLimit(gasLimit), gowasm.WithGasPolicy(vm.SimpleGasPolicy{}))
			}

			ctx, err := m.NewContext(opts...)
			if err != nil {
				return err
			}
			results, err := ctx.Call(entry, callArgs...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, r := range results {
				fmt.Fprintf(out, "result[%d] = %s\n", i, formatValue(ft.Results[i], r))
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "cap execution cost; 0 disables gas accounting")
	cmd.Flags().IntVar(&maxValueStackDepth, "max-value-stack", 0, "cap operand stack depth; 0 uses the engine default")
	cmd.Flags().IntVar(&maxCallDepth, "max-call-depth", 0, "cap call-frame nesting; 0 uses the engine default")
	return cmd
}

func parseValue(t wasm.ValueType, s string) (vm.Value, error) {
	switch t {
	case wasm.ValueTypeI32:
		n, err := strconv.ParseInt(s, 10, 32)
		return vm.I32(int32(n)), err
	case wasm.ValueTypeI64:
		n, err := strconv.ParseInt(s, 10, 64)
		return vm.I64(n), err
	case wasm.ValueTypeF32:
		n, err := strconv.ParseFloat(s, 32)
		return vm.F32(float32(n)), err
	case wasm.ValueTypeF64:
		n, err := strconv.ParseFloat(s, 64)
		return vm.F64(n), err
	default:
		return vm.Value{}, fmt.Errorf("unsupported argument type %s", t)
	}
}

func formatValue(t wasm.ValueType, v vm.Value) string {
	switch t {
	case wasm.ValueTypeI32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case wasm.ValueTypeI64:
		return strconv.FormatInt(v.I64(), 10)
	case wasm.ValueTypeF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case wasm.ValueTypeF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
