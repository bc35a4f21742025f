package vm

import "github.com/vertexdlt/gowasm/opcode"

// GasPolicy prices every executed instruction and every memory-grow
// request, the host-imposed resource bound spec.md §5 describes as "a
// host limit" on memory.grow and, more generally, on execution cost.
// Adapted from the teacher's vm/gas.go GasPolicy interface.
type GasPolicy interface {
	GetCostForOp(op opcode.Opcode) uint64
	GetCostForGrow(pages uint32) uint64
}

// FreeGasPolicy charges nothing. A Context created without WithGasPolicy
// has a nil policy instead, which likewise charges nothing.
type FreeGasPolicy struct{}

func (FreeGasPolicy) GetCostForOp(op opcode.Opcode) uint64    { return 0 }
func (FreeGasPolicy) GetCostForGrow(pages uint32) uint64 { return 0 }

// SimpleGasPolicy charges one unit per instruction and 1024 units per page
// grown.
type SimpleGasPolicy struct{}

func (SimpleGasPolicy) GetCostForOp(op opcode.Opcode) uint64 { return 1 }
func (SimpleGasPolicy) GetCostForGrow(pages uint32) uint64 {
	return uint64(pages) * 1024
}

// Gas tracks consumption against a limit; Context.Call returns
// ErrOutOfGas once Used would exceed Limit.
type Gas struct {
	Used   uint64
	Limit  uint64
	Policy GasPolicy
}

func (g *Gas) charge(cost uint64) error {
	if g.Policy == nil {
		return nil
	}
	if g.Used+cost > g.Limit {
		return ErrOutOfGas
	}
	g.Used += cost
	return nil
}
