package gowasm

import (
	"errors"
	"fmt"

	"github.com/vertexdlt/gowasm/vm"
)

// ErrorKind tags which of spec.md §7's five error categories a failure
// belongs to: a malformed binary, a module that fails validation, a
// dynamic Wasm-spec-mandated trap, a host-imposed resource limit, or the
// embedder misusing the API.
type ErrorKind int

const (
	KindMalformed ErrorKind = iota
	KindValidation
	KindTrap
	KindResource
	KindMisuse
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindValidation:
		return "validation"
	case KindTrap:
		return "trap"
	case KindResource:
		return "resource"
	case KindMisuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// Error is the single error type every gowasm entry point returns,
// wrapping the underlying binary/validate/vm error with the taxonomy kind
// an embedder needs to decide how to react (retry, reject the binary,
// surface to the guest, etc.), the teacher's own package-level *ExecError
// style generalized to carry a kind tag instead of one flat list
// (vm/error.go in the teacher copy, since replaced by vm/trap.go's typed
// Trap/ResourceError/MisuseError).
type Error struct {
	Kind ErrorKind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gowasm: %s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: err}
}

// wrapDecodeErr classifies a binary.Decode failure as malformed (spec.md
// §7 taxonomy member 1).
func wrapDecodeErr(err error) error { return newError(KindMalformed, err) }

// wrapValidateErr classifies a validate.Validate failure as a validation
// error (taxonomy member 2).
func wrapValidateErr(err error) error { return newError(KindValidation, err) }

// wrapRuntimeErr classifies an error surfaced from vm.NewContext or
// Context.Call by inspecting its concrete type: *vm.Trap -> trap,
// *vm.ResourceError -> resource, *vm.MisuseError -> misuse, anything else
// (e.g. a bad function index from the embedder) -> misuse.
func wrapRuntimeErr(err error) error {
	if err == nil {
		return nil
	}
	var trap *vm.Trap
	if errors.As(err, &trap) {
		return newError(KindTrap, err)
	}
	var resErr *vm.ResourceError
	if errors.As(err, &resErr) {
		return newError(KindResource, err)
	}
	return newError(KindMisuse, err)
}
