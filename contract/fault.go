package contract

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// FaultKind classifies a host fault.
type FaultKind string

// Fault kinds raised during execution.
const (
	FaultDivideByZero      FaultKind = "divide_by_zero"
	FaultStepLimit         FaultKind = "step_limit"
	FaultDepthLimit        FaultKind = "depth_limit"
	FaultOverflow          FaultKind = "overflow"
	FaultResourceExhausted FaultKind = "resource_exhausted"
	FaultIllegalCall       FaultKind = "illegal_call"
	FaultPanic             FaultKind = "panic"
)

// ErrDivideByZero is the cause recorded for integer division by zero.
var ErrDivideByZero = errors.New("integer divide by zero")

// Fault aborts the current transaction.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("contract fault: %s", f.Kind)
	}
	return fmt.Sprintf("contract fault: %s: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Abort raises a fault. It does not return; the host recovers the panic at
// the transaction boundary.
func Abort(kind FaultKind, err error) {
	panic(&Fault{Kind: kind, Err: err})
}

// Recover converts a recovered panic value into a Fault. Go runtime integer
// division by zero maps to FaultDivideByZero; anything else that is not
// already a Fault becomes FaultPanic.
func Recover(r any) *Fault {
	switch v := r.(type) {
	case nil:
		return nil
	case *Fault:
		return v
	case runtime.Error:
		if strings.Contains(v.Error(), "divide by zero") {
			return &Fault{Kind: FaultDivideByZero, Err: ErrDivideByZero}
		}
		return &Fault{Kind: FaultPanic, Err: v}
	case error:
		return &Fault{Kind: FaultPanic, Err: v}
	default:
		return &Fault{Kind: FaultPanic, Err: fmt.Errorf("%v", v)}
	}
}

// AsFault extracts a *Fault from err's chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
