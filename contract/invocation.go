package contract

import (
	"context"
	"errors"

	"github.com/xraph/testbank/identity"
)

// Transferer moves value out of a contract's custody. Implementations may
// synchronously re-enter contracts before returning.
type Transferer interface {
	Transfer(inv *Invocation, to identity.Identity, amount uint64)
}

var errReadOnlyTransfer = errors.New("transfer from a read-only invocation")

// Invocation is the context handed to every entry point.
type Invocation struct {
	// Caller is the identity that invoked the entry point.
	Caller identity.Identity
	// Self is the identity of the running contract.
	Self identity.Identity
	// AttachedValue is the value the caller sent with the call.
	AttachedValue uint64
	// ReadOnly is set for function calls.
	ReadOnly bool
	// Frame is shared with every nested invocation of the same transaction.
	Frame *Frame

	ctx  context.Context
	host Transferer
}

// NewInvocation creates an invocation bound to ctx, frame and host.
func NewInvocation(ctx context.Context, frame *Frame, host Transferer) *Invocation {
	if ctx == nil {
		ctx = context.Background()
	}
	if frame == nil {
		frame = NewFrame(0, 0)
	}
	return &Invocation{ctx: ctx, Frame: frame, host: host}
}

// Context returns the invocation's context.
func (inv *Invocation) Context() context.Context {
	return inv.ctx
}

// Step charges one unit of work and aborts when the budget is spent or the
// context is done.
func (inv *Invocation) Step() {
	if err := inv.ctx.Err(); err != nil {
		Abort(FaultStepLimit, err)
	}
	inv.Frame.Step(1)
}

// Transfer pays amount from the contract's custody to the given identity.
// The host may re-enter this or any other contract before Transfer returns.
func (inv *Invocation) Transfer(to identity.Identity, amount uint64) {
	if inv.ReadOnly {
		Abort(FaultIllegalCall, errReadOnlyTransfer)
	}
	inv.Step()
	if inv.host == nil {
		return
	}
	inv.host.Transfer(inv, to, amount)
}

// Guard acquires the reentrancy lock for the running contract. It returns
// false when the lock is already held somewhere up the call stack. When it
// returns true the caller must invoke release on every exit path.
func (inv *Invocation) Guard() (release func(), ok bool) {
	if inv.Frame.Locked(inv.Self) {
		return func() {}, false
	}
	inv.Frame.Lock(inv.Self)
	return func() { inv.Frame.Unlock(inv.Self) }, true
}

// Derive returns a nested invocation sharing the frame, context and host.
func (inv *Invocation) Derive(self, caller identity.Identity, value uint64, readOnly bool) *Invocation {
	return &Invocation{
		Caller:        caller,
		Self:          self,
		AttachedValue: value,
		ReadOnly:      readOnly,
		Frame:         inv.Frame,
		ctx:           inv.ctx,
		host:          inv.host,
	}
}
