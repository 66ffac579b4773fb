package host

import (
	"fmt"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/identity"
)

// ReceiverFunc runs inside a transfer that paid the identity it was
// registered for. It may re-enter contracts through r.
type ReceiverFunc func(r *Reentry, from identity.Identity, amount uint64)

// Reentry lets a receiver invoke entry points from inside the transfer that
// triggered it. Nested calls share the transaction's call frame, so they
// count towards its depth and step limits and observe its reentrancy locks.
type Reentry struct {
	tx     *txn
	parent *contract.Invocation
	self   identity.Identity
}

// Self is the identity the receiver was registered for. Nested calls are made
// with it as caller.
func (r *Reentry) Self() identity.Identity { return r.self }

// Depth is the call depth of the paying invocation.
func (r *Reentry) Depth() int { return r.tx.frame.Depth() }

// Balance returns the receiver's wallet balance.
func (r *Reentry) Balance() uint64 { return r.tx.h.wallets[r.self] }

// Invoke runs call nested inside the current transaction. call.Caller is
// ignored. A host fault raised by the nested call aborts the whole
// transaction.
func (r *Reentry) Invoke(call Call) (contract.Result, error) {
	dep, ok := r.tx.h.deployments[call.Contract]
	if !ok {
		return contract.Result{}, fmt.Errorf("%w: %s", ErrContractNotFound, call.Contract)
	}
	ep, handler, err := dep.lookup(call)
	if err != nil {
		return contract.Result{}, err
	}
	if ep.Kind == contract.KindFunction && call.Value > 0 {
		return contract.Result{}, fmt.Errorf("%w: functions take no value", ErrInvalidInput)
	}
	if err := r.tx.attach(r.self, dep.Self, call.Value); err != nil {
		return contract.Result{}, err
	}

	res, err := r.tx.dispatch(r.parent, dep, ep, handler, r.self, call.Value, call.Input)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return res, nil
}
