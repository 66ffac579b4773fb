package contract

import (
	"fmt"

	"github.com/xraph/testbank/identity"
)

// Default execution limits.
const (
	DefaultMaxDepth = 16
	DefaultMaxSteps = 1_000_000
)

// Frame is the execution state of one top-level transaction. Nested
// invocations triggered through transfers share their parent's frame.
type Frame struct {
	maxDepth int
	maxSteps uint64

	depth   int
	maxSeen int
	steps   uint64
	locks   map[identity.Identity]int
	nested  int
}

// NewFrame creates a frame with the given limits. Non-positive values select
// the defaults.
func NewFrame(maxDepth int, maxSteps uint64) *Frame {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Frame{
		maxDepth: maxDepth,
		maxSteps: maxSteps,
		locks:    make(map[identity.Identity]int),
	}
}

// Enter pushes one invocation level and aborts with FaultDepthLimit when the
// depth limit is exceeded. Every Enter must be paired with Leave.
func (f *Frame) Enter() {
	if f.depth >= f.maxDepth {
		Abort(FaultDepthLimit, fmt.Errorf("call depth exceeds %d", f.maxDepth))
	}
	f.depth++
	if f.depth > 1 {
		f.nested++
	}
	if f.depth > f.maxSeen {
		f.maxSeen = f.depth
	}
}

// Leave pops one invocation level.
func (f *Frame) Leave() {
	if f.depth > 0 {
		f.depth--
	}
}

// Depth is the current nesting level (1 for the top-level invocation).
func (f *Frame) Depth() int { return f.depth }

// MaxDepthReached is the deepest level entered so far.
func (f *Frame) MaxDepthReached() int { return f.maxSeen }

// Nested counts invocations entered below the top level.
func (f *Frame) Nested() int { return f.nested }

// Step charges n units of work and aborts with FaultStepLimit when the
// budget is spent.
func (f *Frame) Step(n uint64) {
	f.steps += n
	if f.steps > f.maxSteps {
		Abort(FaultStepLimit, fmt.Errorf("step budget of %d exhausted", f.maxSteps))
	}
}

// Steps returns the units charged so far.
func (f *Frame) Steps() uint64 { return f.steps }

// Locked reports whether contract holds the reentrancy lock.
func (f *Frame) Locked(contract identity.Identity) bool {
	return f.locks[contract] > 0
}

// Lock acquires the reentrancy lock for contract.
func (f *Frame) Lock(contract identity.Identity) {
	f.locks[contract]++
}

// Unlock releases the reentrancy lock for contract.
func (f *Frame) Unlock(contract identity.Identity) {
	if f.locks[contract] <= 1 {
		delete(f.locks, contract)
		return
	}
	f.locks[contract]--
}
