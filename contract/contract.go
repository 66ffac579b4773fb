// Package contract defines the surface between an execution host and the
// contracts it runs: entry-point registration, the invocation context, the
// call frame shared by nested invocations, outcomes and host faults.
//
// Entry points never return errors. A procedure that declines to act reports
// a SkippedNoOp outcome; arithmetic that wrapped is flagged on the outcome.
// Conditions that must end the whole transaction are raised with Abort and
// recovered by the host.
package contract

// Contract is implemented by every deployable contract.
type Contract interface {
	// Name is the stable deployment name. The host derives the contract
	// identity from it.
	Name() string

	// Register declares the contract's procedures and functions.
	Register(r *Registry)

	// Initialize runs once per deployment, before any entry point.
	Initialize(inv *Invocation) error
}

// Stateful is implemented by contracts whose state the host can snapshot for
// rollback and persistence.
type Stateful interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}
