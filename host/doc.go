// Package host runs deployed contracts.
//
// A Host deploys each contract once, initializing it or restoring its latest
// stored snapshot, and dispatches calls to entry points by kind and numeric
// id. It keeps per-identity wallets for attached value and contract custody,
// and implements the transfer primitive contracts pay with. A transfer to an
// identity registered with OnReceive runs the receiver synchronously, and the
// receiver may re-enter any entry point through its Reentry handle inside the
// same call frame.
//
// Top-level transactions are serialized. A host fault raised anywhere in a
// transaction (division by zero, an exhausted step budget, the depth limit,
// checked overflow) rolls back every touched contract and every wallet, and
// is reported as ErrExecutionFault together with an aborted receipt.
package host
