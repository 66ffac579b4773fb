// Package plugin provides an extensible plugin system for the execution host.
// Plugins can hook into deployment, invocation and transaction events.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// InvocationEvent describes one entry point call, top-level or nested.
type InvocationEvent struct {
	TransactionID id.ID
	Contract      string
	Kind          contract.Kind
	EntryPoint    string
	EntryPointID  uint16
	Caller        identity.Identity
	Value         uint64
	Depth         int
	Outcome       contract.Outcome
	Elapsed       time.Duration
}

// TransferEvent describes a payment made through the transfer primitive.
type TransferEvent struct {
	TransactionID id.ID
	From          identity.Identity
	To            identity.Identity
	Amount        uint64
	Paid          bool
	Depth         int
}

// TransactionEvent summarises a finished top-level transaction.
type TransactionEvent struct {
	TransactionID id.ID
	ReceiptID     id.ID
	Contract      string
	Kind          contract.Kind
	EntryPoint    string
	Caller        identity.Identity
	Fault         *contract.Fault
	Steps         uint64
	Nested        int
	Elapsed       time.Duration
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the host starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, host interface{}) error
}

// OnShutdown is called when the host stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnContractDeployed is called after a contract is deployed and initialized
// (or restored from a snapshot).
type OnContractDeployed interface {
	Plugin
	OnContractDeployed(ctx context.Context, name string, self identity.Identity, restored bool) error
}

// ──────────────────────────────────────────────────
// Invocation hooks
// ──────────────────────────────────────────────────

// OnInvocationApplied is called when an entry point returns an applied outcome.
type OnInvocationApplied interface {
	Plugin
	OnInvocationApplied(ctx context.Context, ev InvocationEvent) error
}

// OnInvocationSkipped is called when a procedure declines to act.
type OnInvocationSkipped interface {
	Plugin
	OnInvocationSkipped(ctx context.Context, ev InvocationEvent) error
}

// OnArithmeticWrapped is called when an entry point reports wrapped arithmetic.
type OnArithmeticWrapped interface {
	Plugin
	OnArithmeticWrapped(ctx context.Context, ev InvocationEvent) error
}

// OnReentered is called for every invocation nested inside another one.
type OnReentered interface {
	Plugin
	OnReentered(ctx context.Context, ev InvocationEvent) error
}

// OnTransfer is called for every use of the transfer primitive.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, ev TransferEvent) error
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCommitted is called when a top-level transaction commits.
type OnTransactionCommitted interface {
	Plugin
	OnTransactionCommitted(ctx context.Context, ev TransactionEvent) error
}

// OnTransactionAborted is called when a host fault aborted a transaction.
type OnTransactionAborted interface {
	Plugin
	OnTransactionAborted(ctx context.Context, ev TransactionEvent) error
}
