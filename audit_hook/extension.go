// Package audithook bridges host events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnContractDeployed     = (*Extension)(nil)
	_ plugin.OnInvocationApplied    = (*Extension)(nil)
	_ plugin.OnInvocationSkipped    = (*Extension)(nil)
	_ plugin.OnArithmeticWrapped    = (*Extension)(nil)
	_ plugin.OnReentered            = (*Extension)(nil)
	_ plugin.OnTransfer             = (*Extension)(nil)
	_ plugin.OnTransactionCommitted = (*Extension)(nil)
	_ plugin.OnTransactionAborted   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit record.
type AuditEvent struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension turns host events into audit records.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Deployment hooks
// ──────────────────────────────────────────────────

// OnContractDeployed implements plugin.OnContractDeployed.
func (e *Extension) OnContractDeployed(ctx context.Context, name string, self identity.Identity, restored bool) error {
	action := ActionContractDeployed
	if restored {
		action = ActionContractRestored
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceContract, name, CategoryDeployment, "",
		"contract", name,
		"self", self.String(),
	)
}

// ──────────────────────────────────────────────────
// Invocation hooks
// ──────────────────────────────────────────────────

// OnInvocationApplied implements plugin.OnInvocationApplied.
func (e *Extension) OnInvocationApplied(ctx context.Context, ev plugin.InvocationEvent) error {
	return e.recordInvocation(ctx, ActionInvocationApplied, SeverityInfo, OutcomeSuccess, ev)
}

// OnInvocationSkipped implements plugin.OnInvocationSkipped.
func (e *Extension) OnInvocationSkipped(ctx context.Context, ev plugin.InvocationEvent) error {
	return e.recordInvocation(ctx, ActionInvocationSkipped, SeverityWarning, OutcomePartial, ev)
}

// OnArithmeticWrapped implements plugin.OnArithmeticWrapped.
func (e *Extension) OnArithmeticWrapped(ctx context.Context, ev plugin.InvocationEvent) error {
	return e.recordInvocation(ctx, ActionArithmeticWrapped, SeverityWarning, OutcomeSuccess, ev)
}

// OnReentered implements plugin.OnReentered.
func (e *Extension) OnReentered(ctx context.Context, ev plugin.InvocationEvent) error {
	return e.recordInvocation(ctx, ActionReentered, SeverityWarning, OutcomeSuccess, ev)
}

func (e *Extension) recordInvocation(ctx context.Context, action, severity, outcome string, ev plugin.InvocationEvent) error {
	return e.record(ctx, action, severity, outcome,
		ResourceInvocation, ev.TransactionID.String(), CategoryExecution, ev.Outcome.Reason,
		"contract", ev.Contract,
		"kind", string(ev.Kind),
		"entry_point", ev.EntryPoint,
		"entry_point_id", ev.EntryPointID,
		"caller", ev.Caller.String(),
		"value", ev.Value,
		"depth", ev.Depth,
		"wrapped", ev.Outcome.Wrapped,
		"elapsed_ms", ev.Elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Value hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, ev plugin.TransferEvent) error {
	action, severity, outcome, reason := ActionTransferPaid, SeverityInfo, OutcomeSuccess, ""
	if !ev.Paid {
		action, severity, outcome, reason = ActionTransferUnpaid, SeverityWarning, OutcomeFailure, "insufficient custody"
	}
	return e.record(ctx, action, severity, outcome,
		ResourceTransfer, ev.TransactionID.String(), CategoryValue, reason,
		"from", ev.From.String(),
		"to", ev.To.String(),
		"amount", ev.Amount,
		"depth", ev.Depth,
	)
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCommitted implements plugin.OnTransactionCommitted.
func (e *Extension) OnTransactionCommitted(ctx context.Context, ev plugin.TransactionEvent) error {
	return e.record(ctx, ActionTransactionCommitted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, ev.TransactionID.String(), CategoryExecution, "",
		transactionPairs(ev)...,
	)
}

// OnTransactionAborted implements plugin.OnTransactionAborted.
func (e *Extension) OnTransactionAborted(ctx context.Context, ev plugin.TransactionEvent) error {
	reason := ""
	pairs := transactionPairs(ev)
	if ev.Fault != nil {
		reason = ev.Fault.Error()
		pairs = append(pairs, "fault", string(ev.Fault.Kind))
	}
	return e.record(ctx, ActionTransactionAborted, SeverityError, OutcomeFailure,
		ResourceTransaction, ev.TransactionID.String(), CategoryFault, reason,
		pairs...,
	)
}

func transactionPairs(ev plugin.TransactionEvent) []any {
	return []any{
		"receipt_id", ev.ReceiptID.String(),
		"contract", ev.Contract,
		"kind", string(ev.Kind),
		"entry_point", ev.EntryPoint,
		"caller", ev.Caller.String(),
		"steps", ev.Steps,
		"nested", ev.Nested,
		"elapsed_ms", ev.Elapsed.Milliseconds(),
	}
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		ID:         id.NewAuditEventID().String(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
