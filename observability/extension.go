// Package observability provides a metrics plugin for the host that records
// deployment, invocation and transaction counts via a MetricFactory.
package observability

import (
	"context"
	"sync"

	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnContractDeployed     = (*MetricsExtension)(nil)
	_ plugin.OnInvocationApplied    = (*MetricsExtension)(nil)
	_ plugin.OnInvocationSkipped    = (*MetricsExtension)(nil)
	_ plugin.OnArithmeticWrapped    = (*MetricsExtension)(nil)
	_ plugin.OnReentered            = (*MetricsExtension)(nil)
	_ plugin.OnTransfer             = (*MetricsExtension)(nil)
	_ plugin.OnTransactionCommitted = (*MetricsExtension)(nil)
	_ plugin.OnTransactionAborted   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records host-wide execution metrics.
// Register it as a host plugin.
type MetricsExtension struct {
	factory MetricFactory

	// Deployment metrics
	ContractsDeployed Counter
	ContractsRestored Counter

	// Invocation metrics
	InvocationsApplied Counter
	InvocationsSkipped Counter
	ArithmeticWrapped  Counter
	Reentries          Counter
	InvocationLatency  Histogram

	// Value metrics
	TransfersPaid   Counter
	TransfersUnpaid Counter
	TransferAmount  Histogram

	// Transaction metrics
	TransactionsCommitted Counter
	TransactionsAborted   Counter
	TransactionSteps      Histogram
	TransactionLatency    Histogram

	// Fault metrics, one counter per fault kind
	mu     sync.Mutex
	faults map[string]Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Deployment metrics
		ContractsDeployed: factory.Counter("testbank.contract.deployed"),
		ContractsRestored: factory.Counter("testbank.contract.restored"),

		// Invocation metrics
		InvocationsApplied: factory.Counter("testbank.invocation.applied"),
		InvocationsSkipped: factory.Counter("testbank.invocation.skipped"),
		ArithmeticWrapped:  factory.Counter("testbank.invocation.wrapped"),
		Reentries:          factory.Counter("testbank.invocation.reentered"),
		InvocationLatency:  factory.Histogram("testbank.invocation.latency_ms"),

		// Value metrics
		TransfersPaid:   factory.Counter("testbank.transfer.paid"),
		TransfersUnpaid: factory.Counter("testbank.transfer.unpaid"),
		TransferAmount:  factory.Histogram("testbank.transfer.amount"),

		// Transaction metrics
		TransactionsCommitted: factory.Counter("testbank.transaction.committed"),
		TransactionsAborted:   factory.Counter("testbank.transaction.aborted"),
		TransactionSteps:      factory.Histogram("testbank.transaction.steps"),
		TransactionLatency:    factory.Histogram("testbank.transaction.latency_ms"),

		faults: make(map[string]Counter),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Deployment hooks
// ──────────────────────────────────────────────────

// OnContractDeployed implements plugin.OnContractDeployed.
func (m *MetricsExtension) OnContractDeployed(_ context.Context, _ string, _ identity.Identity, restored bool) error {
	if restored {
		m.ContractsRestored.Inc()
	} else {
		m.ContractsDeployed.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Invocation hooks
// ──────────────────────────────────────────────────

// OnInvocationApplied implements plugin.OnInvocationApplied.
func (m *MetricsExtension) OnInvocationApplied(_ context.Context, ev plugin.InvocationEvent) error {
	m.InvocationsApplied.Inc()
	m.InvocationLatency.Observe(float64(ev.Elapsed.Microseconds()) / 1000)
	return nil
}

// OnInvocationSkipped implements plugin.OnInvocationSkipped.
func (m *MetricsExtension) OnInvocationSkipped(_ context.Context, ev plugin.InvocationEvent) error {
	m.InvocationsSkipped.Inc()
	m.InvocationLatency.Observe(float64(ev.Elapsed.Microseconds()) / 1000)
	return nil
}

// OnArithmeticWrapped implements plugin.OnArithmeticWrapped.
func (m *MetricsExtension) OnArithmeticWrapped(_ context.Context, _ plugin.InvocationEvent) error {
	m.ArithmeticWrapped.Inc()
	return nil
}

// OnReentered implements plugin.OnReentered.
func (m *MetricsExtension) OnReentered(_ context.Context, _ plugin.InvocationEvent) error {
	m.Reentries.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Value hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, ev plugin.TransferEvent) error {
	if !ev.Paid {
		m.TransfersUnpaid.Inc()
		return nil
	}
	m.TransfersPaid.Inc()
	m.TransferAmount.Observe(float64(ev.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCommitted implements plugin.OnTransactionCommitted.
func (m *MetricsExtension) OnTransactionCommitted(_ context.Context, ev plugin.TransactionEvent) error {
	m.TransactionsCommitted.Inc()
	m.TransactionSteps.Observe(float64(ev.Steps))
	m.TransactionLatency.Observe(float64(ev.Elapsed.Microseconds()) / 1000)
	return nil
}

// OnTransactionAborted implements plugin.OnTransactionAborted.
func (m *MetricsExtension) OnTransactionAborted(_ context.Context, ev plugin.TransactionEvent) error {
	m.TransactionsAborted.Inc()
	m.TransactionSteps.Observe(float64(ev.Steps))
	if ev.Fault != nil {
		m.fault(string(ev.Fault.Kind)).Inc()
	}
	return nil
}

// fault returns the counter for a fault kind, creating it on first use.
func (m *MetricsExtension) fault(kind string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.faults[kind]
	if !ok {
		c = m.factory.Counter("testbank.fault." + kind)
		m.faults[kind] = c
	}
	return c
}
