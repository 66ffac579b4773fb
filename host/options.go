package host

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/testbank/plugin"
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
		h.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(h *Host) {
		_ = h.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMaxDepth bounds the call depth of a transaction.
func WithMaxDepth(depth int) Option {
	return func(h *Host) {
		h.maxDepth = depth
	}
}

// WithMaxSteps bounds the metered work of a transaction.
func WithMaxSteps(steps uint64) Option {
	return func(h *Host) {
		h.maxSteps = steps
	}
}

// WithInvokeTimeout bounds the wall-clock time of a transaction. Contracts
// observe it through the step meter.
func WithInvokeTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.invokeTimeout = d
	}
}

// WithTracer sets the tracer used for deploy and invoke spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(h *Host) {
		h.tracer = tracer
	}
}

// WithSnapshots enables snapshot persistence after every committed
// transaction that ran a procedure, keeping the newest keep snapshots per
// contract. keep <= 0 keeps all of them.
func WithSnapshots(enabled bool, keep int) Option {
	return func(h *Host) {
		h.persistSnapshots = enabled
		h.keepSnapshots = keep
	}
}

// WithReceiptBatch buffers receipts and writes them from a background worker
// in batches of size, or every interval. A size of 1 or less writes each
// receipt before Invoke returns.
func WithReceiptBatch(size int, interval time.Duration) Option {
	return func(h *Host) {
		h.receiptBatchSize = size
		h.receiptFlushInterval = interval
	}
}

// WithAutoMigrate controls whether Start migrates the store. Enabled by default.
func WithAutoMigrate(enabled bool) Option {
	return func(h *Host) { h.autoMigrate = enabled }
}
