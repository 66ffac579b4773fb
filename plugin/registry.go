package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/testbank/identity"
)

// DefaultHookTimeout bounds how long a single hook may run.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onContractDeployed     []OnContractDeployed
	onInvocationApplied    []OnInvocationApplied
	onInvocationSkipped    []OnInvocationSkipped
	onArithmeticWrapped    []OnArithmeticWrapped
	onReentered            []OnReentered
	onTransfer             []OnTransfer
	onTransactionCommitted []OnTransactionCommitted
	onTransactionAborted   []OnTransactionAborted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnContractDeployed); ok {
		r.onContractDeployed = append(r.onContractDeployed, v)
	}
	if v, ok := p.(OnInvocationApplied); ok {
		r.onInvocationApplied = append(r.onInvocationApplied, v)
	}
	if v, ok := p.(OnInvocationSkipped); ok {
		r.onInvocationSkipped = append(r.onInvocationSkipped, v)
	}
	if v, ok := p.(OnArithmeticWrapped); ok {
		r.onArithmeticWrapped = append(r.onArithmeticWrapped, v)
	}
	if v, ok := p.(OnReentered); ok {
		r.onReentered = append(r.onReentered, v)
	}
	if v, ok := p.(OnTransfer); ok {
		r.onTransfer = append(r.onTransfer, v)
	}
	if v, ok := p.(OnTransactionCommitted); ok {
		r.onTransactionCommitted = append(r.onTransactionCommitted, v)
	}
	if v, ok := p.(OnTransactionAborted); ok {
		r.onTransactionAborted = append(r.onTransactionAborted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

var hookInterfaces = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnContractDeployed)(nil)).Elem(), "OnContractDeployed"},
	{reflect.TypeOf((*OnInvocationApplied)(nil)).Elem(), "OnInvocationApplied"},
	{reflect.TypeOf((*OnInvocationSkipped)(nil)).Elem(), "OnInvocationSkipped"},
	{reflect.TypeOf((*OnArithmeticWrapped)(nil)).Elem(), "OnArithmeticWrapped"},
	{reflect.TypeOf((*OnReentered)(nil)).Elem(), "OnReentered"},
	{reflect.TypeOf((*OnTransfer)(nil)).Elem(), "OnTransfer"},
	{reflect.TypeOf((*OnTransactionCommitted)(nil)).Elem(), "OnTransactionCommitted"},
	{reflect.TypeOf((*OnTransactionAborted)(nil)).Elem(), "OnTransactionAborted"},
}

// getImplementedInterfaces returns a list of hooks implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookInterfaces {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs hook for every plugin in list, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, list []T, hook string, call func(T) error) {
	for _, p := range list {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, host interface{}) {
	emit(ctx, r, snapshot(r, &r.onInit), "OnInit", func(p OnInit) error {
		return p.OnInit(ctx, host)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, snapshot(r, &r.onShutdown), "OnShutdown", func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitContractDeployed emits a contract deployed event.
func (r *Registry) EmitContractDeployed(ctx context.Context, name string, self identity.Identity, restored bool) {
	emit(ctx, r, snapshot(r, &r.onContractDeployed), "OnContractDeployed", func(p OnContractDeployed) error {
		return p.OnContractDeployed(ctx, name, self, restored)
	})
}

// EmitInvocation dispatches an invocation event to the applied, skipped,
// wrapped and reentered hooks that match it.
func (r *Registry) EmitInvocation(ctx context.Context, ev InvocationEvent) {
	if ev.Outcome.IsSkipped() {
		emit(ctx, r, snapshot(r, &r.onInvocationSkipped), "OnInvocationSkipped", func(p OnInvocationSkipped) error {
			return p.OnInvocationSkipped(ctx, ev)
		})
	} else {
		emit(ctx, r, snapshot(r, &r.onInvocationApplied), "OnInvocationApplied", func(p OnInvocationApplied) error {
			return p.OnInvocationApplied(ctx, ev)
		})
	}
	if ev.Outcome.Wrapped {
		emit(ctx, r, snapshot(r, &r.onArithmeticWrapped), "OnArithmeticWrapped", func(p OnArithmeticWrapped) error {
			return p.OnArithmeticWrapped(ctx, ev)
		})
	}
	if ev.Depth > 1 {
		emit(ctx, r, snapshot(r, &r.onReentered), "OnReentered", func(p OnReentered) error {
			return p.OnReentered(ctx, ev)
		})
	}
}

// EmitTransfer emits a transfer event.
func (r *Registry) EmitTransfer(ctx context.Context, ev TransferEvent) {
	emit(ctx, r, snapshot(r, &r.onTransfer), "OnTransfer", func(p OnTransfer) error {
		return p.OnTransfer(ctx, ev)
	})
}

// EmitTransactionCommitted emits a transaction committed event.
func (r *Registry) EmitTransactionCommitted(ctx context.Context, ev TransactionEvent) {
	emit(ctx, r, snapshot(r, &r.onTransactionCommitted), "OnTransactionCommitted", func(p OnTransactionCommitted) error {
		return p.OnTransactionCommitted(ctx, ev)
	})
}

// EmitTransactionAborted emits a transaction aborted event.
func (r *Registry) EmitTransactionAborted(ctx context.Context, ev TransactionEvent) {
	emit(ctx, r, snapshot(r, &r.onTransactionAborted), "OnTransactionAborted", func(p OnTransactionAborted) error {
		return p.OnTransactionAborted(ctx, ev)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block contract execution.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
