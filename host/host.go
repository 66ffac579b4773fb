package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/plugin"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/store"
	"github.com/xraph/testbank/types"
)

const tracerName = "github.com/xraph/testbank/host"

// Host deploys contracts and executes transactions against them.
type Host struct {
	mu      sync.Mutex
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer

	deployments map[string]*deployment
	receivers   map[identity.Identity]ReceiverFunc
	wallets     map[identity.Identity]uint64

	// Background workers
	receiptBuffer chan *receipt.Receipt
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// Configuration
	maxDepth             int
	maxSteps             uint64
	invokeTimeout        time.Duration
	autoMigrate          bool
	persistSnapshots     bool
	keepSnapshots        int
	receiptBatchSize     int
	receiptFlushInterval time.Duration
}

// Deployment describes a deployed contract.
type Deployment struct {
	ID         id.DeploymentID   `json:"id"`
	Name       string            `json:"name"`
	Self       identity.Identity `json:"self"`
	Restored   bool              `json:"restored"`
	Sequence   uint64            `json:"sequence"`
	DeployedAt time.Time         `json:"deployed_at"`
}

type deployment struct {
	Deployment
	contract contract.Contract
	registry *contract.Registry
}

// New creates a host persisting to s.
func New(s store.Store, opts ...Option) *Host {
	h := &Host{
		store:                s,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		tracer:               otel.Tracer(tracerName),
		deployments:          make(map[string]*deployment),
		receivers:            make(map[identity.Identity]ReceiverFunc),
		wallets:              make(map[identity.Identity]uint64),
		stopChan:             make(chan struct{}),
		maxDepth:             contract.DefaultMaxDepth,
		maxSteps:             contract.DefaultMaxSteps,
		autoMigrate:          true,
		persistSnapshots:     true,
		receiptBatchSize:     1,
		receiptFlushInterval: time.Second,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.receiptBatchSize > 1 {
		h.receiptBuffer = make(chan *receipt.Receipt, h.receiptBatchSize*4)
	}

	return h
}

// Start migrates the store and starts background workers.
func (h *Host) Start(ctx context.Context) error {
	if h.autoMigrate {
		if err := h.store.Migrate(ctx); err != nil {
			return err
		}
	}

	h.plugins.EmitInit(ctx, h)

	if h.receiptBuffer != nil {
		h.wg.Add(1)
		go h.receiptFlushWorker(context.WithoutCancel(ctx))
	}

	h.logger.Info("host started",
		"max_depth", h.maxDepth,
		"max_steps", h.maxSteps,
		"snapshots", h.persistSnapshots,
		"receipt_batch", h.receiptBatchSize,
	)

	return nil
}

// Stop flushes pending receipts, shuts down plugins and closes the store.
func (h *Host) Stop() error {
	h.stopOnce.Do(func() { close(h.stopChan) })
	h.wg.Wait()

	ctx := context.Background()
	h.plugins.EmitShutdown(ctx)

	return h.store.Close()
}

// Plugins returns the plugin registry.
func (h *Host) Plugins() *plugin.Registry { return h.plugins }

// Store returns the backing store.
func (h *Host) Store() store.Store { return h.store }

// ──────────────────────────────────────────────────
// Deployment
// ──────────────────────────────────────────────────

// Deploy registers c's entry points and brings its state up: from the latest
// stored snapshot when there is one, otherwise by running Initialize once.
func (h *Host) Deploy(ctx context.Context, c contract.Contract) (*Deployment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := c.Name()
	ctx, span := h.tracer.Start(ctx, "testbank.deploy", trace.WithAttributes(
		attribute.String("testbank.contract", name),
	))
	defer span.End()

	if _, ok := h.deployments[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDeployed, name)
	}

	reg := contract.NewRegistry()
	c.Register(reg)

	dep := &deployment{
		Deployment: Deployment{
			ID:         id.NewDeploymentID(),
			Name:       name,
			Self:       ContractIdentity(name),
			DeployedAt: time.Now().UTC(),
		},
		contract: c,
		registry: reg,
	}

	restored, err := h.restore(ctx, dep)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !restored {
		if err := h.initialize(ctx, dep); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err := h.saveSnapshot(ctx, dep, id.Nil); err != nil {
			return nil, err
		}
	}

	dep.Restored = restored
	h.deployments[name] = dep

	h.plugins.EmitContractDeployed(ctx, name, dep.Self, restored)

	h.logger.Info("contract deployed",
		"contract", name,
		"self", dep.Self.String(),
		"restored", restored,
		"sequence", dep.Sequence,
		"entry_points", len(reg.EntryPoints()),
	)

	out := dep.Deployment
	return &out, nil
}

func (h *Host) restore(ctx context.Context, dep *deployment) (bool, error) {
	st, ok := dep.contract.(contract.Stateful)
	if !ok || !h.persistSnapshots {
		return false, nil
	}

	snap, err := h.store.LatestSnapshot(ctx, dep.Name)
	if errors.Is(err, testbank.ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("host: load snapshot of %s: %w", dep.Name, err)
	}

	if sum := Checksum(snap.State); sum != snap.Checksum {
		return false, fmt.Errorf("%w: %s sequence %d", ErrSnapshotMismatch, dep.Name, snap.Sequence)
	}
	if err := st.Restore(snap.State); err != nil {
		return false, fmt.Errorf("host: restore %s: %w", dep.Name, err)
	}

	dep.Sequence = snap.Sequence
	return true, nil
}

func (h *Host) initialize(ctx context.Context, dep *deployment) (err error) {
	frame := contract.NewFrame(h.maxDepth, h.maxSteps)
	inv := contract.NewInvocation(ctx, frame, nil)
	inv.Self = dep.Self

	defer func() {
		if f := contract.Recover(recover()); f != nil {
			err = fmt.Errorf("%w: initialize %s: %w", ErrExecutionFault, dep.Name, f)
		}
	}()

	frame.Enter()
	defer frame.Leave()

	if err := dep.contract.Initialize(inv); err != nil {
		return fmt.Errorf("host: initialize %s: %w", dep.Name, err)
	}
	return nil
}

// Deployments lists deployed contracts ordered by name.
func (h *Host) Deployments() []Deployment {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Deployment, 0, len(h.deployments))
	for _, dep := range h.deployments {
		out = append(out, dep.Deployment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Deployment returns the named deployment.
func (h *Host) Deployment(name string) (Deployment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dep, ok := h.deployments[name]
	if !ok {
		return Deployment{}, fmt.Errorf("%w: %s", ErrContractNotFound, name)
	}
	return dep.Deployment, nil
}

// EntryPoints lists the named contract's procedures then functions.
func (h *Host) EntryPoints(name string) ([]contract.EntryPoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dep, ok := h.deployments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, name)
	}
	return dep.registry.EntryPoints(), nil
}

// ──────────────────────────────────────────────────
// Wallets
// ──────────────────────────────────────────────────

// Fund credits amount to the wallet of holder.
func (h *Host) Fund(holder identity.Identity, amount uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	balance, err := types.CheckedAdd(h.wallets[holder], amount)
	if err != nil {
		return fmt.Errorf("host: fund %s: %w", holder, err)
	}
	h.wallets[holder] = balance
	return nil
}

// WalletBalance returns the wallet balance of holder. A contract's custody is
// the wallet of its identity.
func (h *Host) WalletBalance(holder identity.Identity) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wallets[holder]
}

// Custody returns the value held by the named contract.
func (h *Host) Custody(name string) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dep, ok := h.deployments[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrContractNotFound, name)
	}
	return h.wallets[dep.Self], nil
}

// OnReceive registers fn to run whenever a transfer pays holder. A nil fn
// removes the receiver.
func (h *Host) OnReceive(holder identity.Identity, fn ReceiverFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fn == nil {
		delete(h.receivers, holder)
		return
	}
	h.receivers[holder] = fn
}
