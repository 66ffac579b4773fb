package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/plugin"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/types"
)

// Call addresses one entry point. Name, when set, is used instead of Kind
// and ID.
type Call struct {
	Contract string            `json:"contract"`
	Kind     contract.Kind     `json:"kind"`
	ID       uint16            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Caller   identity.Identity `json:"caller"`
	Value    uint64            `json:"value"`
	Input    any               `json:"input,omitempty"`
}

// Result is the outcome of a top-level transaction.
type Result struct {
	Output  any              `json:"output"`
	Outcome contract.Outcome `json:"outcome"`
	Receipt *receipt.Receipt `json:"receipt"`
}

// Invoke runs call as a top-level transaction. A host fault rolls the
// transaction back and returns ErrExecutionFault together with a result whose
// receipt is aborted.
func (h *Host) Invoke(ctx context.Context, call Call) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dep, ok := h.deployments[call.Contract]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, call.Contract)
	}
	ep, handler, err := dep.lookup(call)
	if err != nil {
		return nil, err
	}

	if h.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.invokeTimeout)
		defer cancel()
	}

	ctx, span := h.tracer.Start(ctx, "testbank.invoke", trace.WithAttributes(
		attribute.String("testbank.contract", dep.Name),
		attribute.String("testbank.kind", string(ep.Kind)),
		attribute.String("testbank.entry_point", ep.Name),
		attribute.Int("testbank.entry_point_id", int(ep.ID)),
	))
	defer span.End()

	tx := h.begin(ctx)
	rcpt := tx.receipt
	rcpt.Contract = dep.Name
	rcpt.Kind = ep.Kind
	rcpt.EntryPoint = ep.Name
	rcpt.EntryPointID = ep.ID
	rcpt.Caller = call.Caller
	rcpt.Value = call.Value
	rcpt.Input = encode(call.Input)

	span.SetAttributes(attribute.String("testbank.transaction_id", tx.id.String()))

	if ep.Kind == contract.KindFunction && call.Value > 0 {
		return h.reject(ctx, span, tx, fmt.Errorf("%w: functions take no value", ErrInvalidInput))
	}
	if err := tx.attach(call.Caller, dep.Self, call.Value); err != nil {
		return h.reject(ctx, span, tx, err)
	}

	res, fault, err := tx.run(func() (contract.Result, error) {
		return tx.dispatch(nil, dep, ep, handler, call.Caller, call.Value, call.Input)
	})

	switch {
	case fault != nil:
		return h.abort(ctx, span, tx, fault)
	case err != nil:
		tx.rollback()
		return h.reject(ctx, span, tx, err)
	}

	return h.commit(ctx, span, tx, res)
}

func (d *deployment) lookup(call Call) (contract.EntryPoint, contract.Handler, error) {
	var (
		ep      contract.EntryPoint
		handler contract.Handler
		ok      bool
	)
	if call.Name != "" {
		ep, handler, ok = d.registry.LookupName(call.Name)
	} else {
		ep, handler, ok = d.registry.Lookup(call.Kind, call.ID)
	}
	if !ok {
		if call.Name != "" {
			return ep, nil, fmt.Errorf("%w: %s.%s", ErrEntryPointNotFound, d.Name, call.Name)
		}
		return ep, nil, fmt.Errorf("%w: %s %s %d", ErrEntryPointNotFound, d.Name, call.Kind, call.ID)
	}
	return ep, handler, nil
}

func (h *Host) commit(ctx context.Context, span trace.Span, tx *txn, res contract.Result) (*Result, error) {
	rcpt := tx.finish(receipt.StatusCommitted)
	rcpt.Outcome = res.Outcome
	rcpt.Output = encode(res.Output)

	for _, dep := range tx.touched {
		if err := h.saveSnapshot(ctx, dep, tx.id); err != nil {
			h.logger.Error("failed to save snapshot",
				"contract", dep.Name,
				"transaction_id", tx.id.String(),
				"error", err,
			)
		}
	}

	h.persistReceipt(ctx, rcpt)

	for _, ev := range tx.invocations {
		h.plugins.EmitInvocation(ctx, ev)
	}
	for _, ev := range tx.transfers {
		h.plugins.EmitTransfer(ctx, ev)
	}
	h.plugins.EmitTransactionCommitted(ctx, tx.event(rcpt, nil))

	span.SetAttributes(
		attribute.String("testbank.outcome", string(res.Outcome.Status)),
		attribute.Bool("testbank.wrapped", res.Outcome.Wrapped),
		attribute.Int64("testbank.steps", int64(rcpt.Steps)), //nolint:gosec // bounded by the step limit
	)

	h.logger.Debug("transaction committed",
		"transaction_id", tx.id.String(),
		"contract", rcpt.Contract,
		"entry_point", rcpt.EntryPoint,
		"outcome", res.Outcome.Status,
		"wrapped", res.Outcome.Wrapped,
		"steps", rcpt.Steps,
		"depth", rcpt.MaxDepth,
	)

	return &Result{Output: res.Output, Outcome: res.Outcome, Receipt: rcpt}, nil
}

func (h *Host) abort(ctx context.Context, span trace.Span, tx *txn, fault *contract.Fault) (*Result, error) {
	tx.rollback()

	rcpt := tx.finish(receipt.StatusAborted)
	rcpt.Fault = fault.Kind
	rcpt.Error = fault.Error()

	h.persistReceipt(ctx, rcpt)
	h.plugins.EmitTransactionAborted(ctx, tx.event(rcpt, fault))

	span.RecordError(fault)
	span.SetStatus(codes.Error, string(fault.Kind))

	h.logger.Warn("transaction aborted",
		"transaction_id", tx.id.String(),
		"contract", rcpt.Contract,
		"entry_point", rcpt.EntryPoint,
		"fault", fault.Kind,
		"error", fault.Err,
		"steps", rcpt.Steps,
		"depth", rcpt.MaxDepth,
	)

	return &Result{Receipt: rcpt}, fmt.Errorf("%w: %w", ErrExecutionFault, fault)
}

func (h *Host) reject(ctx context.Context, span trace.Span, tx *txn, err error) (*Result, error) {
	if errors.Is(err, contract.ErrInvalidInput) {
		err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	rcpt := tx.finish(receipt.StatusRejected)
	rcpt.Error = err.Error()
	h.persistReceipt(ctx, rcpt)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	h.logger.Debug("transaction rejected",
		"transaction_id", tx.id.String(),
		"contract", rcpt.Contract,
		"entry_point", rcpt.EntryPoint,
		"error", err,
	)

	return &Result{Receipt: rcpt}, err
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// txn is the state of one top-level transaction. It is the Transferer handed
// to every invocation of the transaction.
type txn struct {
	h       *Host
	ctx     context.Context
	id      id.TransactionID
	frame   *contract.Frame
	started time.Time
	receipt *receipt.Receipt

	wallets     map[identity.Identity]uint64
	checkpoints map[string][]byte
	touched     []*deployment

	invocations []plugin.InvocationEvent
	transfers   []plugin.TransferEvent
}

var _ contract.Transferer = (*txn)(nil)

func (h *Host) begin(ctx context.Context) *txn {
	txID := id.NewTransactionID()

	wallets := make(map[identity.Identity]uint64, len(h.wallets))
	for k, v := range h.wallets {
		wallets[k] = v
	}

	return &txn{
		h:       h,
		ctx:     ctx,
		id:      txID,
		frame:   contract.NewFrame(h.maxDepth, h.maxSteps),
		started: time.Now(),
		receipt: &receipt.Receipt{
			Entity:        types.NewEntity(),
			ID:            id.NewReceiptID(),
			TransactionID: txID,
		},
		wallets:     wallets,
		checkpoints: make(map[string][]byte),
	}
}

// run executes fn and converts a raised fault into a value.
func (tx *txn) run(fn func() (contract.Result, error)) (res contract.Result, fault *contract.Fault, err error) {
	defer func() {
		if f := contract.Recover(recover()); f != nil {
			fault = f
		}
	}()
	res, err = fn()
	return res, nil, err
}

// attach moves value from the caller's wallet into contract custody.
func (tx *txn) attach(caller, self identity.Identity, value uint64) error {
	if value == 0 {
		return nil
	}
	w := tx.h.wallets
	if w[caller] < value {
		return fmt.Errorf("%w: %s holds %d, attached %d", ErrInsufficientFunds, caller, w[caller], value)
	}
	custody, err := types.CheckedAdd(w[self], value)
	if err != nil {
		return fmt.Errorf("host: custody of %s: %w", self, err)
	}
	w[caller] -= value
	w[self] = custody
	return nil
}

// dispatch runs one entry point, top-level when parent is nil.
func (tx *txn) dispatch(
	parent *contract.Invocation,
	dep *deployment,
	ep contract.EntryPoint,
	handler contract.Handler,
	caller identity.Identity,
	value uint64,
	input any,
) (contract.Result, error) {
	tx.frame.Enter()
	defer tx.frame.Leave()
	depth := tx.frame.Depth()

	readOnly := ep.Kind == contract.KindFunction
	if !readOnly {
		if err := tx.checkpoint(dep); err != nil {
			return contract.Result{}, err
		}
	}

	var inv *contract.Invocation
	if parent == nil {
		inv = contract.NewInvocation(tx.ctx, tx.frame, tx)
		inv.Caller = caller
		inv.Self = dep.Self
		inv.AttachedValue = value
		inv.ReadOnly = readOnly
	} else {
		inv = parent.Derive(dep.Self, caller, value, readOnly)
	}

	start := time.Now()
	res, err := handler(inv, input)
	if err != nil {
		return res, err
	}

	ev := plugin.InvocationEvent{
		TransactionID: tx.id,
		Contract:      dep.Name,
		Kind:          ep.Kind,
		EntryPoint:    ep.Name,
		EntryPointID:  ep.ID,
		Caller:        caller,
		Value:         value,
		Depth:         depth,
		Outcome:       res.Outcome,
		Elapsed:       time.Since(start),
	}
	tx.invocations = append(tx.invocations, ev)

	if depth > 1 {
		tx.receipt.Calls = append(tx.receipt.Calls, receipt.Call{
			Contract:     dep.Name,
			Kind:         ep.Kind,
			EntryPoint:   ep.Name,
			EntryPointID: ep.ID,
			Caller:       caller,
			Depth:        depth,
			Outcome:      res.Outcome,
		})
	}

	return res, nil
}

// checkpoint snapshots dep the first time the transaction mutates it.
func (tx *txn) checkpoint(dep *deployment) error {
	if _, ok := tx.checkpoints[dep.Name]; ok {
		return nil
	}
	st, ok := dep.contract.(contract.Stateful)
	if !ok {
		tx.checkpoints[dep.Name] = nil
		tx.touched = append(tx.touched, dep)
		return nil
	}
	data, err := st.Snapshot()
	if err != nil {
		return fmt.Errorf("host: checkpoint %s: %w", dep.Name, err)
	}
	tx.checkpoints[dep.Name] = data
	tx.touched = append(tx.touched, dep)
	return nil
}

// rollback restores every wallet and every touched contract.
func (tx *txn) rollback() {
	tx.h.wallets = tx.wallets

	for _, dep := range tx.touched {
		st, ok := dep.contract.(contract.Stateful)
		if !ok {
			tx.h.logger.Warn("contract state cannot be rolled back",
				"contract", dep.Name,
				"transaction_id", tx.id.String(),
			)
			continue
		}
		if err := st.Restore(tx.checkpoints[dep.Name]); err != nil {
			tx.h.logger.Error("failed to roll back contract",
				"contract", dep.Name,
				"transaction_id", tx.id.String(),
				"error", err,
			)
		}
	}
	tx.touched = nil
}

// Transfer implements contract.Transferer. The payment comes out of the
// paying contract's custody. When custody is short the transfer is recorded
// unpaid and nothing else happens; otherwise a receiver registered for the
// recipient runs before Transfer returns.
func (tx *txn) Transfer(inv *contract.Invocation, to identity.Identity, amount uint64) {
	w := tx.h.wallets
	from := inv.Self
	paid := w[from] >= amount

	if paid {
		credited, err := types.CheckedAdd(w[to], amount)
		if err != nil {
			contract.Abort(contract.FaultOverflow, err)
		}
		w[from] -= amount
		w[to] = credited
	}

	depth := tx.frame.Depth()
	tx.receipt.Transfers = append(tx.receipt.Transfers, receipt.Transfer{
		From:   from,
		To:     to,
		Amount: amount,
		Paid:   paid,
		Depth:  depth,
	})
	tx.transfers = append(tx.transfers, plugin.TransferEvent{
		TransactionID: tx.id,
		From:          from,
		To:            to,
		Amount:        amount,
		Paid:          paid,
		Depth:         depth,
	})

	if !paid {
		return
	}
	if fn, ok := tx.h.receivers[to]; ok {
		fn(&Reentry{tx: tx, parent: inv, self: to}, from, amount)
	}
}

func (tx *txn) finish(status receipt.Status) *receipt.Receipt {
	r := tx.receipt
	r.Status = status
	r.Steps = tx.frame.Steps()
	r.MaxDepth = tx.frame.MaxDepthReached()
	r.Duration = time.Since(tx.started)
	return r
}

func (tx *txn) event(r *receipt.Receipt, fault *contract.Fault) plugin.TransactionEvent {
	return plugin.TransactionEvent{
		TransactionID: tx.id,
		ReceiptID:     r.ID,
		Contract:      r.Contract,
		Kind:          r.Kind,
		EntryPoint:    r.EntryPoint,
		Caller:        r.Caller,
		Fault:         fault,
		Steps:         r.Steps,
		Nested:        tx.frame.Nested(),
		Elapsed:       r.Duration,
	}
}

// encode renders an input or output for a receipt. Values that cannot be
// encoded are left out.
func encode(v any) json.RawMessage {
	switch x := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return x
	case []byte:
		if json.Valid(x) {
			return x
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
