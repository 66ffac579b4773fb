package host

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/fixtures"
	"github.com/xraph/testbank/id"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/plugin"
	"github.com/xraph/testbank/receipt"
	"github.com/xraph/testbank/snapshot"
	"github.com/xraph/testbank/store/memory"
	"github.com/xraph/testbank/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice   = identity.FromWords(0xA11CE, 1, 2, 3)
	bob     = identity.FromWords(0xB0B, 4, 5, 6)
	mallory = identity.FromWords(0, 0xBAD, 0xBAD, 0xBAD)
)

func newHost(t *testing.T, opts ...Option) *Host {
	t.Helper()
	h := New(memory.New(), opts...)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func deployBank(t *testing.T, h *Host, opts ...testbank.Option) *testbank.Bank {
	t.Helper()
	bank := testbank.New(opts...)
	_, err := h.Deploy(context.Background(), bank)
	require.NoError(t, err)
	return bank
}

func procedure(caller identity.Identity, procID uint16, value uint64, input any) Call {
	return Call{
		Contract: testbank.ContractName,
		Kind:     contract.KindProcedure,
		ID:       procID,
		Caller:   caller,
		Value:    value,
		Input:    input,
	}
}

// depositWithValue funds caller and deposits amount with the same value
// attached, so custody can pay it back.
func depositWithValue(t *testing.T, h *Host, caller identity.Identity, amount uint64) {
	t.Helper()
	require.NoError(t, h.Fund(caller, amount))
	res, err := h.Invoke(context.Background(), procedure(caller, testbank.ProcDeposit, amount, testbank.DepositInput{Amount: amount}))
	require.NoError(t, err)
	require.True(t, res.Outcome.IsApplied())
}

func balanceOf(t *testing.T, h *Host, user identity.Identity) uint64 {
	t.Helper()
	res, err := h.Invoke(context.Background(), Call{
		Contract: testbank.ContractName,
		Kind:     contract.KindFunction,
		ID:       testbank.FuncGetBalance,
		Input:    testbank.GetBalanceInput{User: user},
	})
	require.NoError(t, err)
	out, ok := res.Output.(testbank.GetBalanceOutput)
	require.True(t, ok)
	return out.Balance
}

func TestDeploy(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()

	dep, err := h.Deploy(ctx, testbank.New())
	require.NoError(t, err)
	assert.Equal(t, testbank.ContractName, dep.Name)
	assert.Equal(t, ContractIdentity(testbank.ContractName), dep.Self)
	assert.False(t, dep.Restored)
	assert.Equal(t, uint64(1), dep.Sequence)

	_, err = h.Deploy(ctx, testbank.New())
	assert.ErrorIs(t, err, ErrAlreadyDeployed)

	eps, err := h.EntryPoints(testbank.ContractName)
	require.NoError(t, err)
	require.Len(t, eps, 5)
	assert.Equal(t, "Deposit", eps[0].Name)
	assert.Equal(t, "GetBalance", eps[4].Name)

	_, err = h.EntryPoints("nope")
	assert.True(t, IsNotFound(err))

	assert.NotEqual(t, ContractIdentity("a"), ContractIdentity("b"))
}

func TestInvokeDepositAndQuery(t *testing.T) {
	h := newHost(t)
	bank := deployBank(t, h)
	ctx := context.Background()

	res, err := h.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 0, testbank.DepositInput{Amount: 250}))
	require.NoError(t, err)
	assert.Equal(t, testbank.DepositOutput{NewBalance: 250}, res.Output)
	assert.Equal(t, receipt.StatusCommitted, res.Receipt.Status)
	assert.JSONEq(t, `{"newBalance":250}`, string(res.Receipt.Output))

	stored, err := h.Receipt(ctx, res.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Receipt.TransactionID, stored.TransactionID)

	assert.Equal(t, uint64(250), balanceOf(t, h, alice))
	assert.Equal(t, uint64(0), balanceOf(t, h, bob))
	assert.Equal(t, 1, bank.State().Accounts)

	// Raw JSON input and lookup by name.
	res, err = h.Invoke(ctx, Call{
		Contract: testbank.ContractName,
		Name:     "Deposit",
		Caller:   alice,
		Input:    json.RawMessage(`{"amount":5}`),
	})
	require.NoError(t, err)
	assert.Equal(t, testbank.DepositOutput{NewBalance: 255}, res.Output)
}

func TestInvokeErrors(t *testing.T) {
	h := newHost(t)
	deployBank(t, h)
	ctx := context.Background()

	_, err := h.Invoke(ctx, Call{Contract: "nope"})
	assert.ErrorIs(t, err, ErrContractNotFound)

	_, err = h.Invoke(ctx, procedure(alice, 99, 0, nil))
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
	assert.True(t, IsNotFound(err))

	res, err := h.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 0, json.RawMessage(`{"amount":"lots"}`)))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	assert.Equal(t, receipt.StatusRejected, res.Receipt.Status)

	res, err = h.Invoke(ctx, procedure(alice, testbank.ProcWithdraw, 0, json.RawMessage(`{"amout":500}`)))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, receipt.StatusRejected, res.Receipt.Status)

	res, err = h.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 10, testbank.DepositInput{Amount: 10}))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, receipt.StatusRejected, res.Receipt.Status)
	assert.Equal(t, uint64(0), balanceOf(t, h, alice))

	_, err = h.Invoke(ctx, Call{
		Contract: testbank.ContractName,
		Kind:     contract.KindFunction,
		ID:       testbank.FuncGetBalance,
		Value:    1,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	rejected, err := h.Receipts(ctx, receipt.ListOpts{Status: receipt.StatusRejected})
	require.NoError(t, err)
	assert.Len(t, rejected, 4)
}

func TestAttachedValueMovesToCustody(t *testing.T) {
	h := newHost(t)
	deployBank(t, h)

	depositWithValue(t, h, alice, 100)

	assert.Equal(t, uint64(0), h.WalletBalance(alice))
	custody, err := h.Custody(testbank.ContractName)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), custody)

	res, err := h.Invoke(context.Background(), procedure(alice, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 40}))
	require.NoError(t, err)
	assert.Equal(t, testbank.WithdrawOutput{RemainingBalance: 60}, res.Output)
	assert.Equal(t, uint64(40), h.WalletBalance(alice))
	require.Len(t, res.Receipt.Transfers, 1)
	assert.True(t, res.Receipt.Transfers[0].Paid)
	assert.Equal(t, uint64(40), res.Receipt.Paid())
}

func TestTransferShortCustodyIsUnpaid(t *testing.T) {
	h := newHost(t)
	deployBank(t, h)
	ctx := context.Background()

	called := false
	h.OnReceive(alice, func(*Reentry, identity.Identity, uint64) { called = true })

	_, err := h.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 0, testbank.DepositInput{Amount: 100}))
	require.NoError(t, err)

	res, err := h.Invoke(ctx, procedure(alice, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 100}))
	require.NoError(t, err)
	require.Len(t, res.Receipt.Transfers, 1)
	assert.False(t, res.Receipt.Transfers[0].Paid)
	assert.False(t, called)
	assert.Equal(t, uint64(0), h.WalletBalance(alice))
	assert.Equal(t, uint64(0), balanceOf(t, h, alice))
}

// drainOnce registers a receiver for attacker that re-enters Withdraw a
// single time with the amount it was just paid.
func drainOnce(t *testing.T, h *Host, attacker identity.Identity) *[]contract.Result {
	t.Helper()
	var nested []contract.Result
	entered := false
	h.OnReceive(attacker, func(r *Reentry, _ identity.Identity, amount uint64) {
		if entered {
			return
		}
		entered = true
		assert.Equal(t, attacker, r.Self())
		assert.Equal(t, 1, r.Depth())

		res, err := r.Invoke(procedure(identity.Null, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: amount}))
		require.NoError(t, err)
		nested = append(nested, res)
	})
	return &nested
}

func TestReentrancyUnguardedDrainsTwice(t *testing.T) {
	h := newHost(t)
	bank := deployBank(t, h)

	depositWithValue(t, h, bob, 100)
	depositWithValue(t, h, alice, 100)
	nested := drainOnce(t, h, alice)

	res, err := h.Invoke(context.Background(), procedure(alice, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 100}))
	require.NoError(t, err)

	require.Len(t, *nested, 1)
	assert.True(t, (*nested)[0].Outcome.IsApplied())
	assert.Equal(t, testbank.WithdrawOutput{RemainingBalance: 0}, (*nested)[0].Output)

	// The outer decrement runs against the already-decremented balance.
	assert.Equal(t, testbank.WithdrawOutput{RemainingBalance: math.MaxUint64 - 99}, res.Output)
	assert.True(t, res.Outcome.Wrapped)
	assert.Equal(t, uint64(math.MaxUint64-99), bank.Balance(alice))

	assert.Equal(t, uint64(200), h.WalletBalance(alice))
	custody, err := h.Custody(testbank.ContractName)
	require.NoError(t, err)
	assert.Zero(t, custody)

	rcpt := res.Receipt
	assert.True(t, rcpt.Reentered())
	assert.Equal(t, 2, rcpt.MaxDepth)
	require.Len(t, rcpt.Calls, 1)
	assert.Equal(t, 2, rcpt.Calls[0].Depth)
	assert.Equal(t, alice, rcpt.Calls[0].Caller)
	require.Len(t, rcpt.Transfers, 2)
	assert.Equal(t, uint64(200), rcpt.Paid())
}

func TestReentrancyGuardBlocksNestedWithdraw(t *testing.T) {
	h := newHost(t)
	bank := deployBank(t, h, testbank.WithReentrancyGuard())

	depositWithValue(t, h, bob, 100)
	depositWithValue(t, h, alice, 100)
	nested := drainOnce(t, h, alice)

	res, err := h.Invoke(context.Background(), procedure(alice, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 100}))
	require.NoError(t, err)

	require.Len(t, *nested, 1)
	assert.True(t, (*nested)[0].Outcome.IsSkipped())
	assert.Equal(t, testbank.ReasonReentrancyGuard, (*nested)[0].Outcome.Reason)

	assert.Equal(t, testbank.WithdrawOutput{RemainingBalance: 0}, res.Output)
	assert.False(t, res.Outcome.Wrapped)
	assert.Zero(t, bank.Balance(alice))
	assert.Equal(t, uint64(100), bank.Balance(bob))
	assert.Equal(t, uint64(100), h.WalletBalance(alice))

	custody, err := h.Custody(testbank.ContractName)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), custody)
}

func TestWeakAdminDrainsVictim(t *testing.T) {
	h := newHost(t)
	bank := deployBank(t, h)

	depositWithValue(t, h, bob, 100)

	res, err := h.Invoke(context.Background(), procedure(mallory, testbank.ProcAdminWithdraw, 0,
		testbank.AdminWithdrawInput{User: bob, Amount: 100}))
	require.NoError(t, err)
	assert.True(t, res.Outcome.IsApplied())
	assert.Equal(t, testbank.AdminWithdrawOutput{WithdrawnAmount: 100}, res.Output)
	assert.Equal(t, uint64(100), h.WalletBalance(mallory))
	assert.Zero(t, bank.Balance(bob))
}

func TestCheckedOverflowRollsBack(t *testing.T) {
	h := newHost(t)
	bank := deployBank(t, h, testbank.WithConfig(testbank.HardenedConfig()))
	ctx := context.Background()

	depositWithValue(t, h, alice, 10)

	res, err := h.Invoke(ctx, procedure(alice, testbank.ProcTransfer, 0,
		testbank.TransferInput{Recipient: bob, Amount: 11}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFault)
	assert.True(t, IsFault(err))
	kind, ok := FaultKind(err)
	require.True(t, ok)
	assert.Equal(t, contract.FaultOverflow, kind)

	assert.Equal(t, receipt.StatusAborted, res.Receipt.Status)
	assert.Equal(t, contract.FaultOverflow, res.Receipt.Fault)

	// The recipient record created before the fault is gone.
	assert.Equal(t, 1, bank.State().Accounts)
	assert.Equal(t, uint64(10), bank.Balance(alice))

	aborted, err := h.Receipts(ctx, receipt.ListOpts{Status: receipt.StatusAborted})
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.Equal(t, res.Receipt.ID, aborted[0].ID)
}

func TestFaultRestoresWallets(t *testing.T) {
	h := newHost(t, WithMaxDepth(4))
	deployBank(t, h)
	ctx := context.Background()

	depositWithValue(t, h, alice, 100)

	// Re-enter until the depth limit aborts the transaction.
	h.OnReceive(alice, func(r *Reentry, _ identity.Identity, _ uint64) {
		_, _ = r.Invoke(procedure(identity.Null, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 1}))
	})

	_, err := h.Invoke(ctx, procedure(alice, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 1}))
	kind, ok := FaultKind(err)
	require.True(t, ok)
	assert.Equal(t, contract.FaultDepthLimit, kind)

	assert.Zero(t, h.WalletBalance(alice))
	custody, err := h.Custody(testbank.ContractName)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), custody)
	h.OnReceive(alice, nil)
	assert.Equal(t, uint64(100), balanceOf(t, h, alice))
}

func hm25Call(kind contract.Kind, epID uint16, input any) Call {
	return Call{Contract: fixtures.HM25Name, Kind: kind, ID: epID, Caller: alice, Input: input}
}

func TestFixtureFaults(t *testing.T) {
	h := newHost(t, WithMaxDepth(8), WithMaxSteps(10_000))
	hm := fixtures.NewHM25()
	_, err := h.Deploy(context.Background(), hm)
	require.NoError(t, err)

	tests := []struct {
		name string
		call Call
		want contract.FaultKind
	}{
		{"proc03 divides by zero", hm25Call(contract.KindProcedure, 3, nil), contract.FaultDivideByZero},
		{"proc04 recurses", hm25Call(contract.KindProcedure, 4, nil), contract.FaultDepthLimit},
		{"func02 loops", hm25Call(contract.KindFunction, 2, fixtures.Func02Input{Input2: 1000}), contract.FaultStepLimit},
		{"func03 divides by zero", hm25Call(contract.KindFunction, 3, fixtures.Func03Input{}), contract.FaultDivideByZero},
		{"func04 recurses", hm25Call(contract.KindFunction, 4, nil), contract.FaultDepthLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Invoke(context.Background(), tt.call)
			require.ErrorIs(t, err, ErrExecutionFault)
			kind, ok := FaultKind(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, receipt.StatusAborted, res.Receipt.Status)
			assert.Equal(t, tt.want, res.Receipt.Fault)
		})
	}

	// Faulted procedures left no trace in the fixture state.
	assert.Equal(t, [6]uint8{0, 1, 2, 3, 4, 5}, hm.Vars())

	// The fixtures stay invocable after faults.
	res, err := h.Invoke(context.Background(), hm25Call(contract.KindFunction, 1, fixtures.Func01Input{Input1: 300}))
	require.NoError(t, err)
	assert.Equal(t, fixtures.Func01Output{Output1: 44}, res.Output)

	res, err = h.Invoke(context.Background(), hm25Call(contract.KindProcedure, 2, nil))
	require.NoError(t, err)
	assert.True(t, res.Outcome.Wrapped)
}

func TestInvokeTimeoutStopsLoop(t *testing.T) {
	h := newHost(t, WithMaxSteps(math.MaxUint64), WithInvokeTimeout(20*time.Millisecond))
	_, err := h.Deploy(context.Background(), fixtures.NewHM25())
	require.NoError(t, err)

	_, err = h.Invoke(context.Background(), hm25Call(contract.KindFunction, 2, fixtures.Func02Input{Input2: 1000}))
	kind, ok := FaultKind(err)
	require.True(t, ok)
	assert.Equal(t, contract.FaultStepLimit, kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeployRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	h1 := New(st)
	_, err := h1.Deploy(ctx, testbank.New())
	require.NoError(t, err)
	_, err = h1.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 0, testbank.DepositInput{Amount: 70}))
	require.NoError(t, err)
	_ = balanceOf(t, h1, alice)

	dep, err := h1.Deployment(testbank.ContractName)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), dep.Sequence, "functions do not snapshot")

	h2 := New(st)
	bank := testbank.New()
	restored, err := h2.Deploy(ctx, bank)
	require.NoError(t, err)
	assert.True(t, restored.Restored)
	assert.Equal(t, uint64(2), restored.Sequence)
	assert.Equal(t, uint64(70), bank.Balance(alice))
	assert.ErrorIs(t, bank.Initialize(nil), testbank.ErrAlreadyInitialized)
}

func TestDeployRejectsCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.SaveSnapshot(ctx, &snapshot.Snapshot{
		Entity:   types.NewEntity(),
		ID:       id.NewSnapshotID(),
		Contract: testbank.ContractName,
		Sequence: 1,
		State:    []byte(`{}`),
		Checksum: "deadbeef",
	}))

	_, err := New(st).Deploy(ctx, testbank.New())
	assert.ErrorIs(t, err, ErrSnapshotMismatch)
}

func TestSnapshotRetention(t *testing.T) {
	h := newHost(t, WithSnapshots(true, 2))
	deployBank(t, h)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 0, testbank.DepositInput{Amount: 1}))
		require.NoError(t, err)
	}

	snaps, err := h.Snapshots(ctx, testbank.ContractName, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, uint64(6), snaps[0].Sequence)
	assert.Equal(t, Checksum(snaps[0].State), snaps[0].Checksum)
}

func TestSnapshotsDisabled(t *testing.T) {
	h := newHost(t, WithSnapshots(false, 0))
	deployBank(t, h)

	_, err := h.Invoke(context.Background(), procedure(alice, testbank.ProcDeposit, 0, testbank.DepositInput{Amount: 1}))
	require.NoError(t, err)

	snaps, err := h.Snapshots(context.Background(), testbank.ContractName, 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

// keepOpen ignores Close so receipts can be inspected after Stop.
type keepOpen struct {
	*memory.Store
}

func (keepOpen) Close() error { return nil }

func TestReceiptBatchFlushesOnStop(t *testing.T) {
	st := keepOpen{memory.New()}
	h := New(st, WithReceiptBatch(16, time.Hour))
	ctx := context.Background()
	require.NoError(t, h.Start(ctx))

	_, err := h.Deploy(ctx, testbank.New())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := h.Invoke(ctx, procedure(alice, testbank.ProcDeposit, 0, testbank.DepositInput{Amount: 1}))
		require.NoError(t, err)
	}

	require.NoError(t, h.Stop())

	all, err := st.ListReceipts(ctx, receipt.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

type recorder struct {
	mu        sync.Mutex
	applied   int
	skipped   int
	wrapped   int
	reentered int
	transfers int
	committed int
	aborted   []contract.FaultKind
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInvocationApplied(context.Context, plugin.InvocationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied++
	return nil
}

func (r *recorder) OnInvocationSkipped(context.Context, plugin.InvocationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
	return nil
}

func (r *recorder) OnArithmeticWrapped(context.Context, plugin.InvocationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrapped++
	return nil
}

func (r *recorder) OnReentered(context.Context, plugin.InvocationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reentered++
	return nil
}

func (r *recorder) OnTransfer(context.Context, plugin.TransferEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers++
	return nil
}

func (r *recorder) OnTransactionCommitted(context.Context, plugin.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed++
	return nil
}

func (r *recorder) OnTransactionAborted(_ context.Context, ev plugin.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = append(r.aborted, ev.Fault.Kind)
	return nil
}

func TestPluginEvents(t *testing.T) {
	rec := &recorder{}
	h := newHost(t, WithPlugin(rec))
	deployBank(t, h)
	ctx := context.Background()

	depositWithValue(t, h, alice, 100)
	drainOnce(t, h, alice)

	_, err := h.Invoke(ctx, procedure(alice, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 100}))
	require.NoError(t, err)

	_, err = h.Invoke(ctx, procedure(bob, testbank.ProcWithdraw, 0, testbank.WithdrawInput{Amount: 1}))
	require.NoError(t, err)

	hm := fixtures.NewHM25()
	_, err = h.Deploy(ctx, hm)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, hm25Call(contract.KindProcedure, 3, nil))
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 3, rec.applied, "deposit, outer and nested withdraw")
	assert.Equal(t, 1, rec.skipped, "bob has no balance")
	assert.Equal(t, 1, rec.wrapped)
	assert.Equal(t, 1, rec.reentered)
	assert.Equal(t, 2, rec.transfers)
	assert.Equal(t, 3, rec.committed)
	assert.Equal(t, []contract.FaultKind{contract.FaultDivideByZero}, rec.aborted)
}
