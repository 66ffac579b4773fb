package testbank

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/directory"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/types"
)

// ContractName is the deployment name of the bank contract.
const ContractName = "TestBank"

// Entry point ids.
const (
	ProcDeposit       uint16 = 1
	ProcWithdraw      uint16 = 2
	ProcTransfer      uint16 = 3
	ProcAdminWithdraw uint16 = 4
	FuncGetBalance    uint16 = 1
)

// Outcome reasons reported by skipped operations.
const (
	ReasonInsufficientBalance = "insufficient balance"
	ReasonNotAdmin            = "caller is not admin"
	ReasonReentrancyGuard     = "reentrancy guard"
)

// Bank is the account-ledger contract.
type Bank struct {
	cfg     Config
	logger  *slog.Logger
	isAdmin identity.Comparator

	dir           *directory.Directory
	admin         identity.Identity
	totalDeposits uint64
	initialized   bool
}

var (
	_ contract.Contract = (*Bank)(nil)
	_ contract.Stateful = (*Bank)(nil)
)

// New creates a bank contract. It holds no accounts until initialized.
func New(opts ...Option) *Bank {
	b := &Bank{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.isAdmin = identity.Strict
	if b.cfg.Validate() == nil {
		b.isAdmin = b.cfg.Comparator()
	}
	b.dir = b.newDirectory()
	return b
}

func (b *Bank) newDirectory() *directory.Directory {
	return directory.New(
		directory.WithBuckets(b.cfg.Buckets),
		directory.WithCapacity(b.cfg.Capacity),
	)
}

// Name implements contract.Contract.
func (b *Bank) Name() string { return ContractName }

// Config returns the active configuration.
func (b *Bank) Config() Config { return b.cfg }

// Register implements contract.Contract.
func (b *Bank) Register(r *contract.Registry) {
	contract.Procedure(r, ProcDeposit, "Deposit", b.Deposit)
	contract.Procedure(r, ProcWithdraw, "Withdraw", b.Withdraw)
	contract.Procedure(r, ProcTransfer, "Transfer", b.Transfer)
	contract.Procedure(r, ProcAdminWithdraw, "AdminWithdraw", b.AdminWithdraw)
	contract.Function(r, FuncGetBalance, "GetBalance", b.GetBalance)
}

// Initialize resets the ledger state: admin from the config (the null
// identity by default), zero total deposits and an empty directory.
// It may run only once.
func (b *Bank) Initialize(_ *contract.Invocation) error {
	if b.initialized {
		return ErrAlreadyInitialized
	}
	if err := b.cfg.Validate(); err != nil {
		return err
	}

	b.isAdmin = b.cfg.Comparator()
	b.dir = b.newDirectory()
	b.admin = b.cfg.Admin
	b.totalDeposits = 0
	b.initialized = true

	b.logger.Info("testbank initialized",
		"admin", b.admin.String(),
		"strict_admin", b.cfg.StrictAdmin,
		"admin_word", b.cfg.AdminWord,
		"reentrancy_guard", b.cfg.ReentrancyGuard,
		"checked_arithmetic", b.cfg.CheckedArithmetic,
		"buckets", b.cfg.Buckets,
		"capacity", b.cfg.Capacity,
	)
	return nil
}

// State is the observable view of the ledger state.
type State struct {
	Admin         identity.Identity `json:"admin"`
	TotalDeposits uint64            `json:"totalDeposits"`
	Accounts      int               `json:"accounts"`
	Initialized   bool              `json:"initialized"`
}

// State returns the current ledger state.
func (b *Bank) State() State {
	return State{
		Admin:         b.admin,
		TotalDeposits: b.totalDeposits,
		Accounts:      b.dir.Len(),
		Initialized:   b.initialized,
	}
}

// Balance reads an account without creating it.
func (b *Bank) Balance(user identity.Identity) uint64 {
	return b.dir.Get(user).Balance
}

// DirectoryStats reports the directory's bucket utilisation.
func (b *Bank) DirectoryStats() directory.Stats {
	return b.dir.Stats()
}

// account is lookup-or-create. A full directory aborts the transaction.
func (b *Bank) account(user identity.Identity) *directory.Record {
	rec, err := b.dir.LookupOrCreate(user)
	if err != nil {
		contract.Abort(contract.FaultResourceExhausted, err)
	}
	return rec
}

func (b *Bank) add(x, y uint64) (uint64, bool) {
	if b.cfg.CheckedArithmetic {
		sum, err := types.CheckedAdd(x, y)
		if err != nil {
			contract.Abort(contract.FaultOverflow, err)
		}
		return sum, false
	}
	return types.WrappingAdd(x, y)
}

func (b *Bank) sub(x, y uint64) (uint64, bool) {
	if b.cfg.CheckedArithmetic {
		diff, err := types.CheckedSub(x, y)
		if err != nil {
			contract.Abort(contract.FaultOverflow, err)
		}
		return diff, false
	}
	return types.WrappingSub(x, y)
}

// guard enters the reentrancy lock when guarded mode is on.
func (b *Bank) guard(inv *contract.Invocation) (release func(), ok bool) {
	if !b.cfg.ReentrancyGuard {
		return func() {}, true
	}
	return inv.Guard()
}

type snapshot struct {
	Admin         identity.Identity  `json:"admin"`
	TotalDeposits uint64             `json:"totalDeposits"`
	Initialized   bool               `json:"initialized"`
	Records       []directory.Record `json:"records"`
}

// Snapshot implements contract.Stateful.
func (b *Bank) Snapshot() ([]byte, error) {
	return json.Marshal(snapshot{
		Admin:         b.admin,
		TotalDeposits: b.totalDeposits,
		Initialized:   b.initialized,
		Records:       b.dir.Records(),
	})
}

// Restore implements contract.Stateful.
func (b *Bank) Restore(data []byte) error {
	if err := b.cfg.Validate(); err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	dir := b.newDirectory()
	if err := dir.Load(snap.Records); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	b.dir = dir
	b.admin = snap.Admin
	b.totalDeposits = snap.TotalDeposits
	b.initialized = snap.Initialized
	b.isAdmin = b.cfg.Comparator()
	return nil
}
