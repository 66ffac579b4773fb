package testbank

import (
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/identity"
)

// DepositInput is the input of Deposit.
type DepositInput struct {
	Amount uint64 `json:"amount"`
}

// DepositOutput is the output of Deposit.
type DepositOutput struct {
	NewBalance uint64 `json:"newBalance"`
}

// WithdrawInput is the input of Withdraw.
type WithdrawInput struct {
	Amount uint64 `json:"amount"`
}

// WithdrawOutput is the output of Withdraw.
type WithdrawOutput struct {
	RemainingBalance uint64 `json:"remainingBalance"`
}

// TransferInput is the input of Transfer.
type TransferInput struct {
	Recipient identity.Identity `json:"recipient"`
	Amount    uint64            `json:"amount"`
}

// TransferOutput is the output of Transfer.
type TransferOutput struct {
	SenderBalance    uint64 `json:"senderBalance"`
	RecipientBalance uint64 `json:"recipientBalance"`
}

// AdminWithdrawInput is the input of AdminWithdraw.
type AdminWithdrawInput struct {
	User   identity.Identity `json:"user"`
	Amount uint64            `json:"amount"`
}

// AdminWithdrawOutput is the output of AdminWithdraw.
type AdminWithdrawOutput struct {
	WithdrawnAmount uint64 `json:"withdrawnAmount"`
}

// GetBalanceInput is the input of GetBalance.
type GetBalanceInput struct {
	User identity.Identity `json:"user"`
}

// GetBalanceOutput is the output of GetBalance.
type GetBalanceOutput struct {
	Balance uint64 `json:"balance"`
}

// Deposit credits the caller with the requested amount. The value attached to
// the invocation is not consulted.
func (b *Bank) Deposit(inv *contract.Invocation, in DepositInput) (DepositOutput, contract.Outcome) {
	release, ok := b.guard(inv)
	defer release()
	if !ok {
		return DepositOutput{NewBalance: b.Balance(inv.Caller)}, b.skip(inv, "Deposit", ReasonReentrancyGuard)
	}
	inv.Step()

	rec := b.account(inv.Caller)
	balance, wrapped := b.add(rec.Balance, in.Amount)
	rec.Balance = balance

	total, totalWrapped := b.add(b.totalDeposits, in.Amount)
	b.totalDeposits = total

	return DepositOutput{NewBalance: rec.Balance}, contract.Applied().Wrap(wrapped || totalWrapped)
}

// Withdraw pays the caller and then decrements the caller's balance. The
// payment happens first, so a recipient that re-enters Withdraw observes the
// balance before the decrement.
func (b *Bank) Withdraw(inv *contract.Invocation, in WithdrawInput) (WithdrawOutput, contract.Outcome) {
	release, ok := b.guard(inv)
	defer release()
	if !ok {
		return WithdrawOutput{RemainingBalance: b.Balance(inv.Caller)}, b.skip(inv, "Withdraw", ReasonReentrancyGuard)
	}
	inv.Step()

	rec := b.account(inv.Caller)
	if rec.Balance < in.Amount {
		return WithdrawOutput{RemainingBalance: rec.Balance}, b.skip(inv, "Withdraw", ReasonInsufficientBalance)
	}

	inv.Transfer(inv.Caller, in.Amount)

	balance, wrapped := b.sub(rec.Balance, in.Amount)
	rec.Balance = balance

	return WithdrawOutput{RemainingBalance: rec.Balance}, contract.Applied().Wrap(wrapped)
}

// Transfer moves amount from the caller to the recipient without checking
// that the caller can cover it.
func (b *Bank) Transfer(inv *contract.Invocation, in TransferInput) (TransferOutput, contract.Outcome) {
	release, ok := b.guard(inv)
	defer release()
	if !ok {
		return TransferOutput{
			SenderBalance:    b.Balance(inv.Caller),
			RecipientBalance: b.Balance(in.Recipient),
		}, b.skip(inv, "Transfer", ReasonReentrancyGuard)
	}
	inv.Step()

	sender := b.account(inv.Caller)
	recipient := b.account(in.Recipient)

	senderBalance, senderWrapped := b.sub(sender.Balance, in.Amount)
	sender.Balance = senderBalance

	recipientBalance, recipientWrapped := b.add(recipient.Balance, in.Amount)
	recipient.Balance = recipientBalance

	return TransferOutput{
		SenderBalance:    sender.Balance,
		RecipientBalance: recipient.Balance,
	}, contract.Applied().Wrap(senderWrapped || recipientWrapped)
}

// AdminWithdraw pays the caller from user's account when the caller passes
// the admin check. The user's balance is decremented without a sufficiency
// check.
func (b *Bank) AdminWithdraw(inv *contract.Invocation, in AdminWithdrawInput) (AdminWithdrawOutput, contract.Outcome) {
	release, ok := b.guard(inv)
	defer release()
	if !ok {
		return AdminWithdrawOutput{}, b.skip(inv, "AdminWithdraw", ReasonReentrancyGuard)
	}
	inv.Step()

	if !b.isAdmin(inv.Caller, b.admin) {
		return AdminWithdrawOutput{}, b.skip(inv, "AdminWithdraw", ReasonNotAdmin)
	}

	rec := b.account(in.User)
	inv.Transfer(inv.Caller, in.Amount)

	balance, wrapped := b.sub(rec.Balance, in.Amount)
	rec.Balance = balance

	return AdminWithdrawOutput{WithdrawnAmount: in.Amount}, contract.Applied().Wrap(wrapped)
}

// GetBalance returns user's balance. Unknown users read as zero and are not
// added to the directory.
func (b *Bank) GetBalance(inv *contract.Invocation, in GetBalanceInput) GetBalanceOutput {
	inv.Step()
	return GetBalanceOutput{Balance: b.Balance(in.User)}
}

func (b *Bank) skip(inv *contract.Invocation, op, reason string) contract.Outcome {
	b.logger.Debug("testbank operation skipped",
		"op", op,
		"caller", inv.Caller.String(),
		"reason", reason,
		"depth", inv.Frame.Depth(),
	)
	return contract.Skipped(reason)
}
