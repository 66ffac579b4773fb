// Package testbank implements an account-ledger contract that reproduces a
// catalogue of well-known contract defects, for use as a fixture by contract
// auditing tools.
//
// The bank keeps per-identity balances in a hash-bucketed directory and
// exposes four procedures and one function:
//
//	Deposit(1)        {amount}            -> {newBalance}
//	Withdraw(2)       {amount}            -> {remainingBalance}
//	Transfer(3)       {recipient, amount} -> {senderBalance, recipientBalance}
//	AdminWithdraw(4)  {user, amount}      -> {withdrawnAmount}
//	GetBalance(1)     {user}              -> {balance}
//
// With DefaultConfig every defect is reproducible:
//
//   - Deposit credits the requested amount whatever value was attached
//   - balances wrap modulo 2^64 on overflow and underflow
//   - Transfer and AdminWithdraw never check the debited balance
//   - Withdraw pays before it decrements, so a re-entering recipient sees the
//     old balance
//   - AdminWithdraw compares a single 64-bit word of the caller against admin
//   - admin is the null identity after initialization
//   - the directory never rehashes, so colliding identities lengthen one chain
//
// HardenedConfig turns on the strict admin check, the reentrancy guard and
// checked arithmetic, giving a correctness baseline to compare against.
//
// Entry points never return errors. Every mutation reports a contract.Outcome
// (applied or skipped, and whether arithmetic wrapped). Conditions that end a
// transaction, such as checked overflow or a full directory, are raised as host
// faults and rolled back by the host.
//
// # Quick Start
//
//	bank := testbank.New(testbank.WithAdmin(owner))
//
//	h := host.New(memory.New())
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop()
//
//	if _, err := h.Deploy(ctx, bank); err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := h.Invoke(ctx, host.Call{
//	    Contract: testbank.ContractName,
//	    Kind:     contract.KindProcedure,
//	    ID:       testbank.ProcDeposit,
//	    Caller:   alice,
//	    Input:    testbank.DepositInput{Amount: 100},
//	})
//
// # Reentrancy
//
// The host's transfer primitive may run receiver code synchronously before it
// returns. Register a receiver with host.OnReceive; it gets a Reentry handle
// that can invoke any entry point inside the same call frame.
package testbank
