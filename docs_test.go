package testbank_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/store/memory"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation behave as described.
func TestDocumentationExamples(t *testing.T) {
	owner := identity.FromWords(0x0e, 0x0e, 0x0e, 0x0e)
	holder := identity.FromWords(0xa1, 0, 0, 0)

	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()
		bank := testbank.New(testbank.WithAdmin(owner), testbank.WithLogger(slog.Default()))

		h := host.New(memory.New())
		require.NoError(t, h.Start(ctx))
		defer h.Stop()

		_, err := h.Deploy(ctx, bank)
		require.NoError(t, err)

		res, err := h.Invoke(ctx, host.Call{
			Contract: testbank.ContractName,
			Kind:     contract.KindProcedure,
			ID:       testbank.ProcDeposit,
			Caller:   holder,
			Input:    testbank.DepositInput{Amount: 100},
		})
		require.NoError(t, err)
		assert.Equal(t, testbank.DepositOutput{NewBalance: 100}, res.Output)
		assert.Equal(t, owner, bank.State().Admin)
	})

	t.Run("ReentrancyExample", func(t *testing.T) {
		ctx := context.Background()
		h := host.New(memory.New())
		require.NoError(t, h.Start(ctx))
		defer h.Stop()

		_, err := h.Deploy(ctx, testbank.New())
		require.NoError(t, err)
		require.NoError(t, h.Fund(host.ContractIdentity(testbank.ContractName), 1000))

		reentered := false
		h.OnReceive(holder, func(r *host.Reentry, _ identity.Identity, _ uint64) {
			if reentered {
				return
			}
			reentered = true
			_, err := r.Invoke(host.Call{
				Contract: testbank.ContractName,
				Name:     "Withdraw",
				Input:    testbank.WithdrawInput{Amount: 100},
			})
			assert.NoError(t, err)
		})

		_, err = h.Invoke(ctx, host.Call{Contract: testbank.ContractName, Name: "Deposit", Caller: holder, Input: testbank.DepositInput{Amount: 100}})
		require.NoError(t, err)
		res, err := h.Invoke(ctx, host.Call{Contract: testbank.ContractName, Name: "Withdraw", Caller: holder, Input: testbank.WithdrawInput{Amount: 100}})
		require.NoError(t, err)

		assert.True(t, reentered)
		assert.True(t, res.Receipt.Reentered())
		assert.Equal(t, uint64(200), res.Receipt.Paid())
	})
}
