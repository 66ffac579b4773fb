package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/fixtures"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/store/memory"
)

func value(t *testing.T, metric any) float64 {
	t.Helper()
	c, ok := metric.(prometheus.Collector)
	require.True(t, ok)
	return testutil.ToFloat64(c)
}

func TestMetricsThroughHost(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := NewPrometheusFactory(reg)
	metrics := NewMetricsExtension(factory)

	ctx := context.Background()
	h := host.New(memory.New(), host.WithPlugin(metrics))
	_, err := h.Deploy(ctx, testbank.New())
	require.NoError(t, err)
	_, err = h.Deploy(ctx, fixtures.NewHM25())
	require.NoError(t, err)

	alice := identity.FromUint64(7)
	bob := identity.FromUint64(8)
	carol := identity.FromUint64(9)

	_, err = h.Invoke(ctx, host.Call{
		Contract: testbank.ContractName,
		Kind:     contract.KindProcedure,
		ID:       testbank.ProcTransfer,
		Caller:   alice,
		Input:    testbank.TransferInput{Recipient: bob, Amount: 1},
	})
	require.NoError(t, err)

	_, err = h.Invoke(ctx, host.Call{
		Contract: testbank.ContractName,
		Kind:     contract.KindProcedure,
		ID:       testbank.ProcWithdraw,
		Caller:   carol,
		Input:    testbank.WithdrawInput{Amount: 1},
	})
	require.NoError(t, err)

	_, err = h.Invoke(ctx, host.Call{Contract: fixtures.HM25Name, Kind: contract.KindProcedure, ID: 3})
	require.Error(t, err)

	assert.InDelta(t, 2, value(t, metrics.ContractsDeployed), 0)
	assert.InDelta(t, 1, value(t, metrics.InvocationsApplied), 0)
	assert.InDelta(t, 1, value(t, metrics.InvocationsSkipped), 0)
	assert.InDelta(t, 1, value(t, metrics.ArithmeticWrapped), 0)
	assert.InDelta(t, 2, value(t, metrics.TransactionsCommitted), 0)
	assert.InDelta(t, 1, value(t, metrics.TransactionsAborted), 0)
	assert.InDelta(t, 1, value(t, factory.Counter("testbank.fault.divide_by_zero")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["testbank_invocation_wrapped_total"])
	assert.True(t, names["testbank_transaction_steps"])
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheusFactory(reg)
	b := NewPrometheusFactory(reg)

	c1 := a.Counter("testbank.x")
	c2 := b.Counter("testbank.x")
	c1.Inc()
	c2.Inc()

	assert.InDelta(t, 2, value(t, a.Counter("testbank.x")), 0)
	assert.Equal(t, "testbank_x_y", metricName("testbank.x-y"))
}
