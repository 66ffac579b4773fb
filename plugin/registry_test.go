package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/identity"
	"github.com/xraph/testbank/plugin"
)

type recorder struct {
	name string

	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnInvocationApplied(_ context.Context, _ plugin.InvocationEvent) error {
	r.add("applied")
	return nil
}

func (r *recorder) OnInvocationSkipped(_ context.Context, ev plugin.InvocationEvent) error {
	r.add("skipped:" + ev.Outcome.Reason)
	return nil
}

func (r *recorder) OnArithmeticWrapped(_ context.Context, _ plugin.InvocationEvent) error {
	r.add("wrapped")
	return nil
}

func (r *recorder) OnReentered(_ context.Context, _ plugin.InvocationEvent) error {
	r.add("reentered")
	return nil
}

func (r *recorder) OnContractDeployed(_ context.Context, name string, _ identity.Identity, _ bool) error {
	r.add("deployed:" + name)
	return errors.New("ignored")
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnTransfer(ctx context.Context, _ plugin.TransferEvent) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterDuplicate(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	assert.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
	assert.Len(t, r.List(), 1)
}

func TestEmitInvocationDispatch(t *testing.T) {
	rec := &recorder{name: "rec"}
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(rec))
	ctx := context.Background()

	r.EmitInvocation(ctx, plugin.InvocationEvent{Outcome: contract.Applied(), Depth: 1})
	r.EmitInvocation(ctx, plugin.InvocationEvent{Outcome: contract.Applied().Wrap(true), Depth: 2})
	r.EmitInvocation(ctx, plugin.InvocationEvent{Outcome: contract.Skipped("reentrancy guard"), Depth: 2})

	assert.Equal(t, []string{
		"applied",
		"applied", "wrapped", "reentered",
		"skipped:reentrancy guard", "reentered",
	}, rec.seen())
}

func TestHookErrorsAreSwallowed(t *testing.T) {
	rec := &recorder{name: "rec"}
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(rec))

	r.EmitContractDeployed(context.Background(), "TestBank", identity.Null, false)
	assert.Equal(t, []string{"deployed:TestBank"}, rec.seen())
}

func TestHookTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(10 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	start := time.Now()
	r.EmitTransfer(context.Background(), plugin.TransferEvent{Amount: 1})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
