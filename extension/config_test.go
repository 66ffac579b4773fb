package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/directory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{ReceiptBatchSize: 50})

	assert.Equal(t, "/testbank", cfg.BasePath)
	assert.Equal(t, contract.DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, uint64(contract.DefaultMaxSteps), cfg.MaxSteps)
	assert.Equal(t, 50, cfg.ReceiptBatchSize)
	assert.Equal(t, time.Second, cfg.ReceiptFlushInterval)
	assert.Equal(t, directory.DefaultBuckets, cfg.Bank.Buckets)
	assert.False(t, cfg.Bank.StrictAdmin)
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{
		BasePath: "/bank",
		MaxDepth: 8,
	}
	programmatic := Config{
		BasePath:       "/ignored",
		DisableMigrate: true,
		DeployFixtures: true,
		KeepSnapshots:  3,
		Bank:           testbank.HardenedConfig(),
	}

	cfg := mergeConfigurations(file, programmatic)

	assert.Equal(t, "/bank", cfg.BasePath)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.True(t, cfg.DisableMigrate)
	assert.True(t, cfg.DeployFixtures)
	assert.Equal(t, 3, cfg.KeepSnapshots)
	assert.Equal(t, testbank.HardenedConfig(), cfg.Bank)
	assert.Equal(t, 1, cfg.ReceiptBatchSize)
}

func TestMergeConfigurationsKeepsFileBank(t *testing.T) {
	file := Config{Bank: testbank.Config{ReentrancyGuard: true}}

	cfg := mergeConfigurations(file, Config{Bank: testbank.HardenedConfig()})

	assert.True(t, cfg.Bank.ReentrancyGuard)
	assert.False(t, cfg.Bank.StrictAdmin)
	assert.Equal(t, directory.DefaultBuckets, cfg.Bank.Buckets)
}

func TestBuildHostOpts(t *testing.T) {
	e := New(WithConfig(mergeWithDefaults(Config{InvokeTimeout: time.Second})), WithFixtures())

	assert.Len(t, e.buildHostOpts(), 6)
	assert.True(t, e.config.DeployFixtures)
}
