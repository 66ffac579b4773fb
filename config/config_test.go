package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/identity"
)

const yamlDoc = `
listen: ":9090"
log:
  level: debug
  file: /var/log/testbankd.log
store:
  driver: leveldb
  path: /var/lib/testbank
host:
  max_depth: 8
  invoke_timeout: 2s
  keep_snapshots: 5
bank:
  strict_admin: true
  admin: "0x0000000000000000000000000000000000000000000000000000000000000007"
  buckets: 64
fixtures: true
`

const tomlDoc = `
listen = ":9090"
fixtures = true

[log]
level = "debug"
file = "/var/log/testbankd.log"

[store]
driver = "leveldb"
path = "/var/lib/testbank"

[host]
max_depth = 8
invoke_timeout = "2s"
keep_snapshots = 5

[bank]
strict_admin = true
admin = "0x0000000000000000000000000000000000000000000000000000000000000007"
buckets = 64
`

func assertParsed(t *testing.T, cfg Config) {
	t.Helper()
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/log/testbankd.log", cfg.Log.File)
	assert.Equal(t, DriverLevelDB, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Host.MaxDepth)
	assert.Equal(t, 2*time.Second, cfg.Host.InvokeTimeout)
	assert.Equal(t, 5, cfg.Host.KeepSnapshots)
	assert.Equal(t, 1, cfg.Host.ReceiptBatchSize)
	assert.True(t, cfg.Bank.StrictAdmin)
	assert.False(t, cfg.Bank.ReentrancyGuard)
	assert.Equal(t, identity.FromUint64(7), cfg.Bank.Admin)
	assert.Equal(t, 64, cfg.Bank.Buckets)
	assert.True(t, cfg.Fixtures)
}

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(yamlDoc))
	require.NoError(t, err)
	assertParsed(t, cfg)
}

func TestParseTOML(t *testing.T) {
	cfg, err := ParseTOML([]byte(tomlDoc))
	require.NoError(t, err)
	assertParsed(t, cfg)
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("listen: \":1\"\nbogus: 1\n"))
	assert.Error(t, err)

	_, err = ParseTOML([]byte("bogus = 1\n"))
	assert.ErrorIs(t, err, ErrUnknownKeys)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
		{"leveldb without path", func(c *Config) { c.Store.Driver = DriverLevelDB }, "store.path"},
		{"negative depth", func(c *Config) { c.Host.MaxDepth = -1 }, "host.max_depth"},
		{"bank admin word", func(c *Config) { c.Bank.AdminWord = 4 }, "admin_word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, testbank.ErrInvalidConfig)

			var ve testbank.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "testbankd.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDoc), 0o600))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assertParsed(t, cfg)

	tomlPath := filepath.Join(dir, "testbankd.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlDoc), 0o600))
	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	assertParsed(t, cfg)

	jsonPath := filepath.Join(dir, "testbankd.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	_, err = Load(jsonPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
