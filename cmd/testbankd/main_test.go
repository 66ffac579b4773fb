package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank/contract"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/identity"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestEntryPointsCmd(t *testing.T) {
	out, err := run(t, "entrypoints")
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "Deposit")
	assert.Contains(t, out, "{recipient identity.Identity, amount uint64}")

	out, err = run(t, "entrypoints", "HM25", "--json")
	require.NoError(t, err)
	var eps []contract.EntryPoint
	require.NoError(t, json.Unmarshal([]byte(out), &eps))
	assert.Len(t, eps, 10)

	_, err = run(t, "entrypoints", "Nope")
	assert.ErrorIs(t, err, host.ErrContractNotFound)
}

type invokeOutput struct {
	Output  map[string]uint64 `json:"output"`
	Outcome contract.Outcome  `json:"outcome"`
	Receipt struct {
		Status string `json:"status"`
		Fault  string `json:"fault"`
	} `json:"receipt"`
}

func TestInvokeCmd(t *testing.T) {
	out, err := run(t, "invoke", "Deposit",
		"--caller", "0x01", "--fund", "100", "--value", "100", "--input", `{"amount":100}`)
	require.NoError(t, err)

	var res invokeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, uint64(100), res.Output["newBalance"])
	assert.True(t, res.Outcome.IsApplied())
	assert.Equal(t, "committed", res.Receipt.Status)
}

func TestInvokeCmdFault(t *testing.T) {
	out, err := run(t, "invoke", "func03", "--contract", "HM25", "--input", `{"input3":0}`)
	require.ErrorIs(t, err, host.ErrExecutionFault)

	var res invokeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "aborted", res.Receipt.Status)
	assert.Equal(t, string(contract.FaultDivideByZero), res.Receipt.Fault)
}

func TestInvokeCmdErrors(t *testing.T) {
	_, err := run(t, "invoke", "Deposit", "--input", "{")
	assert.ErrorIs(t, err, host.ErrInvalidInput)

	_, err = run(t, "invoke", "Deposit", "--caller", "0xzz")
	assert.ErrorIs(t, err, host.ErrInvalidInput)

	_, err = run(t, "invoke", "Nope")
	assert.ErrorIs(t, err, host.ErrEntryPointNotFound)
}

func TestInvokeCmdPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "testbankd.yaml")
	cfg := "store:\n  driver: leveldb\n  path: " + filepath.Join(dir, "db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	_, err := run(t, "-c", cfgPath, "invoke", "Deposit", "--caller", "0x01", "--input", `{"amount":7}`)
	require.NoError(t, err)

	out, err := run(t, "-c", cfgPath, "invoke", "GetBalance", "--input", `{"user":"`+identity.FromUint64(1).String()+`"}`)
	require.NoError(t, err)

	var res invokeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, uint64(7), res.Output["balance"])
}

func TestParseIdentity(t *testing.T) {
	id, err := parseIdentity("0x2a")
	require.NoError(t, err)
	assert.Equal(t, identity.FromUint64(42), id)

	full := identity.FromWords(1, 2, 3, 4)
	id, err = parseIdentity(full.String())
	require.NoError(t, err)
	assert.Equal(t, full, id)

	_, err = parseIdentity("")
	assert.Error(t, err)
}
