package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{}, &buf)
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("deployed", "contract", "TestBank")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "deployed", rec["msg"])
	assert.Equal(t, "TestBank", rec["contract"])
	assert.Equal(t, "INFO", rec["level"])
}

func TestNewLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Config{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("skipped", "reason", "insufficient balance")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg=skipped`)
	assert.Contains(t, out, `reason="insufficient balance"`)
}

func TestNewErrors(t *testing.T) {
	_, _, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(Config{Format: "xml"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testbankd.log")
	var buf bytes.Buffer

	logger, closeFn, err := New(Config{File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)
	logger.Info("to file")
	require.NoError(t, closeFn())

	assert.Zero(t, buf.Len())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}
