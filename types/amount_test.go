package types_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank/types"
)

func TestWrappingAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wrapped bool
	}{
		{"small", 2, 3, 5, false},
		{"max plus zero", math.MaxUint64, 0, math.MaxUint64, false},
		{"max plus one", math.MaxUint64, 1, 0, true},
		{"max plus max", math.MaxUint64, math.MaxUint64, math.MaxUint64 - 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, wrapped := types.WrappingAdd(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wrapped, wrapped)
		})
	}
}

func TestWrappingSub(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wrapped bool
	}{
		{"exact", 100, 100, 0, false},
		{"positive", 100, 40, 60, false},
		{"below zero", 10, 50, math.MaxUint64 - 39, true},
		{"double drain", 100, 200, math.MaxUint64 - 99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, wrapped := types.WrappingSub(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wrapped, wrapped)
		})
	}
}

func TestWrappingMul(t *testing.T) {
	got, wrapped := types.WrappingMul(1<<32, 1<<32)
	assert.Zero(t, got)
	assert.True(t, wrapped)

	got, wrapped = types.WrappingMul(1000, 1000)
	assert.Equal(t, uint64(1_000_000), got)
	assert.False(t, wrapped)
}

func TestChecked(t *testing.T) {
	_, err := types.CheckedAdd(math.MaxUint64, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrOverflow))

	_, err = types.CheckedSub(0, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnderflow))

	_, err = types.CheckedMul(math.MaxUint64, 2)
	assert.ErrorIs(t, err, types.ErrOverflow)

	v, err := types.CheckedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)
}

func TestAmount(t *testing.T) {
	assert.Equal(t, types.Amount(0), types.MaxAmount.Add(1))
	assert.Equal(t, types.MaxAmount, types.Amount(0).Sub(1))
	assert.True(t, types.Amount(5).Covers(5))
	assert.False(t, types.Amount(4).Covers(5))
	assert.Equal(t, "18446744073709551615", types.MaxAmount.String())

	total, wrapped := types.Sum(types.MaxAmount, 2, 3)
	assert.Equal(t, types.Amount(4), total)
	assert.True(t, wrapped)
}
