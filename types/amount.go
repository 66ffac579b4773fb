// Package types provides the arithmetic and timestamp primitives shared by
// the bank contract, the host and the stores.
package types

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
)

// Errors returned by the checked arithmetic helpers.
var (
	ErrOverflow  = errors.New("amount: overflow")
	ErrUnderflow = errors.New("amount: underflow")
)

// Amount is an unsigned 64-bit balance or transfer value.
// All arithmetic is modulo 2^64 unless one of the Checked helpers is used.
type Amount uint64

// MaxAmount is the largest representable Amount.
const MaxAmount = Amount(^uint64(0))

// WrappingAdd returns a + b mod 2^64 and whether the sum wrapped.
func WrappingAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry != 0
}

// WrappingSub returns a - b mod 2^64 and whether the difference wrapped.
func WrappingSub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow != 0
}

// WrappingMul returns a * b mod 2^64 and whether the product wrapped.
func WrappingMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi != 0
}

// CheckedAdd returns a + b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, wrapped := WrappingAdd(a, b)
	if wrapped {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// CheckedSub returns a - b or ErrUnderflow.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, wrapped := WrappingSub(a, b)
	if wrapped {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return diff, nil
}

// CheckedMul returns a * b or ErrOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	prod, wrapped := WrappingMul(a, b)
	if wrapped {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return prod, nil
}

// Add returns a + b mod 2^64.
func (a Amount) Add(b Amount) Amount {
	sum, _ := WrappingAdd(uint64(a), uint64(b))
	return Amount(sum)
}

// Sub returns a - b mod 2^64.
func (a Amount) Sub(b Amount) Amount {
	diff, _ := WrappingSub(uint64(a), uint64(b))
	return Amount(diff)
}

// Covers reports whether a is at least b.
func (a Amount) Covers(b Amount) bool {
	return a >= b
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a == 0
}

// Uint64 returns the raw value.
func (a Amount) Uint64() uint64 {
	return uint64(a)
}

// String returns the decimal representation.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// Sum adds amounts with wrapping semantics and reports whether any step wrapped.
func Sum(amounts ...Amount) (Amount, bool) {
	var (
		total   uint64
		wrapped bool
	)
	for _, a := range amounts {
		var w bool
		total, w = WrappingAdd(total, uint64(a))
		wrapped = wrapped || w
	}
	return Amount(total), wrapped
}
