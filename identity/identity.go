// Package identity defines the opaque account-holder identity used by contracts
// and the host.
//
// An Identity is a 256-bit value stored as four little-endian 64-bit words.
// Word 0 is the low-order word. Equality is always full-value equality; partial
// comparisons are expressed as an explicit Comparator and never as the type's
// own equality.
package identity

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Words is the number of 64-bit words in an Identity.
const Words = 4

const hexLength = 64

// Identity identifies an account holder or a deployed contract.
type Identity struct {
	v uint256.Int
}

// Null is the all-zero identity.
var Null Identity

// FromWords builds an identity from its words, low-order first.
func FromWords(w0, w1, w2, w3 uint64) Identity {
	return Identity{v: uint256.Int{w0, w1, w2, w3}}
}

// FromUint64 builds an identity whose low-order word is v.
func FromUint64(v uint64) Identity {
	return FromWords(v, 0, 0, 0)
}

// FromBytes builds an identity from its big-endian byte form.
func FromBytes(b [32]byte) Identity {
	var id Identity
	id.v.SetBytes32(b[:])
	return id
}

// Parse decodes a 64 character hex string, with or without a 0x prefix.
func Parse(s string) (Identity, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != hexLength {
		return Null, fmt.Errorf("identity: parse %q: want %d hex chars, got %d", s, hexLength, len(trimmed))
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Null, fmt.Errorf("identity: parse %q: %w", s, err)
	}
	var b [32]byte
	copy(b[:], raw)
	return FromBytes(b), nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) Identity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Word returns word i, where 0 is the low-order word.
func (id Identity) Word(i int) uint64 {
	if i < 0 || i >= Words {
		panic(fmt.Sprintf("identity: word index %d out of range", i))
	}
	return id.v[i]
}

// Bytes returns the big-endian byte form.
func (id Identity) Bytes() [32]byte {
	return id.v.Bytes32()
}

// Equal reports full-value equality.
func (id Identity) Equal(other Identity) bool {
	return id.v.Eq(&other.v)
}

// Cmp orders identities as unsigned 256-bit integers.
func (id Identity) Cmp(other Identity) int {
	return id.v.Cmp(&other.v)
}

// IsNull reports whether id is the all-zero identity.
func (id Identity) IsNull() bool {
	return id.v.IsZero()
}

// String returns the 0x-prefixed, zero-padded hex form.
func (id Identity) String() string {
	b := id.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
