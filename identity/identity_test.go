package identity_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank/identity"
)

func TestParseRoundTrip(t *testing.T) {
	id := identity.FromWords(1, 2, 3, 4)

	parsed, err := identity.Parse(id.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))

	// without prefix
	parsed, err = identity.Parse(strings.TrimPrefix(id.String(), "0x"))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "0x1234"},
		{"not hex", "0x" + strings.Repeat("zz", 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestWordOrder(t *testing.T) {
	id := identity.FromWords(11, 22, 33, 44)
	assert.Equal(t, uint64(11), id.Word(0))
	assert.Equal(t, uint64(44), id.Word(3))

	b := id.Bytes()
	// big-endian: the high-order word occupies the first eight bytes
	assert.Equal(t, byte(44), b[7])
	assert.Equal(t, byte(11), b[31])
	assert.True(t, identity.FromBytes(b).Equal(id))
}

func TestNull(t *testing.T) {
	assert.True(t, identity.Null.IsNull())
	assert.False(t, identity.FromUint64(1).IsNull())
	assert.Equal(t, "0x"+strings.Repeat("0", 64), identity.Null.String())
}

func TestCmp(t *testing.T) {
	low := identity.FromWords(9, 0, 0, 0)
	high := identity.FromWords(0, 0, 0, 1)
	assert.Equal(t, -1, low.Cmp(high))
	assert.Equal(t, 1, high.Cmp(low))
	assert.Equal(t, 0, low.Cmp(low))
}

func TestComparators(t *testing.T) {
	a := identity.FromWords(7, 1, 1, 1)
	b := identity.FromWords(7, 2, 2, 2)

	assert.False(t, identity.Strict(a, b))
	assert.True(t, identity.Strict(a, a))

	weak := identity.WordComparator(0)
	assert.True(t, weak(a, b), "identities sharing word 0 must pass the projected check")
	assert.False(t, identity.WordComparator(1)(a, b))

	assert.Panics(t, func() { identity.WordComparator(4) })
}

func TestJSON(t *testing.T) {
	type payload struct {
		User identity.Identity `json:"user"`
	}
	in := payload{User: identity.FromWords(5, 0, 0, 9)}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.User.Equal(in.User))
}

func TestMapKey(t *testing.T) {
	m := map[identity.Identity]int{}
	m[identity.FromUint64(1)]++
	m[identity.FromUint64(1)]++
	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[identity.FromUint64(1)])
}
