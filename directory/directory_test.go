package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/testbank/directory"
	"github.com/xraph/testbank/identity"
)

func TestLookupOrCreateIsStable(t *testing.T) {
	d := directory.New()
	alice := identity.FromUint64(1)

	r1, err := d.LookupOrCreate(alice)
	require.NoError(t, err)
	r1.Balance = 42

	r2, err := d.LookupOrCreate(alice)
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.Equal(t, uint64(42), r2.Balance)
	assert.Equal(t, 1, d.Len())
}

func TestUniquenessUnderCollisions(t *testing.T) {
	// A single bucket forces every identity into one chain.
	d := directory.New(directory.WithBuckets(1))
	for round := 0; round < 3; round++ {
		for i := uint64(0); i < 50; i++ {
			_, err := d.LookupOrCreate(identity.FromUint64(i))
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 50, d.Len())

	stats := d.Stats()
	assert.Equal(t, 1, stats.Buckets)
	assert.Equal(t, 50, stats.LongestChain)

	_, cmp := d.Probe(identity.FromUint64(49))
	assert.Equal(t, 50, cmp)
}

func TestDistinctIdentitiesSharingLowWord(t *testing.T) {
	d := directory.New(directory.WithBuckets(4))
	a := identity.FromWords(7, 1, 0, 0)
	b := identity.FromWords(7, 2, 0, 0)

	ra, err := d.LookupOrCreate(a)
	require.NoError(t, err)
	rb, err := d.LookupOrCreate(b)
	require.NoError(t, err)
	assert.NotSame(t, ra, rb)
	assert.Equal(t, 2, d.Len())
}

func TestGetDoesNotCreate(t *testing.T) {
	d := directory.New()
	ghost := identity.FromUint64(99)

	rec := d.Get(ghost)
	assert.Zero(t, rec.Balance)
	assert.True(t, rec.Owner.Equal(ghost))
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.Contains(ghost))
}

func TestCapacity(t *testing.T) {
	d := directory.New(directory.WithCapacity(2))
	_, err := d.LookupOrCreate(identity.FromUint64(1))
	require.NoError(t, err)
	_, err = d.LookupOrCreate(identity.FromUint64(2))
	require.NoError(t, err)

	_, err = d.LookupOrCreate(identity.FromUint64(3))
	assert.ErrorIs(t, err, directory.ErrResourceExhausted)

	// Existing identities are still found.
	_, err = d.LookupOrCreate(identity.FromUint64(1))
	assert.NoError(t, err)
}

func TestRecordsAndLoad(t *testing.T) {
	d := directory.New(directory.WithBuckets(8))
	for i := uint64(1); i <= 5; i++ {
		r, err := d.LookupOrCreate(identity.FromUint64(6 - i))
		require.NoError(t, err)
		r.Balance = i * 10
	}

	recs := d.Records()
	require.Len(t, recs, 5)
	for i := 1; i < len(recs); i++ {
		assert.Equal(t, -1, recs[i-1].Owner.Cmp(recs[i].Owner))
	}

	other := directory.New(directory.WithBuckets(8))
	require.NoError(t, other.Load(recs))
	assert.Equal(t, recs, other.Records())

	dup := append(recs, recs[0])
	err := other.Load(dup)
	assert.ErrorIs(t, err, directory.ErrDuplicateOwner)
	assert.Equal(t, 5, other.Len())
}
