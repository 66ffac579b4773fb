// Package directory implements the account directory: a fixed array of hash
// buckets, each holding a chain of account records that is searched linearly.
//
// The bucket count never changes after construction. Identities that hash to
// the same bucket lengthen its chain, so lookup cost grows with the number of
// colliding identities.
//
// A Directory is not safe for concurrent use. The host serializes every
// invocation of the contract that owns it.
package directory

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/xraph/testbank/identity"
)

// DefaultBuckets is the bucket count used when none is configured.
const DefaultBuckets = 1024

var (
	// ErrResourceExhausted is returned by LookupOrCreate when the configured
	// capacity has been reached.
	ErrResourceExhausted = errors.New("directory: capacity exhausted")

	// ErrDuplicateOwner is returned by Load when two records share an owner.
	ErrDuplicateOwner = errors.New("directory: duplicate owner")
)

// Record is the per-identity account entry.
type Record struct {
	Owner   identity.Identity `json:"owner"`
	Balance uint64            `json:"balance"`
}

// Stats describes the shape of the directory.
type Stats struct {
	Buckets      int `json:"buckets"`
	UsedBuckets  int `json:"used_buckets"`
	Records      int `json:"records"`
	LongestChain int `json:"longest_chain"`
}

// Directory maps identities to account records.
type Directory struct {
	buckets  [][]*Record
	count    int
	capacity int
}

// Option configures a Directory.
type Option func(*Directory)

// WithBuckets sets the number of hash buckets. Values below 1 are ignored.
func WithBuckets(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.buckets = make([][]*Record, n)
		}
	}
}

// WithCapacity limits the number of records. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(d *Directory) {
		if n >= 0 {
			d.capacity = n
		}
	}
}

// New creates an empty directory.
func New(opts ...Option) *Directory {
	d := &Directory{buckets: make([][]*Record, DefaultBuckets)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bucket returns the bucket index id hashes to.
func (d *Directory) Bucket(id identity.Identity) int {
	b := id.Bytes()
	return int(xxhash.Sum64(b[:]) % uint64(len(d.buckets)))
}

func (d *Directory) find(id identity.Identity) (bucket, pos int) {
	bucket = d.Bucket(id)
	for i, rec := range d.buckets[bucket] {
		if rec.Owner.Equal(id) {
			return bucket, i
		}
	}
	return bucket, -1
}

// LookupOrCreate returns the record for id, inserting a zero-balance record
// when none exists. The returned pointer stays valid and is returned again for
// the same identity for the lifetime of the directory.
func (d *Directory) LookupOrCreate(id identity.Identity) (*Record, error) {
	bucket, pos := d.find(id)
	if pos >= 0 {
		return d.buckets[bucket][pos], nil
	}
	if d.capacity > 0 && d.count >= d.capacity {
		return nil, fmt.Errorf("%w: %d records", ErrResourceExhausted, d.count)
	}

	rec := &Record{Owner: id}
	d.buckets[bucket] = append(d.buckets[bucket], rec)
	d.count++
	return rec, nil
}

// Get returns a copy of the record for id without inserting anything.
// Unknown identities yield a zero-balance record.
func (d *Directory) Get(id identity.Identity) Record {
	bucket, pos := d.find(id)
	if pos < 0 {
		return Record{Owner: id}
	}
	return *d.buckets[bucket][pos]
}

// Contains reports whether id has a record.
func (d *Directory) Contains(id identity.Identity) bool {
	_, pos := d.find(id)
	return pos >= 0
}

// Probe returns the bucket id hashes to and the number of records that a
// lookup of id compares against.
func (d *Directory) Probe(id identity.Identity) (bucket, comparisons int) {
	bucket, pos := d.find(id)
	if pos < 0 {
		return bucket, len(d.buckets[bucket])
	}
	return bucket, pos + 1
}

// Len returns the number of records.
func (d *Directory) Len() int {
	return d.count
}

// Capacity returns the configured record limit (0 = unbounded).
func (d *Directory) Capacity() int {
	return d.capacity
}

// Records returns copies of all records ordered by owner.
func (d *Directory) Records() []Record {
	out := make([]Record, 0, d.count)
	for _, chain := range d.buckets {
		for _, rec := range chain {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := out[i].Owner.Bytes(), out[j].Owner.Bytes()
		return bytes.Compare(bi[:], bj[:]) < 0
	})
	return out
}

// Load replaces the contents of the directory with records.
func (d *Directory) Load(records []Record) error {
	fresh := &Directory{
		buckets:  make([][]*Record, len(d.buckets)),
		capacity: d.capacity,
	}
	for _, r := range records {
		bucket, pos := fresh.find(r.Owner)
		if pos >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateOwner, r.Owner)
		}
		rec := r
		fresh.buckets[bucket] = append(fresh.buckets[bucket], &rec)
		fresh.count++
	}
	*d = *fresh
	return nil
}

// Stats returns the current bucket utilisation.
func (d *Directory) Stats() Stats {
	s := Stats{Buckets: len(d.buckets), Records: d.count}
	for _, chain := range d.buckets {
		if len(chain) > 0 {
			s.UsedBuckets++
		}
		if len(chain) > s.LongestChain {
			s.LongestChain = len(chain)
		}
	}
	return s
}
