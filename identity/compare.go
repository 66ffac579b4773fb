package identity

import "fmt"

// Comparator decides whether two identities refer to the same holder.
type Comparator func(a, b Identity) bool

// Strict compares the full 256-bit value.
func Strict(a, b Identity) bool {
	return a.Equal(b)
}

// WordComparator compares only word i of each identity. Distinct identities
// sharing that word compare equal, which makes it unsuitable for access
// control; it exists to reproduce projected-key checks.
func WordComparator(i int) Comparator {
	if i < 0 || i >= Words {
		panic(fmt.Sprintf("identity: word index %d out of range", i))
	}
	return func(a, b Identity) bool {
		return a.v[i] == b.v[i]
	}
}
