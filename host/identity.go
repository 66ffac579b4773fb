package host

import (
	"encoding/hex"

	"lukechampine.com/blake3"

	"github.com/xraph/testbank/identity"
)

const identityDomain = "testbank/contract:"

// ContractIdentity derives the identity of a deployed contract from its name.
func ContractIdentity(name string) identity.Identity {
	return identity.FromBytes(blake3.Sum256([]byte(identityDomain + name)))
}

// Checksum is the hex BLAKE3 digest of a snapshot state.
func Checksum(state []byte) string {
	sum := blake3.Sum256(state)
	return hex.EncodeToString(sum[:])
}
