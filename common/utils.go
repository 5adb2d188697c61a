package common

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// MinFee is the flat minimum fee per transaction in microalgos. The builder
// sizes sponsor fees in multiples of it.
const MinFee uint64 = 1000

// MicroAlgosPerAlgo for readability in configs and tests.
const MicroAlgosPerAlgo uint64 = 1_000_000

// IsZeroAddress reports whether addr is the all-zero address.
func IsZeroAddress(addr types.Address) bool {
	return addr == types.Address{}
}

// MethodSelector computes the 4-byte ARC-4 selector for a method signature,
// e.g. MethodSelector("pay(axfer,account,account,byte[])void").
func MethodSelector(signature string) []byte {
	sum := sha512.Sum512_256([]byte(signature))
	return sum[:4]
}

// RandBytes32 returns 32 random bytes. Test fixture helper.
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return b
}

// RandAddress returns a random (unfunded) account address. Test fixture helper.
func RandAddress() types.Address {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	var addr types.Address
	copy(addr[:], pub)
	return addr
}
