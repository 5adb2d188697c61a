package common

import (
	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// RecomputeGroupID hashes the group with every Group field cleared, the way
// the group id was computed when the group was assembled.
func RecomputeGroupID(group []types.Transaction) (types.Digest, error) {
	bare := make([]types.Transaction, len(group))
	for i, tx := range group {
		tx.Group = types.Digest{}
		bare[i] = tx
	}
	return sdkcrypto.ComputeGroupID(bare)
}

// RawTransactionBytesToSign is the domain-separated canonical encoding an
// ed25519 signature over a transaction covers.
func RawTransactionBytesToSign(tx types.Transaction) []byte {
	encoded := msgpack.Encode(&tx)
	return append([]byte("TX"), encoded...)
}
