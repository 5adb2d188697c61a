package sponsor

import (
	"bytes"
	"crypto/ed25519"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/keyservice"
)

// Admit validates the client's signed positions against the prepared group,
// co-signs the sponsor positions, and returns the full group blobs in
// position order, ready for submission.
//
// The client's transactions are never trusted: each returned position must
// re-encode to the exact bytes prepared earlier, which pins the group id,
// fees, amounts, and the absence of rekey and close fields all at once. Only
// then is the ed25519 signature checked against the sender key.
func Admit(pg *groupbuilder.PreparedGroup, userBlobs map[int][]byte, signer *keyservice.SponsorSigner) ([][]byte, error) {
	blobs := make([][]byte, len(pg.Positions))

	for _, idx := range pg.UserPositions() {
		blob, ok := userBlobs[idx]
		if !ok {
			return nil, ErrPositionMissing
		}

		var stxn types.SignedTxn
		if err := msgpack.Decode(blob, &stxn); err != nil {
			return nil, ErrPositionMutated
		}
		if !bytes.Equal(msgpack.Encode(&stxn.Txn), pg.Encoded[idx]) {
			logSecurity(pg.OpID, idx, "position bytes mutated")
			return nil, ErrPositionMutated
		}
		if stxn.AuthAddr != (types.Address{}) {
			logSecurity(pg.OpID, idx, "auth address on user position")
			return nil, ErrWrongAuthorizer
		}

		sender := stxn.Txn.Sender
		toSign := append([]byte("TX"), pg.Encoded[idx]...)
		if !ed25519.Verify(sender[:], toSign, stxn.Sig[:]) {
			logSecurity(pg.OpID, idx, "signature does not verify")
			return nil, ErrBadUserSignature
		}

		blobs[idx] = blob
	}

	signed, err := signer.SignPositions(pg.GroupID, pg.Group(), pg.SponsorPositions())
	if err != nil {
		return nil, err
	}
	for _, sp := range signed {
		blobs[sp.Index] = sp.Blob
	}

	for i, blob := range blobs {
		if blob == nil {
			logSecurity(pg.OpID, i, "unsigned position after admission")
			return nil, ErrPositionMissing
		}
	}
	return blobs, nil
}

func logSecurity(opID string, position int, reason string) {
	logger.WithFields(logger.Fields{
		"security": "admission_refused",
		"opId":     opID,
		"position": position,
		"reason":   reason,
	}).Error("signed group refused at admission")
}
