package keyservice

import (
	"crypto/ed25519"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/common"
)

// SponsorSigner holds the sponsor private key in process memory behind a
// signing-only interface. The key is never logged and never serialized.
type SponsorSigner struct {
	sk   ed25519.PrivateKey
	addr types.Address
}

func NewSponsorSigner(sk ed25519.PrivateKey) (*SponsorSigner, error) {
	acct, err := sdkcrypto.AccountFromPrivateKey(sk)
	if err != nil {
		return nil, err
	}
	return &SponsorSigner{sk: sk, addr: acct.Address}, nil
}

// NewRandomSponsorSigner generates a throwaway sponsor key. Test helper.
func NewRandomSponsorSigner() *SponsorSigner {
	acct := sdkcrypto.GenerateAccount()
	return &SponsorSigner{sk: acct.PrivateKey, addr: acct.Address}
}

func (ss *SponsorSigner) Address() types.Address {
	return ss.addr
}

// SignedPosition is one sponsor signature over a group position.
type SignedPosition struct {
	Index int
	TxID  string
	Blob  []byte // msgpack-encoded SignedTxn
}

// SignPositions signs the listed positions of group. It refuses outright
// when the recomputed group id differs from groupID, when any listed
// position is not sent by the sponsor, or when any listed position rekeys or
// closes an account or asset holding.
func (ss *SponsorSigner) SignPositions(groupID types.Digest, group []types.Transaction, positions []int) ([]SignedPosition, error) {
	recomputed, err := common.RecomputeGroupID(group)
	if err != nil {
		return nil, err
	}
	if recomputed != groupID {
		ss.refuse("group id mismatch")
		return nil, ErrSignerRefused
	}

	for _, idx := range positions {
		if idx < 0 || idx >= len(group) {
			ss.refuse("position out of range")
			return nil, ErrSignerRefused
		}
		tx := group[idx]
		if tx.Sender != ss.addr {
			ss.refuse("position not owned by sponsor")
			return nil, ErrSignerRefused
		}
		if !common.IsZeroAddress(tx.RekeyTo) {
			ss.refuse("rekey on sponsor position")
			return nil, ErrSignerRefused
		}
		if !common.IsZeroAddress(tx.CloseRemainderTo) || !common.IsZeroAddress(tx.AssetCloseTo) {
			ss.refuse("close field on sponsor position")
			return nil, ErrSignerRefused
		}
	}

	out := make([]SignedPosition, 0, len(positions))
	for _, idx := range positions {
		txid, blob, err := sdkcrypto.SignTransaction(ss.sk, group[idx])
		if err != nil {
			return nil, err
		}
		out = append(out, SignedPosition{Index: idx, TxID: txid, Blob: blob})
	}
	return out, nil
}

func (ss *SponsorSigner) refuse(reason string) {
	logger.WithFields(logger.Fields{
		"security": "signer_refused",
		"reason":   reason,
		"sponsor":  ss.addr.String(),
	}).Error("sponsor signer refused to sign")
}
