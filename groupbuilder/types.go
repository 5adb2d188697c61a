package groupbuilder

import (
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

// PositionSpec is one transaction of a prepared group together with who must
// sign it.
type PositionSpec struct {
	Index  int
	Signer common.SignerRole
	Txn    types.Transaction
}

// PreparedGroup is the immutable output of one prepare call. Once the group
// id is stamped, any field change invalidates the group; Encoded keeps the
// canonical bytes of every position for byte-exact comparison at admission.
type PreparedGroup struct {
	OpID      string
	OpKind    common.OpKind
	GroupID   types.Digest
	Positions []PositionSpec
	Encoded   [][]byte

	// SponsorCost is everything the sponsor spends if the group commits:
	// sponsor position fees plus sponsor payment amounts, in microalgos.
	SponsorCost uint64

	FirstValid uint64
	LastValid  uint64
	ExpiresAt  time.Time
}

// SponsorPositions lists the indexes the sponsor must sign.
func (pg *PreparedGroup) SponsorPositions() []int {
	return pg.positionsBySigner(common.SignerSponsor)
}

// UserPositions lists the indexes the client must sign.
func (pg *PreparedGroup) UserPositions() []int {
	return pg.positionsBySigner(common.SignerUser)
}

func (pg *PreparedGroup) positionsBySigner(role common.SignerRole) []int {
	var out []int
	for _, p := range pg.Positions {
		if p.Signer == role {
			out = append(out, p.Index)
		}
	}
	return out
}

// Group returns the bare transactions in position order.
func (pg *PreparedGroup) Group() []types.Transaction {
	out := make([]types.Transaction, len(pg.Positions))
	for i, p := range pg.Positions {
		out[i] = p.Txn
	}
	return out
}

// Expired reports whether the client kept the group past its TTL.
func (pg *PreparedGroup) Expired(now time.Time) bool {
	return now.After(pg.ExpiresAt)
}

// Request carries one operation into the builder. Params is a tagged-variant
// bag: each OpKind reads the fields its recipe needs and ignores the rest.
type Request struct {
	OpKind       common.OpKind
	Actor        string
	ActorAddress types.Address
	Params       Params
}

// Params holds the union of per-operation parameters.
type Params struct {
	Receiver types.Address // transfer/pay destination
	Amount   uint64
	AssetID  uint64
	Memo     string

	// p2p escrow
	TradeID    []byte
	Seller     types.Address
	Buyer      types.Address
	Arbitrator types.Address

	// invite
	ClaimCode []byte // 32-byte box key
	Metadata  []byte // 8-byte opaque metadata
	Intended  types.Address
}

// HoldingSource answers asset holding queries: whether an address is opted
// into an asset, and how much of it the address holds. The router wires the
// ledger-backed implementation.
type HoldingSource interface {
	OptedIn(addr types.Address, assetID uint64) (bool, error)
	AssetBalance(addr types.Address, assetID uint64) (uint64, error)
}
