package groupbuilder

import (
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"

	"github.com/caesar4321/confio-go/common"
)

func TestBuildTransfer(t *testing.T) {
	sponsor := common.RandAddress()
	b := simBuilder(sponsor, nil)
	user := common.RandAddress()
	receiver := common.RandAddress()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Receiver: receiver, Amount: 250_000, AssetID: simStableID},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, 2, len(pg.Positions))

	// sponsor bump covers both positions, user pays nothing
	assert.Equal(t, []int{0}, pg.SponsorPositions())
	assert.Equal(t, []int{1}, pg.UserPositions())
	assert.Equal(t, types.MicroAlgos(2*common.MinFee), pg.Positions[0].Txn.Fee)
	assert.Equal(t, types.MicroAlgos(0), pg.Positions[1].Txn.Fee)
	assert.Equal(t, sponsor, pg.Positions[0].Txn.Sender)
	assert.Equal(t, user, pg.Positions[1].Txn.Sender)
	assert.Equal(t, receiver, pg.Positions[1].Txn.AssetReceiver)
	assert.Equal(t, uint64(2*common.MinFee), pg.SponsorCost)
}

func TestBuildTransferValidation(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	user := common.RandAddress()

	_, err := b.Build("op-1", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Receiver: common.RandAddress(), Amount: 0, AssetID: simStableID},
	}, simParams())
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = b.Build("op-2", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Receiver: common.RandAddress(), Amount: 10, AssetID: 99999},
	}, simParams())
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = b.Build("op-3", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Amount: 10, AssetID: simStableID},
	}, simParams())
	assert.ErrorIs(t, err, ErrMissingParty)
}

func TestBuildTransferRequiresOptIn(t *testing.T) {
	user := common.RandAddress()
	receiver := common.RandAddress()
	holdings := &simHoldings{optIns: map[types.Address]map[uint64]bool{
		user: {simStableID: true},
		// receiver holds nothing
	}}
	b := simBuilder(common.RandAddress(), holdings)

	_, err := b.Build("op-1", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Receiver: receiver, Amount: 10, AssetID: simStableID},
	}, simParams())
	assert.ErrorIs(t, err, ErrNotOptedIn)
}

func TestBuildTransferRequiresFunds(t *testing.T) {
	user := common.RandAddress()
	receiver := common.RandAddress()
	holdings := &simHoldings{balances: map[types.Address]map[uint64]uint64{
		user: {simStableID: 99},
	}}
	b := simBuilder(common.RandAddress(), holdings)

	_, err := b.Build("op-1", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Receiver: receiver, Amount: 100, AssetID: simStableID},
	}, simParams())
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// the whole holding is spendable
	_, err = b.Build("op-2", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user,
		Params:       Params{Receiver: receiver, Amount: 99, AssetID: simStableID},
	}, simParams())
	assert.NoError(t, err)
}

func TestEscrowDepositRequiresFunds(t *testing.T) {
	user := common.RandAddress()
	holdings := &simHoldings{balances: map[types.Address]map[uint64]uint64{
		user: {simStableID: 400},
	}}
	b := simBuilder(common.RandAddress(), holdings)

	_, err := b.Build("op-1", &Request{
		OpKind:       common.OpEscrowDeposit,
		ActorAddress: user,
		Params:       Params{TradeID: []byte("trade-0001"), Amount: 500, AssetID: simStableID},
	}, simParams())
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestGroupIDStampedOnAllPositions(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpMintCollateral,
		ActorAddress: common.RandAddress(),
		Params:       Params{Amount: 1_000_000},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, 3, len(pg.Positions))

	var zero types.Digest
	assert.NotEqual(t, zero, pg.GroupID)
	for _, p := range pg.Positions {
		assert.Equal(t, pg.GroupID, p.Txn.Group)
	}

	// stamped group id matches a recomputation over the bare transactions
	gid, err := common.RecomputeGroupID(pg.Group())
	assert.NoError(t, err)
	assert.Equal(t, pg.GroupID, gid)
}

func TestMintFeeArithmetic(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpMintCollateral,
		ActorAddress: common.RandAddress(),
		Params:       Params{Amount: 1_000_000},
	}, simParams())
	assert.NoError(t, err)

	// 3 outer + 2 inner positions, all paid by the sponsor
	var total uint64
	for _, p := range pg.Positions {
		total += uint64(p.Txn.Fee)
	}
	assert.Equal(t, 5*common.MinFee, total)
	assert.Equal(t, types.MicroAlgos(0), pg.Positions[1].Txn.Fee)
	assert.Equal(t, total, pg.SponsorCost)
}

func TestEscrowCreateFundsBoxMBR(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	tradeID := []byte("trade-0001")

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpEscrowCreate,
		ActorAddress: common.RandAddress(),
		Params: Params{
			TradeID: tradeID,
			Amount:  500_000,
			AssetID: simStableID,
			Buyer:   common.RandAddress(),
		},
	}, simParams())
	assert.NoError(t, err)

	want := BoxMBR(len(tradeID), tradeBoxValueLen) + b.cfg.BoxMBRHeadroom
	assert.Equal(t, types.MicroAlgos(want), pg.Positions[0].Txn.Amount)
	// MBR payment lands on the escrow app address
	assert.Equal(t, b.apps[common.AppP2PEscrow].AppAddress, pg.Positions[0].Txn.Receiver)
	// sponsor pays the MBR on top of the fees
	assert.Equal(t, want+2*common.MinFee, pg.SponsorCost)

	// creation is sponsor-only, nothing for the client to sign
	assert.Equal(t, []int{0, 1}, pg.SponsorPositions())
	assert.Empty(t, pg.UserPositions())

	call := pg.Positions[1].Txn
	assert.Equal(t, types.ApplicationCallTx, call.Type)
	assert.Equal(t, tradeID, call.BoxReferences[0].Name)
}

func TestEscrowCreateArgsNameTheParties(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	seller := common.RandAddress()
	buyer := common.RandAddress()
	tradeID := []byte("trade-0002")

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpEscrowCreate,
		ActorAddress: seller,
		Params: Params{
			TradeID: tradeID,
			Amount:  500_000,
			AssetID: simStableID,
			Buyer:   buyer,
		},
	}, simParams())
	assert.NoError(t, err)

	// args after the selector: trade id, seller, buyer, amount
	args := pg.Positions[1].Txn.ApplicationArgs
	assert.Equal(t, 5, len(args))
	assert.Equal(t, tradeID, args[1])
	assert.Equal(t, seller[:], args[2])
	assert.Equal(t, buyer[:], args[3])
	assert.Equal(t, uint64Arg(500_000), args[4])
}

func TestEscrowTerminalCoversInnerFees(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)

	for _, op := range []common.OpKind{common.OpEscrowComplete, common.OpEscrowCancel, common.OpEscrowResolve} {
		pg, err := b.Build("op-1", &Request{
			OpKind:       op,
			ActorAddress: common.RandAddress(),
			Params: Params{
				TradeID:    []byte("trade-0001"),
				AssetID:    simStableID,
				Seller:     common.RandAddress(),
				Buyer:      common.RandAddress(),
				Arbitrator: common.RandAddress(),
			},
		}, simParams())
		assert.NoError(t, err, string(op))

		// user call + its two inners ride on the sponsor bump
		assert.Equal(t, types.MicroAlgos(4*common.MinFee), pg.Positions[0].Txn.Fee, string(op))
		assert.Equal(t, types.MicroAlgos(0), pg.Positions[1].Txn.Fee, string(op))
	}
}

func TestEscrowResolveNamesArbitrator(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	seller := common.RandAddress()
	buyer := common.RandAddress()
	arbitrator := common.RandAddress()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpEscrowResolve,
		ActorAddress: arbitrator,
		Params: Params{
			TradeID:    []byte("trade-0001"),
			AssetID:    simStableID,
			Seller:     seller,
			Buyer:      buyer,
			Arbitrator: arbitrator,
		},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, []types.Address{seller, buyer, arbitrator}, pg.Positions[1].Txn.Accounts)

	// no arbitrator, no dispute resolution
	_, err = b.Build("op-2", &Request{
		OpKind:       common.OpEscrowResolve,
		ActorAddress: arbitrator,
		Params: Params{
			TradeID: []byte("trade-0001"),
			AssetID: simStableID,
			Seller:  seller,
			Buyer:   buyer,
		},
	}, simParams())
	assert.ErrorIs(t, err, ErrMissingParty)

	// complete needs no arbitrator
	pg, err = b.Build("op-3", &Request{
		OpKind:       common.OpEscrowComplete,
		ActorAddress: buyer,
		Params: Params{
			TradeID: []byte("trade-0001"),
			AssetID: simStableID,
			Seller:  seller,
			Buyer:   buyer,
		},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, []types.Address{seller, buyer}, pg.Positions[1].Txn.Accounts)
}

func TestPayInvoicePlacesPayerFirst(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	payer := common.RandAddress()
	merchant := common.RandAddress()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpPayInvoice,
		ActorAddress: payer,
		Params:       Params{Receiver: merchant, Amount: 1_000_000, AssetID: simStableID, Memo: "INV-42"},
	}, simParams())
	assert.NoError(t, err)

	// the router contract asserts Gtxn[0].sender == Txn.accounts[0]
	call := pg.Positions[1].Txn
	assert.Equal(t, pg.Positions[0].Txn.Sender, call.Accounts[0])
	assert.Equal(t, payer, call.Accounts[0])
	assert.Equal(t, merchant, call.Accounts[1])
}

func TestInviteSendShape(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	code := common.RandBytes32()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpInviteSend,
		ActorAddress: common.RandAddress(),
		Params: Params{
			Amount:    100_000,
			AssetID:   simStableID,
			ClaimCode: code[:],
			Metadata:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, 3, len(pg.Positions))
	assert.Equal(t, []int{0}, pg.SponsorPositions())
	assert.Equal(t, []int{1, 2}, pg.UserPositions())
	assert.Equal(t, types.MicroAlgos(3*common.MinFee), pg.Positions[0].Txn.Fee)
}

func TestInviteSendCarriesIntendedRecipient(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	code := common.RandBytes32()
	intended := common.RandAddress()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpInviteSend,
		ActorAddress: common.RandAddress(),
		Params: Params{
			Amount:    100_000,
			AssetID:   simStableID,
			ClaimCode: code[:],
			Metadata:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
			Intended:  intended,
		},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, []types.Address{intended}, pg.Positions[2].Txn.Accounts)

	// phone-only invites carry the zero address
	pg, err = b.Build("op-2", &Request{
		OpKind:       common.OpInviteSend,
		ActorAddress: common.RandAddress(),
		Params: Params{
			Amount:    100_000,
			AssetID:   simStableID,
			ClaimCode: code[:],
			Metadata:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
	}, simParams())
	assert.NoError(t, err)
	assert.Equal(t, []types.Address{{}}, pg.Positions[2].Txn.Accounts)
}

func TestInviteSendRejectsBadKeySizes(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	code := common.RandBytes32()

	_, err := b.Build("op-1", &Request{
		OpKind:       common.OpInviteSend,
		ActorAddress: common.RandAddress(),
		Params:       Params{Amount: 100, AssetID: simStableID, ClaimCode: []byte("short"), Metadata: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}, simParams())
	assert.ErrorIs(t, err, ErrBadBoxKey)

	_, err = b.Build("op-2", &Request{
		OpKind:       common.OpInviteSend,
		ActorAddress: common.RandAddress(),
		Params:       Params{Amount: 100, AssetID: simStableID, ClaimCode: code[:], Metadata: []byte("way too long metadata")},
	}, simParams())
	assert.ErrorIs(t, err, ErrBadBoxKey)
}

func TestOptInBootstrapFundsAssetMBR(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	user := common.RandAddress()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpOptIn,
		ActorAddress: user,
		Params:       Params{AssetID: simUtilityID},
	}, simParams())
	assert.NoError(t, err)

	assert.Equal(t, types.MicroAlgos(assetMBR), pg.Positions[0].Txn.Amount)
	assert.Equal(t, user, pg.Positions[0].Txn.Receiver)

	optin := pg.Positions[1].Txn
	assert.Equal(t, user, optin.Sender)
	assert.Equal(t, user, optin.AssetReceiver)
	assert.Equal(t, uint64(0), optin.AssetAmount)
}

func TestPreparedGroupEncodingMatchesPositions(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: common.RandAddress(),
		Params:       Params{Receiver: common.RandAddress(), Amount: 42, AssetID: simStableID},
	}, simParams())
	assert.NoError(t, err)

	assert.Equal(t, len(pg.Positions), len(pg.Encoded))
	for _, blob := range pg.Encoded {
		assert.NotEmpty(t, blob)
	}
}

func TestPreparedGroupExpiry(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpTransfer,
		ActorAddress: common.RandAddress(),
		Params:       Params{Receiver: common.RandAddress(), Amount: 42, AssetID: simStableID},
	}, simParams())
	assert.NoError(t, err)

	assert.False(t, pg.Expired(time.Now()))
	assert.True(t, pg.Expired(time.Now().Add(3*time.Minute)))
}

func TestUnknownOpKind(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	_, err := b.Build("op-1", &Request{OpKind: common.OpKind("bogus")}, simParams())
	assert.ErrorIs(t, err, ErrUnknownOp)

	// deposit records are scanner-made, never prepared
	_, err = b.Build("op-2", &Request{OpKind: common.OpDeposit}, simParams())
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestValidityWindowSharedAcrossGroup(t *testing.T) {
	b := simBuilder(common.RandAddress(), nil)
	sp := simParams()

	pg, err := b.Build("op-1", &Request{
		OpKind:       common.OpBurn,
		ActorAddress: common.RandAddress(),
		Params:       Params{Amount: 77},
	}, sp)
	assert.NoError(t, err)

	assert.Equal(t, uint64(sp.FirstRoundValid), pg.FirstValid)
	assert.Equal(t, uint64(sp.LastRoundValid), pg.LastValid)
	for _, p := range pg.Positions {
		assert.Equal(t, sp.FirstRoundValid, p.Txn.FirstValid)
		assert.Equal(t, sp.LastRoundValid, p.Txn.LastValid)
	}
}
