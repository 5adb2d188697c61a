package groupbuilder

import (
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

const (
	// Invite boxes are keyed by the 32-byte claim code hash and hold
	// sender (32) + amount (8) + asset (8) + metadata (8) + expiry (8).
	claimCodeLen      = 32
	inviteMetadataLen = 8
	inviteBoxValueLen = 64
)

// buildInviteSend escrows funds for a recipient who has no address yet:
//
//	[0] sponsor  payment of the box MBR to the invite address, carries the fee
//	[1] user     asset transfer of the invite amount to the invite address, fee 0
//	[2] user     app call "send", fee 0
//
// The call's accounts array carries the intended recipient when the sender
// already knows an address, and the zero address when the invite is keyed to
// a phone number alone.
func (b *Builder) buildInviteSend(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if len(req.Params.ClaimCode) != claimCodeLen {
		return nil, ErrBadBoxKey
	}
	if len(req.Params.Metadata) != inviteMetadataLen {
		return nil, ErrBadBoxKey
	}
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}
	if err := b.requireBalance(req.ActorAddress, req.Params.AssetID, req.Params.Amount); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppInviteRouter)
	if err != nil {
		return nil, err
	}

	mbr := payment(b.sponsor, app.AppAddress, b.fundedBoxMBR(claimCodeLen, inviteBoxValueLen), bumpFee(2), sp)
	deposit := assetTransfer(req.ActorAddress, app.AppAddress, req.Params.AssetID, req.Params.Amount, 0, sp)
	call, err := b.appCall(app, req.ActorAddress, 0, "send",
		[][]byte{req.Params.ClaimCode, req.Params.Metadata},
		[]types.Address{req.Params.Intended},
		[]uint64{req.Params.AssetID},
		[][]byte{req.Params.ClaimCode}, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: mbr},
		{Signer: common.SignerUser, Txn: deposit},
		{Signer: common.SignerUser, Txn: call},
	}, nil
}

// buildInviteRedeem closes an invite box either way. A claim pays the new
// user, a reclaim returns the funds to the original sender after expiry; the
// contract decides which callers each method accepts:
//
//	[0] sponsor  payment, 0 to self, covers the user call and two inners
//	             (asset payout plus box MBR refund)
//	[1] user     app call with the redeem method, fee 0
//
// The redeeming address must already hold the asset; claim flows therefore
// run an opt-in bootstrap first.
func (b *Builder) buildInviteRedeem(req *Request, sp types.SuggestedParams, method string) ([]PositionSpec, error) {
	if len(req.Params.ClaimCode) != claimCodeLen {
		return nil, ErrBadBoxKey
	}
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}
	if err := b.requireOptIn(req.ActorAddress, req.Params.AssetID); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppInviteRouter)
	if err != nil {
		return nil, err
	}

	inner := uint64(shape(req.OpKind).Inner) * common.MinFee
	bump := payment(b.sponsor, b.sponsor, 0, bumpFee(1)+inner, sp)
	call, err := b.appCall(app, req.ActorAddress, 0, method,
		[][]byte{req.Params.ClaimCode},
		[]types.Address{req.ActorAddress},
		[]uint64{req.Params.AssetID},
		[][]byte{req.Params.ClaimCode}, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: bump},
		{Signer: common.SignerUser, Txn: call},
	}, nil
}
