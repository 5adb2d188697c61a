package groupbuilder

import (
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

// buildTransfer lays out a direct asset send:
//
//	[0] sponsor  payment, 0 to self, carries the whole group fee
//	[1] user     asset transfer to the receiver, fee 0
func (b *Builder) buildTransfer(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}
	if common.IsZeroAddress(req.Params.Receiver) {
		return nil, ErrMissingParty
	}
	if err := b.requireBalance(req.ActorAddress, req.Params.AssetID, req.Params.Amount); err != nil {
		return nil, err
	}
	if err := b.requireOptIn(req.Params.Receiver, req.Params.AssetID); err != nil {
		return nil, err
	}

	bump := payment(b.sponsor, b.sponsor, 0, bumpFee(1), sp)
	xfer := assetTransfer(req.ActorAddress, req.Params.Receiver, req.Params.AssetID, req.Params.Amount, 0, sp)

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: bump},
		{Signer: common.SignerUser, Txn: xfer},
	}, nil
}

// buildOptIn bootstraps an asset holding for a managed address:
//
//	[0] sponsor  payment of the asset MBR bump to the user, carries the fee
//	[1] user     zero self-transfer of the asset, fee 0
func (b *Builder) buildOptIn(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}

	fund := payment(b.sponsor, req.ActorAddress, assetMBR, bumpFee(1), sp)
	optin := assetTransfer(req.ActorAddress, req.ActorAddress, req.Params.AssetID, 0, 0, sp)

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: fund},
		{Signer: common.SignerUser, Txn: optin},
	}, nil
}
