package groupbuilder

import (
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

// buildPayInvoice lays out a merchant payment through the payment router:
//
//	[0] user     asset transfer of the invoice amount to the app address, fee 0
//	[1] sponsor  app call "pay", fee covers the call and its inner payouts
//
// The contract splits position 0 between the merchant and the fee collector
// with two inner transfers. It asserts Gtxn[0].sender == Txn.accounts[0], so
// the payer goes in accounts[0] and the merchant in accounts[1].
func (b *Builder) buildPayInvoice(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
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
	app, err := b.appOrErr(common.AppPaymentRouter)
	if err != nil {
		return nil, err
	}

	deposit := assetTransfer(req.ActorAddress, app.AppAddress, req.Params.AssetID, req.Params.Amount, 0, sp)
	call, err := b.appCall(app, b.sponsor, appCallFee(common.OpPayInvoice), "pay",
		[][]byte{[]byte(req.Params.Memo)},
		[]types.Address{req.ActorAddress, req.Params.Receiver},
		[]uint64{req.Params.AssetID},
		nil, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerUser, Txn: deposit},
		{Signer: common.SignerSponsor, Txn: call},
	}, nil
}

// buildMintCollateral lays out a collateral-backed mint:
//
//	[0] sponsor  payment, 0 to self, covers the user position's fee
//	[1] user     collateral transfer to the vault address, fee 0
//	[2] sponsor  app call "mint", fee covers the call and its inner mint+send
func (b *Builder) buildMintCollateral(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	collateral, ok := b.byKind[common.AssetStablecoinColl]
	if !ok {
		return nil, ErrUnknownAsset
	}
	minted, ok := b.byKind[common.AssetStablecoinPrimary]
	if !ok {
		return nil, ErrUnknownAsset
	}
	if err := b.requireBalance(req.ActorAddress, collateral.AssetID, req.Params.Amount); err != nil {
		return nil, err
	}
	if err := b.requireOptIn(req.ActorAddress, minted.AssetID); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppMintBurn)
	if err != nil {
		return nil, err
	}

	bump := payment(b.sponsor, b.sponsor, 0, bumpFee(1), sp)
	deposit := assetTransfer(req.ActorAddress, app.AppAddress, collateral.AssetID, req.Params.Amount, 0, sp)
	call, err := b.appCall(app, b.sponsor, appCallFee(common.OpMintCollateral), "mint",
		nil,
		[]types.Address{req.ActorAddress},
		[]uint64{minted.AssetID, collateral.AssetID},
		nil, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: bump},
		{Signer: common.SignerUser, Txn: deposit},
		{Signer: common.SignerSponsor, Txn: call},
	}, nil
}

// buildBurn is the inverse of mint:
//
//	[0] sponsor  payment, 0 to self, covers the user position's fee
//	[1] user     minted-asset transfer back to the vault address, fee 0
//	[2] sponsor  app call "burn", fee covers the call and the collateral return
func (b *Builder) buildBurn(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	collateral, ok := b.byKind[common.AssetStablecoinColl]
	if !ok {
		return nil, ErrUnknownAsset
	}
	minted, ok := b.byKind[common.AssetStablecoinPrimary]
	if !ok {
		return nil, ErrUnknownAsset
	}
	if err := b.requireBalance(req.ActorAddress, minted.AssetID, req.Params.Amount); err != nil {
		return nil, err
	}
	if err := b.requireOptIn(req.ActorAddress, collateral.AssetID); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppMintBurn)
	if err != nil {
		return nil, err
	}

	bump := payment(b.sponsor, b.sponsor, 0, bumpFee(1), sp)
	deposit := assetTransfer(req.ActorAddress, app.AppAddress, minted.AssetID, req.Params.Amount, 0, sp)
	call, err := b.appCall(app, b.sponsor, appCallFee(common.OpBurn), "burn",
		nil,
		[]types.Address{req.ActorAddress},
		[]uint64{minted.AssetID, collateral.AssetID},
		nil, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: bump},
		{Signer: common.SignerUser, Txn: deposit},
		{Signer: common.SignerSponsor, Txn: call},
	}, nil
}

// buildPresaleContribute lays out a presale contribution:
//
//	[0] user     stablecoin transfer to the presale address, fee 0
//	[1] sponsor  app call "contribute", fee covers both outer positions
func (b *Builder) buildPresaleContribute(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	stable, ok := b.byKind[common.AssetStablecoinPrimary]
	if !ok {
		return nil, ErrUnknownAsset
	}
	if err := b.requireBalance(req.ActorAddress, stable.AssetID, req.Params.Amount); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppPresale)
	if err != nil {
		return nil, err
	}

	deposit := assetTransfer(req.ActorAddress, app.AppAddress, stable.AssetID, req.Params.Amount, 0, sp)
	call, err := b.appCall(app, b.sponsor, bumpFee(1), "contribute",
		nil,
		[]types.Address{req.ActorAddress},
		[]uint64{stable.AssetID},
		nil, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerUser, Txn: deposit},
		{Signer: common.SignerSponsor, Txn: call},
	}, nil
}

// buildPresaleClaim lays out a post-presale token claim:
//
//	[0] sponsor  payment, 0 to self, covers the user call and the inner payout
//	[1] user     app call "claim_tokens", fee 0
func (b *Builder) buildPresaleClaim(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	token, ok := b.byKind[common.AssetUtilityToken]
	if !ok {
		return nil, ErrUnknownAsset
	}
	if err := b.requireOptIn(req.ActorAddress, token.AssetID); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppPresale)
	if err != nil {
		return nil, err
	}

	inner := uint64(shape(common.OpPresaleClaim).Inner) * common.MinFee
	bump := payment(b.sponsor, b.sponsor, 0, bumpFee(1)+inner, sp)
	call, err := b.appCall(app, req.ActorAddress, 0, "claim_tokens",
		nil,
		nil,
		[]uint64{token.AssetID},
		nil, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: bump},
		{Signer: common.SignerUser, Txn: call},
	}, nil
}
