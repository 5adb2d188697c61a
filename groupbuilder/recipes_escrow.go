package groupbuilder

import (
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

// Trade boxes are keyed by the caller-supplied trade id and hold
// seller (32) + buyer (32) + amount (8) + asset (8) + status (1).
const tradeBoxValueLen = 81

// maxTradeIDLen keeps the box key within the ledger's 64-byte key limit.
const maxTradeIDLen = 64

// buildEscrowCreate opens a trade box:
//
//	[0] sponsor  payment of the box MBR to the escrow address
//	[1] sponsor  app call "create", args [trade id, seller, buyer, amount]
//
// Both positions are sponsor-signed: no funds move until the deposit step, so
// the contract records the parties from the call arguments alone. The seller
// opens the trade; when the request carries no explicit seller the actor is
// the seller.
func (b *Builder) buildEscrowCreate(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if len(req.Params.TradeID) == 0 || len(req.Params.TradeID) > maxTradeIDLen {
		return nil, ErrBadBoxKey
	}
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}
	if common.IsZeroAddress(req.Params.Buyer) {
		return nil, ErrMissingParty
	}
	seller := req.Params.Seller
	if common.IsZeroAddress(seller) {
		seller = req.ActorAddress
	}
	app, err := b.appOrErr(common.AppP2PEscrow)
	if err != nil {
		return nil, err
	}

	mbr := payment(b.sponsor, app.AppAddress, b.fundedBoxMBR(len(req.Params.TradeID), tradeBoxValueLen), bumpFee(0), sp)
	call, err := b.appCall(app, b.sponsor, appCallFee(common.OpEscrowCreate), "create",
		[][]byte{req.Params.TradeID, seller[:], req.Params.Buyer[:], uint64Arg(req.Params.Amount)},
		[]types.Address{seller, req.Params.Buyer},
		[]uint64{req.Params.AssetID},
		[][]byte{req.Params.TradeID}, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: mbr},
		{Signer: common.SignerSponsor, Txn: call},
	}, nil
}

// buildEscrowDeposit funds an open trade:
//
//	[0] user     asset transfer of the trade amount to the escrow address, fee 0
//	[1] sponsor  app call "deposit", fee covers both outer positions
func (b *Builder) buildEscrowDeposit(req *Request, sp types.SuggestedParams) ([]PositionSpec, error) {
	if req.Params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if len(req.Params.TradeID) == 0 || len(req.Params.TradeID) > maxTradeIDLen {
		return nil, ErrBadBoxKey
	}
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}
	if err := b.requireBalance(req.ActorAddress, req.Params.AssetID, req.Params.Amount); err != nil {
		return nil, err
	}
	app, err := b.appOrErr(common.AppP2PEscrow)
	if err != nil {
		return nil, err
	}

	deposit := assetTransfer(req.ActorAddress, app.AppAddress, req.Params.AssetID, req.Params.Amount, 0, sp)
	call, err := b.appCall(app, b.sponsor, bumpFee(1), "deposit",
		[][]byte{req.Params.TradeID},
		[]types.Address{req.ActorAddress},
		[]uint64{req.Params.AssetID},
		[][]byte{req.Params.TradeID}, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerUser, Txn: deposit},
		{Signer: common.SignerSponsor, Txn: call},
	}, nil
}

// buildEscrowTerminal closes a trade one of three ways. All three share a
// layout; only the method and the authorized actor differ, and the contract
// enforces who may call what:
//
//	[0] sponsor  payment, 0 to self, covers the user call and two inners
//	             (asset payout plus box MBR refund)
//	[1] user     app call with the terminal method, fee 0
func (b *Builder) buildEscrowTerminal(req *Request, sp types.SuggestedParams, method string) ([]PositionSpec, error) {
	if len(req.Params.TradeID) == 0 || len(req.Params.TradeID) > maxTradeIDLen {
		return nil, ErrBadBoxKey
	}
	if _, err := b.assetOrErr(req.Params.AssetID); err != nil {
		return nil, err
	}
	if common.IsZeroAddress(req.Params.Seller) || common.IsZeroAddress(req.Params.Buyer) {
		return nil, ErrMissingParty
	}
	accounts := []types.Address{req.Params.Seller, req.Params.Buyer}
	if method == "resolve" {
		// dispute resolution names the arbitrator so the contract can
		// verify the caller against it
		if common.IsZeroAddress(req.Params.Arbitrator) {
			return nil, ErrMissingParty
		}
		accounts = append(accounts, req.Params.Arbitrator)
	}
	app, err := b.appOrErr(common.AppP2PEscrow)
	if err != nil {
		return nil, err
	}

	inner := uint64(shape(req.OpKind).Inner) * common.MinFee
	bump := payment(b.sponsor, b.sponsor, 0, bumpFee(1)+inner, sp)
	call, err := b.appCall(app, req.ActorAddress, 0, method,
		[][]byte{req.Params.TradeID},
		accounts,
		[]uint64{req.Params.AssetID},
		[][]byte{req.Params.TradeID}, sp)
	if err != nil {
		return nil, err
	}

	return []PositionSpec{
		{Signer: common.SignerSponsor, Txn: bump},
		{Signer: common.SignerUser, Txn: call},
	}, nil
}
