package router

import (
	"context"
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/state"
)

// LedgerHoldings answers the builder's holding queries. Managed addresses are
// answered from the account table first; anything the table does not know,
// including external receivers, falls through to the node.
type LedgerHoldings struct {
	ledger *state.LedgerDB
	chain  algoman.Gateway
}

func NewLedgerHoldings(ledger *state.LedgerDB, chain algoman.Gateway) *LedgerHoldings {
	return &LedgerHoldings{ledger: ledger, chain: chain}
}

func (lh *LedgerHoldings) OptedIn(addr types.Address, assetID uint64) (bool, error) {
	acct, err := lh.ledger.GetAccountByAddress(addr)
	if err == nil && acct.OptedIn(assetID) {
		return true, nil
	}
	if err != nil && !errors.Is(err, state.ErrAccountNotFound) {
		return false, err
	}
	return lh.chain.HoldsAsset(context.Background(), addr.String(), assetID)
}

// AssetBalance always asks the chain: the off-chain ledger lags behind
// confirmations and deposits, and a stale figure here would refuse or admit
// the wrong prepares.
func (lh *LedgerHoldings) AssetBalance(addr types.Address, assetID uint64) (uint64, error) {
	return lh.chain.AssetBalance(context.Background(), addr.String(), assetID)
}
