package reconciler

import (
	"context"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/common"
	"github.com/caesar4321/confio-go/state"
)

// Inbound watches managed addresses for deposits arriving from outside the
// orchestrator: a third-party wallet or an exchange paying a user directly.
// Each sweep covers the rounds between the persisted cursor and the chain tip
// minus the finality depth, so a row is written at most once per deposit even
// across restarts.
type Inbound struct {
	cfg       Config
	ledger    *state.LedgerDB
	chain     algoman.Gateway
	supported map[uint64]bool
}

func NewInbound(cfg Config, ledger *state.LedgerDB, chain algoman.Gateway) *Inbound {
	cfg = cfg.withDefaults()
	supported := make(map[uint64]bool, len(cfg.SupportedAssets))
	for _, id := range cfg.SupportedAssets {
		supported[id] = true
	}
	return &Inbound{cfg: cfg, ledger: ledger, chain: chain, supported: supported}
}

func (in *Inbound) Start(ctx context.Context) {
	go in.loop(ctx)
}

func (in *Inbound) loop(ctx context.Context) {
	bo := newBackoff(in.cfg.InboundInterval, in.cfg.MaxBackoff)
	for {
		wait := in.cfg.InboundInterval
		if err := in.Scan(ctx); err != nil {
			wait = bo.Next()
			logger.WithError(err).WithField("retryIn", wait).Warn("inbound sweep failed")
		} else {
			bo.Reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Scan runs one inbound sweep and advances the cursor past the swept rounds.
func (in *Inbound) Scan(ctx context.Context) error {
	cursor, err := in.ledger.GetCursor(state.ScannerInbound)
	if err != nil {
		return err
	}

	latest, err := in.chain.LatestRound(ctx)
	if err != nil {
		return err
	}
	if latest <= in.cfg.FinalityDepth {
		return nil
	}
	ceiling := latest - in.cfg.FinalityDepth
	if ceiling <= cursor.LastRound {
		return nil
	}

	addrs, err := in.ledger.ListManagedAddresses()
	if err != nil {
		return err
	}

	for _, addr := range addrs {
		if err := in.scanAddress(ctx, addr, cursor.LastRound+1, ceiling); err != nil {
			return err
		}
	}

	return in.ledger.AdvanceCursor(cursor, ceiling)
}

func (in *Inbound) scanAddress(ctx context.Context, addr types.Address, minRound, maxRound uint64) error {
	next := ""
	for {
		page, token, err := in.chain.SearchReceived(ctx, addr.String(), 0, minRound, maxRound, next)
		if err != nil {
			return err
		}
		for _, info := range page {
			if err := in.recordDeposit(addr, info); err != nil {
				return err
			}
		}
		if token == "" {
			return nil
		}
		next = token
	}
}

func (in *Inbound) recordDeposit(addr types.Address, info algoman.TxnInfo) error {
	// grouped transfers are sponsored operations, the outbound side owns them
	if len(info.Group) != 0 {
		return nil
	}
	// only supported assets enter the ledger; algo payments come back from
	// the search as asset id 0 and stay out with them
	if info.AssetID == 0 || !in.supported[info.AssetID] {
		return nil
	}
	if info.Amount == 0 {
		return nil
	}
	// self-transfers are opt-ins, not deposits
	if info.Sender == info.Receiver {
		return nil
	}

	seen, err := in.ledger.HasDepositForTxID(info.TxID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	acct, err := in.ledger.GetAccountByAddress(addr)
	if err != nil {
		return err
	}

	record := &state.TransactionRecord{
		ID:           uuid.NewString(),
		OpKind:       common.OpDeposit,
		Actor:        acct.AccountKey,
		Counterparty: info.Sender,
		Amount:       info.Amount,
		AssetID:      info.AssetID,
		Status:       state.StatusConfirmed,
		TxIDs:        []string{info.TxID},
	}
	if err := in.ledger.InsertRecord(record); err != nil {
		return err
	}

	if _, err := in.ledger.ApplyBalanceDelta(&state.BalanceDelta{
		TxID:       info.TxID,
		Position:   0,
		AccountKey: acct.AccountKey,
		AssetID:    info.AssetID,
		Amount:     int64(info.Amount),
		Round:      info.Round,
	}); err != nil {
		return err
	}

	// a received asset implies the address holds it
	if err := in.ledger.AddOptIn(acct.AccountKey, info.AssetID); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"account": acct.AccountKey,
		"txid":    info.TxID,
		"amount":  info.Amount,
		"assetId": info.AssetID,
	}).Info("external deposit recorded")
	return nil
}

func mustAddr(s string) types.Address {
	addr, err := types.DecodeAddress(s)
	if err != nil {
		return types.Address{}
	}
	return addr
}
