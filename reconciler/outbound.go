package reconciler

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/sponsor"
	"github.com/caesar4321/confio-go/state"
)

// Outbound resolves submitted records the fast path lost track of, typically
// after a crash or a confirmation-wait timeout. Every submitted record either
// becomes confirmed, with the reservation settled and ledger deltas applied,
// or failed_expired once its validity window is provably behind the chain.
type Outbound struct {
	cfg    Config
	ledger *state.LedgerDB
	chain  algoman.Gateway
	sub    *sponsor.Submitter
}

func NewOutbound(cfg Config, ledger *state.LedgerDB, chain algoman.Gateway, sub *sponsor.Submitter) *Outbound {
	return &Outbound{cfg: cfg.withDefaults(), ledger: ledger, chain: chain, sub: sub}
}

func (o *Outbound) Start(ctx context.Context) {
	go o.loop(ctx)
}

func (o *Outbound) loop(ctx context.Context) {
	bo := newBackoff(o.cfg.OutboundInterval, o.cfg.MaxBackoff)
	for {
		wait := o.cfg.OutboundInterval
		if err := o.Scan(ctx); err != nil {
			wait = bo.Next()
			logger.WithError(err).WithField("retryIn", wait).Warn("outbound sweep failed")
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

// Scan runs one sweep over all submitted records.
func (o *Outbound) Scan(ctx context.Context) error {
	records, err := o.ledger.GetRecordsByStatus(state.StatusSubmitted)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	latest, err := o.chain.LatestRound(ctx)
	if err != nil {
		return err
	}

	for _, r := range records {
		if err := o.resolve(ctx, r, latest); err != nil {
			logger.WithError(err).WithField("id", r.ID).Warn("could not resolve submitted record")
		}
	}
	return nil
}

// Resolve settles one record by id, for callers that already know the group
// was just confirmed and do not want to wait for the next sweep. Records not
// in submitted status are left alone.
func (o *Outbound) Resolve(ctx context.Context, id string) error {
	r, err := o.ledger.GetRecord(id)
	if err != nil {
		return err
	}
	if r.Status != state.StatusSubmitted {
		return nil
	}
	latest, err := o.chain.LatestRound(ctx)
	if err != nil {
		return err
	}
	return o.resolve(ctx, r, latest)
}

func (o *Outbound) resolve(ctx context.Context, r *state.TransactionRecord, latest uint64) error {
	if len(r.TxIDs) == 0 {
		return errors.New("submitted record has no txids")
	}

	info, err := o.chain.LookupTransaction(ctx, r.TxIDs[0])
	switch {
	case err == nil:
		return o.markConfirmed(ctx, r, info.Round)
	case errors.Is(err, algoman.ErrTxnNotFound):
		// not on chain; final only once the validity window is buried
		if latest > r.LastValid+o.cfg.FinalityDepth {
			return o.markExpired(r)
		}
		return nil
	default:
		return err
	}
}

func (o *Outbound) markConfirmed(ctx context.Context, r *state.TransactionRecord, round uint64) error {
	err := o.ledger.UpdateRecordStatus(r.ID, state.StatusSubmitted, state.StatusConfirmed, "")
	if errors.Is(err, state.ErrBadStatusTransition) {
		// the fast path got there first
		return nil
	}
	if err != nil {
		return err
	}

	if err := o.sub.Settle(r.SponsorCost); err != nil {
		return err
	}
	o.applyDeltas(ctx, r, round)

	logger.WithFields(logger.Fields{
		"id":    r.ID,
		"round": round,
	}).Info("submitted record confirmed by reconciliation")
	return nil
}

func (o *Outbound) markExpired(r *state.TransactionRecord) error {
	err := o.ledger.UpdateRecordStatus(r.ID, state.StatusSubmitted, state.StatusFailedExpired,
		"validity window passed without confirmation")
	if errors.Is(err, state.ErrBadStatusTransition) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := o.sub.Release(r.SponsorCost); err != nil {
		return err
	}
	logger.WithField("id", r.ID).Warn("submitted record expired unconfirmed")
	return nil
}

// applyDeltas mirrors the confirmed group's transfers into the off-chain
// ledger. Managed senders are debited, managed receivers credited; addresses
// outside the account table are ignored. Each delta is keyed by its txid and
// position in the record, so a repeated sweep is a no-op.
func (o *Outbound) applyDeltas(ctx context.Context, r *state.TransactionRecord, round uint64) {
	for pos, txid := range r.TxIDs {
		info, err := o.chain.LookupTransaction(ctx, txid)
		if err != nil || info.Amount == 0 {
			continue
		}

		if acct, err := o.ledger.GetAccountByAddress(mustAddr(info.Sender)); err == nil {
			o.apply(&state.BalanceDelta{
				TxID: txid, Position: pos,
				AccountKey: acct.AccountKey,
				AssetID:    info.AssetID,
				Amount:     -int64(info.Amount),
				Round:      round,
			})
		}
		if acct, err := o.ledger.GetAccountByAddress(mustAddr(info.Receiver)); err == nil {
			o.apply(&state.BalanceDelta{
				TxID: txid, Position: pos + len(r.TxIDs),
				AccountKey: acct.AccountKey,
				AssetID:    info.AssetID,
				Amount:     int64(info.Amount),
				Round:      round,
			})
		}
	}
}

func (o *Outbound) apply(d *state.BalanceDelta) {
	if _, err := o.ledger.ApplyBalanceDelta(d); err != nil {
		logger.WithError(err).WithField("txid", d.TxID).Error("balance delta failed")
	}
}
