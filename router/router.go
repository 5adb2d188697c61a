package router

import (
	"context"
	"encoding/base64"
	"time"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/common"
	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/keyservice"
	"github.com/caesar4321/confio-go/sponsor"
	"github.com/caesar4321/confio-go/state"
)

type Config struct {
	// lifetime of a prepared group waiting for the client signature
	PrepareTTL time.Duration

	// pause between expiry sweeps over the cache and the record table
	SweepInterval time.Duration

	// ceiling on the fast-path confirmation wait after a submit
	ConfirmTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PrepareTTL <= 0 {
		c.PrepareTTL = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 30 * time.Second
	}
	return c
}

// Resolver settles a submitted record once its group is known confirmed. The
// reconciler's outbound scanner implements it; without one the periodic sweep
// picks the record up instead.
type Resolver interface {
	Resolve(ctx context.Context, id string) error
}

// Router drives the two-call signing protocol: Prepare builds and caches a
// group and hands the client its positions to sign; Submit validates what
// comes back, co-signs, and sends. The transaction record tracks every step.
type Router struct {
	cfg       Config
	ledger    *state.LedgerDB
	chain     algoman.Gateway
	builder   *groupbuilder.Builder
	addresses *keyservice.AddressService
	signer    *keyservice.SponsorSigner
	sub       *sponsor.Submitter
	resolver  Resolver
	cache     *groupCache
}

func New(
	cfg Config,
	ledger *state.LedgerDB,
	chain algoman.Gateway,
	builder *groupbuilder.Builder,
	addresses *keyservice.AddressService,
	signer *keyservice.SponsorSigner,
	sub *sponsor.Submitter,
	resolver Resolver,
) *Router {
	return &Router{
		cfg:       cfg.withDefaults(),
		ledger:    ledger,
		chain:     chain,
		builder:   builder,
		addresses: addresses,
		signer:    signer,
		sub:       sub,
		resolver:  resolver,
		cache:     newGroupCache(),
	}
}

// Start launches the expiry sweeper.
func (r *Router) Start(ctx context.Context) {
	go r.sweepLoop(ctx)
}

// PrepareResult is what the client needs to sign and come back.
type PrepareResult struct {
	OpID          string
	GroupID       string // base64
	Transactions  [][]byte
	UserPositions []int
	SponsorCost   uint64
	LastValid     uint64
	ExpiresAt     time.Time
}

// Prepare builds the group for one operation and parks it waiting for the
// client's signatures.
func (r *Router) Prepare(ctx context.Context, accountKey string, opKind common.OpKind, params groupbuilder.Params) (*PrepareResult, error) {
	acct, err := r.addresses.EnsureAccount(accountKey)
	if err != nil {
		return nil, err
	}

	sp, err := r.chain.SuggestedParams(ctx)
	if err != nil {
		return nil, err
	}

	opID := uuid.NewString()
	pg, err := r.builder.Build(opID, &groupbuilder.Request{
		OpKind:       opKind,
		Actor:        accountKey,
		ActorAddress: acct.Address,
		Params:       params,
	}, sp)
	if err != nil {
		return nil, err
	}

	record := &state.TransactionRecord{
		ID:          opID,
		OpKind:      opKind,
		Actor:       accountKey,
		Amount:      params.Amount,
		AssetID:     params.AssetID,
		SponsorCost: pg.SponsorCost,
		Status:      state.StatusPreparing,
	}
	if err := r.ledger.InsertRecord(record); err != nil {
		return nil, err
	}
	if err := r.ledger.UpdateRecordStatus(opID, state.StatusPreparing, state.StatusPendingClientSign, ""); err != nil {
		return nil, err
	}

	r.cache.Put(pg)

	logger.WithFields(logger.Fields{
		"opId":   opID,
		"opKind": opKind,
		"actor":  accountKey,
		"cost":   pg.SponsorCost,
	}).Info("operation prepared")

	return &PrepareResult{
		OpID:          opID,
		GroupID:       base64.StdEncoding.EncodeToString(pg.GroupID[:]),
		Transactions:  pg.Encoded,
		UserPositions: pg.UserPositions(),
		SponsorCost:   pg.SponsorCost,
		LastValid:     pg.LastValid,
		ExpiresAt:     pg.ExpiresAt,
	}, nil
}

// SubmitResult reports a successful send.
type SubmitResult struct {
	OpID    string
	TxID    string
	GroupID string
	Status  state.RecordStatus
}

// Submit validates the client's signed positions, co-signs the sponsor
// positions, and sends the group. An expired prepare never reaches the
// network. Admission failures put the group back so the client may retry
// within the TTL.
func (r *Router) Submit(ctx context.Context, opID string, signed map[int][]byte) (*SubmitResult, error) {
	pg, ok := r.cache.Take(opID)
	if !ok {
		return nil, r.classifyMissing(opID)
	}

	if pg.Expired(time.Now()) {
		if err := r.ledger.UpdateRecordStatus(opID, state.StatusPendingClientSign, state.StatusExpired,
			"client signature arrived after the prepare TTL"); err != nil {
			logger.WithError(err).WithField("opId", opID).Warn("could not expire record")
		}
		return nil, ErrPrepareExpired
	}

	blobs, err := sponsor.Admit(pg, signed, r.signer)
	if err != nil {
		r.cache.Put(pg)
		return nil, err
	}

	if err := r.ledger.UpdateRecordStatus(opID, state.StatusPendingClientSign, state.StatusPendingSubmit, ""); err != nil {
		return nil, err
	}

	txid, err := r.sub.Submit(ctx, blobs, pg.SponsorCost)
	if err != nil {
		if uerr := r.ledger.UpdateRecordStatus(opID, state.StatusPendingSubmit, state.StatusFailedRejected, err.Error()); uerr != nil {
			logger.WithError(uerr).WithField("opId", opID).Error("could not mark record rejected")
		}
		return nil, err
	}

	txids := make([]string, len(pg.Positions))
	for i := range pg.Positions {
		txids[i] = sdkcrypto.GetTxID(pg.Positions[i].Txn)
	}
	groupID := base64.StdEncoding.EncodeToString(pg.GroupID[:])
	if err := r.ledger.SetRecordSubmitted(opID, groupID, txids, pg.LastValid); err != nil {
		return nil, err
	}

	r.confirmAsync(opID, txid)

	return &SubmitResult{
		OpID:    opID,
		TxID:    txid,
		GroupID: groupID,
		Status:  state.StatusSubmitted,
	}, nil
}

// classifyMissing distinguishes a stale opID from one that never existed.
func (r *Router) classifyMissing(opID string) error {
	rec, err := r.ledger.GetRecord(opID)
	if err != nil {
		return ErrUnknownOperation
	}
	switch rec.Status {
	case state.StatusExpired:
		return ErrPrepareExpired
	case state.StatusPendingClientSign:
		// record survived a restart but the cached group did not
		return ErrPrepareExpired
	default:
		return ErrUnknownOperation
	}
}

// confirmAsync waits for the group off the request path and settles the
// record through the resolver. Timeouts are left to the reconciler sweep.
func (r *Router) confirmAsync(opID, txid string) {
	if r.resolver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ConfirmTimeout)
		defer cancel()

		if _, err := r.chain.WaitForConfirmation(ctx, txid); err != nil {
			logger.WithError(err).WithField("opId", opID).Warn("fast-path confirmation timed out")
			return
		}
		if err := r.resolver.Resolve(ctx, opID); err != nil {
			logger.WithError(err).WithField("opId", opID).Warn("fast-path settlement failed")
		}
	}()
}

// Status returns the operation's record.
func (r *Router) Status(opID string) (*state.TransactionRecord, error) {
	return r.ledger.GetRecord(opID)
}

// Balance returns the off-chain ledger balance for one account and asset.
func (r *Router) Balance(accountKey string, assetID uint64) (int64, error) {
	return r.ledger.GetBalance(accountKey, assetID)
}

// Account resolves an account key, creating the account on first sight.
func (r *Router) Account(accountKey string) (*state.Account, error) {
	return r.addresses.EnsureAccount(accountKey)
}

func (r *Router) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			purged := r.cache.PurgeExpired(now)
			flipped, err := r.ledger.ExpireStaleClientSigns(now.Add(-r.cfg.PrepareTTL))
			if err != nil {
				logger.WithError(err).Error("expiry sweep failed")
				continue
			}
			if purged > 0 || flipped > 0 {
				logger.WithFields(logger.Fields{
					"purgedGroups":   purged,
					"expiredRecords": flipped,
				}).Info("expired stale prepares")
			}
		}
	}
}
