package sponsor

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/keyservice"
	"github.com/caesar4321/confio-go/state"
)

type Config struct {
	// queued submissions before Submit starts rejecting
	QueueDepth int

	// microalgos that must stay on the sponsor account at all times
	MinReserve uint64

	// how often the cached sponsor balance is refreshed from the node
	BalanceRefresh time.Duration
}

// Submitter serializes all group submissions for one sponsor account through
// a single worker, so reservations and sends happen in arrival order and two
// groups can never race the same spendable balance.
type Submitter struct {
	cfg    Config
	ledger *state.LedgerDB
	chain  algoman.Gateway
	signer *keyservice.SponsorSigner

	jobs   chan *job
	closed chan struct{}
}

type job struct {
	ctx    context.Context
	blobs  [][]byte
	cost   uint64
	result chan jobResult
}

type jobResult struct {
	txid string
	err  error
}

func NewSubmitter(cfg Config, ledger *state.LedgerDB, chain algoman.Gateway, signer *keyservice.SponsorSigner) *Submitter {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	return &Submitter{
		cfg:    cfg,
		ledger: ledger,
		chain:  chain,
		signer: signer,
		jobs:   make(chan *job, cfg.QueueDepth),
		closed: make(chan struct{}),
	}
}

// Start seeds the sponsor row, takes an initial balance reading, and launches
// the worker and the balance refresher. It returns once both are running.
func (s *Submitter) Start(ctx context.Context) error {
	if err := s.ledger.InitSponsorState(s.signer.Address(), s.cfg.MinReserve); err != nil {
		return err
	}
	if err := s.RefreshBalance(ctx); err != nil {
		return err
	}

	go s.loop(ctx)
	go s.refreshLoop(ctx)
	return nil
}

// Submit enqueues one admitted group and blocks until the worker has sent it
// or refused it. The returned txid is the id of the group's first position.
func (s *Submitter) Submit(ctx context.Context, blobs [][]byte, cost uint64) (string, error) {
	j := &job{ctx: ctx, blobs: blobs, cost: cost, result: make(chan jobResult, 1)}

	select {
	case s.jobs <- j:
	case <-s.closed:
		return "", ErrQueueClosed
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrQueueFull
	}

	select {
	case res := <-j.result:
		return res.txid, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Submitter) loop(ctx context.Context) {
	defer close(s.closed)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			txid, err := s.send(j)
			j.result <- jobResult{txid: txid, err: err}
		}
	}
}

func (s *Submitter) send(j *job) (string, error) {
	addr := s.signer.Address()

	err := s.ledger.ReserveSponsorFunds(addr, j.cost)
	if errors.Is(err, state.ErrReserveTooLow) {
		// the cached balance may be stale, take a fresh reading and retry once
		if rerr := s.RefreshBalance(j.ctx); rerr == nil {
			err = s.ledger.ReserveSponsorFunds(addr, j.cost)
		}
	}
	if err != nil {
		return "", err
	}

	txid, err := s.chain.SendRawGroup(j.ctx, j.blobs)
	if err != nil {
		// the group never landed, the reservation has nothing to back
		if rerr := s.ledger.ReleaseSponsorFunds(addr, j.cost); rerr != nil {
			logger.WithError(rerr).Error("failed to release reservation after rejected send")
		}
		return "", err
	}

	logger.WithFields(logger.Fields{
		"txid": txid,
		"cost": j.cost,
	}).Info("sponsored group submitted")
	return txid, nil
}

// Confirm blocks until txid is committed, then settles the reservation into
// spend. On a wait timeout the reservation is kept; the reconciler owns the
// final verdict for in-flight groups.
func (s *Submitter) Confirm(ctx context.Context, txid string, cost uint64) (uint64, error) {
	round, err := s.chain.WaitForConfirmation(ctx, txid)
	if err != nil {
		return 0, err
	}
	if err := s.ledger.SettleSponsorFunds(s.signer.Address(), cost); err != nil {
		return 0, err
	}
	return round, nil
}

// Settle converts a reservation into spend for a group the reconciler found
// committed.
func (s *Submitter) Settle(cost uint64) error {
	return s.ledger.SettleSponsorFunds(s.signer.Address(), cost)
}

// Release frees a reservation for a group that provably cannot commit.
func (s *Submitter) Release(cost uint64) error {
	return s.ledger.ReleaseSponsorFunds(s.signer.Address(), cost)
}

// RefreshBalance copies the on-chain balance into the sponsor row.
func (s *Submitter) RefreshBalance(ctx context.Context) error {
	balance, _, err := s.chain.AccountBalance(ctx, s.signer.Address().String())
	if err != nil {
		return err
	}
	return s.ledger.SetSponsorBalance(s.signer.Address(), balance)
}

func (s *Submitter) refreshLoop(ctx context.Context) {
	if s.cfg.BalanceRefresh <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.BalanceRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RefreshBalance(ctx); err != nil {
				logger.WithError(err).Warn("sponsor balance refresh failed")
			}
		}
	}
}

// Health reports the sponsor's funding position.
func (s *Submitter) Health() (*state.SponsorState, error) {
	return s.ledger.GetSponsorState(s.signer.Address())
}
