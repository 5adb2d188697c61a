package algoman

import (
	"bytes"
	"context"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	logger "github.com/sirupsen/logrus"
)

// TxnInfo is the ledger-side view of one committed transaction, flattened
// from the indexer's representation to the fields reconciliation needs.
type TxnInfo struct {
	TxID     string
	Round    uint64
	Sender   string
	Receiver string
	AssetID  uint64 // 0 for plain algo payments
	Amount   uint64
	Group    []byte
}

// Gateway is the chain surface the orchestrator depends on. Algoman is the
// production implementation; Simulated backs the tests.
type Gateway interface {
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	SendRawGroup(ctx context.Context, blobs [][]byte) (string, error)
	WaitForConfirmation(ctx context.Context, txid string) (uint64, error)
	LatestRound(ctx context.Context) (uint64, error)
	AccountBalance(ctx context.Context, addr string) (uint64, uint64, error)
	HoldsAsset(ctx context.Context, addr string, assetID uint64) (bool, error)
	AssetBalance(ctx context.Context, addr string, assetID uint64) (uint64, error)
	LookupTransaction(ctx context.Context, txid string) (TxnInfo, error)
	SearchReceived(ctx context.Context, addr string, assetID uint64, minRound, maxRound uint64, next string) ([]TxnInfo, string, error)
}

// Algoman talks to one algod node and, when configured, one indexer.
type Algoman struct {
	cfg   Config
	node  *algod.Client
	index *indexer.Client
}

func NewAlgoman(cfg Config) (*Algoman, error) {
	node, err := algod.MakeClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return nil, err
	}

	a := &Algoman{cfg: cfg, node: node}
	if cfg.IndexerURL != "" {
		idx, err := indexer.MakeClient(cfg.IndexerURL, cfg.IndexerToken)
		if err != nil {
			return nil, err
		}
		a.index = idx
	} else {
		logger.Warn("no indexer configured, deposit scanning disabled")
	}
	return a, nil
}

func (a *Algoman) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.cfg.RequestTimeout)
}

func (a *Algoman) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.node.SuggestedParams().Do(ctx)
}

// SendRawGroup submits the concatenated signed blobs as one atomic group.
// Rejections are folded into the sentinel taxonomy before returning.
func (a *Algoman) SendRawGroup(ctx context.Context, blobs [][]byte) (string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	txid, err := a.node.SendRawTransaction(bytes.Join(blobs, nil)).Do(ctx)
	if err != nil {
		cat := CategorizeRejection(err)
		logger.WithError(err).WithField("category", cat).Error("group submission rejected")
		return "", cat
	}
	return txid, nil
}

func (a *Algoman) WaitForConfirmation(ctx context.Context, txid string) (uint64, error) {
	info, err := transaction.WaitForConfirmation(a.node, txid, a.cfg.WaitRounds, ctx)
	if err != nil {
		return 0, ErrWaitTimeout
	}
	return info.ConfirmedRound, nil
}

func (a *Algoman) LatestRound(ctx context.Context) (uint64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	status, err := a.node.Status().Do(ctx)
	if err != nil {
		return 0, err
	}
	return status.LastRound, nil
}

func (a *Algoman) AccountBalance(ctx context.Context, addr string) (uint64, uint64, error) {
	acct, err := a.accountInfo(ctx, addr)
	if err != nil {
		return 0, 0, err
	}
	return acct.Amount, acct.MinBalance, nil
}

func (a *Algoman) HoldsAsset(ctx context.Context, addr string, assetID uint64) (bool, error) {
	acct, err := a.accountInfo(ctx, addr)
	if err != nil {
		return false, err
	}
	for _, holding := range acct.Assets {
		if holding.AssetId == assetID {
			return true, nil
		}
	}
	return false, nil
}

func (a *Algoman) AssetBalance(ctx context.Context, addr string, assetID uint64) (uint64, error) {
	acct, err := a.accountInfo(ctx, addr)
	if err != nil {
		return 0, err
	}
	for _, holding := range acct.Assets {
		if holding.AssetId == assetID {
			return holding.Amount, nil
		}
	}
	return 0, nil
}

func (a *Algoman) accountInfo(ctx context.Context, addr string) (models.Account, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.node.AccountInformation(addr).Do(ctx)
}

// LookupTransaction resolves a committed transaction through the indexer.
// Without one it falls back to the node's pending-transaction endpoint, which
// keeps recently confirmed transactions long enough for outbound
// reconciliation to settle them.
func (a *Algoman) LookupTransaction(ctx context.Context, txid string) (TxnInfo, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if a.index == nil {
		resp, stxn, err := a.node.PendingTransactionInformation(txid).Do(ctx)
		if err != nil || resp.ConfirmedRound == 0 {
			return TxnInfo{}, ErrTxnNotFound
		}
		return flattenSigned(txid, resp.ConfirmedRound, stxn.Txn), nil
	}

	resp, err := a.index.LookupTransaction(txid).Do(ctx)
	if err != nil {
		return TxnInfo{}, ErrTxnNotFound
	}
	return flatten(resp.Transaction), nil
}

// SearchReceived pages through committed transfers into addr within the
// round window. The next token comes back empty on the last page.
func (a *Algoman) SearchReceived(ctx context.Context, addr string, assetID uint64, minRound, maxRound uint64, next string) ([]TxnInfo, string, error) {
	if a.index == nil {
		return nil, "", ErrNoIndexer
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	query := a.index.SearchForTransactions().
		AddressString(addr).
		AddressRole("receiver").
		MinRound(minRound).
		MaxRound(maxRound).
		Limit(searchPageSize)
	if assetID != 0 {
		query = query.AssetID(assetID)
	}
	if next != "" {
		query = query.NextToken(next)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return nil, "", err
	}

	out := make([]TxnInfo, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		out = append(out, flatten(tx))
	}
	return out, resp.NextToken, nil
}

const searchPageSize = 100

func flatten(tx models.Transaction) TxnInfo {
	info := TxnInfo{
		TxID:   tx.Id,
		Round:  tx.ConfirmedRound,
		Sender: tx.Sender,
		Group:  tx.Group,
	}
	switch tx.Type {
	case "pay":
		info.Receiver = tx.PaymentTransaction.Receiver
		info.Amount = tx.PaymentTransaction.Amount
	case "axfer":
		info.Receiver = tx.AssetTransferTransaction.Receiver
		info.Amount = tx.AssetTransferTransaction.Amount
		info.AssetID = tx.AssetTransferTransaction.AssetId
	}
	return info
}

// flattenSigned mirrors flatten for the node's pending-info view, which hands
// back the raw signed transaction instead of the indexer model.
func flattenSigned(txid string, round uint64, tx types.Transaction) TxnInfo {
	info := TxnInfo{
		TxID:   txid,
		Round:  round,
		Sender: tx.Sender.String(),
	}
	if tx.Group != (types.Digest{}) {
		info.Group = append([]byte(nil), tx.Group[:]...)
	}
	switch tx.Type {
	case types.PaymentTx:
		info.Receiver = tx.Receiver.String()
		info.Amount = uint64(tx.Amount)
	case types.AssetTransferTx:
		info.Receiver = tx.AssetReceiver.String()
		info.AssetID = uint64(tx.XferAsset)
		info.Amount = tx.AssetAmount
	}
	return info
}
