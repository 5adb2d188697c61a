package algoman

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"sync"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

var (
	ErrSimDuplicateGroup = errors.New("group already committed")
	ErrSimBadSignature   = errors.New("signature verification failed")
)

// Simulated is an in-memory chain for tests. It verifies signatures, commits
// groups atomically, applies payment and asset-transfer effects, and serves
// the same read surface as the real gateway. Application calls confirm but
// have no balance effects.
type Simulated struct {
	mu sync.Mutex

	round       uint64
	genesisID   string
	genesisHash types.Digest

	algoBalances  map[string]uint64
	assetBalances map[string]map[uint64]uint64
	optIns        map[string]map[uint64]bool

	confirmed map[string]TxnInfo
	groups    map[string]bool
	received  map[string][]TxnInfo

	failNext error
}

func NewSimulated() *Simulated {
	return &Simulated{
		round:         1000,
		genesisID:     "simnet-v1",
		genesisHash:   types.Digest(common.RandBytes32()),
		algoBalances:  make(map[string]uint64),
		assetBalances: make(map[string]map[uint64]uint64),
		optIns:        make(map[string]map[uint64]bool),
		confirmed:     make(map[string]TxnInfo),
		groups:        make(map[string]bool),
		received:      make(map[string][]TxnInfo),
	}
}

// --- test controls ---

func (s *Simulated) SetAlgoBalance(addr types.Address, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.algoBalances[addr.String()] = amount
}

func (s *Simulated) SetAssetBalance(addr types.Address, assetID, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optInLocked(addr.String(), assetID)
	s.assetBalances[addr.String()][assetID] = amount
}

func (s *Simulated) OptIn(addr types.Address, assetID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optInLocked(addr.String(), assetID)
}

func (s *Simulated) optInLocked(addr string, assetID uint64) {
	if s.optIns[addr] == nil {
		s.optIns[addr] = make(map[uint64]bool)
	}
	if s.assetBalances[addr] == nil {
		s.assetBalances[addr] = make(map[uint64]uint64)
	}
	s.optIns[addr][assetID] = true
}

func (s *Simulated) AdvanceRounds(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round += n
}

// FailNextSubmit injects one rejection into the next SendRawGroup call.
func (s *Simulated) FailNextSubmit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Deposit commits an external inbound transfer outside any prepared group,
// the way a third-party wallet would fund a managed address.
func (s *Simulated) Deposit(txid string, sender, receiver types.Address, assetID, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.round++
	info := TxnInfo{
		TxID:     txid,
		Round:    s.round,
		Sender:   sender.String(),
		Receiver: receiver.String(),
		AssetID:  assetID,
		Amount:   amount,
	}
	s.confirmed[txid] = info
	s.received[receiver.String()] = append(s.received[receiver.String()], info)
	if assetID != 0 {
		s.optInLocked(receiver.String(), assetID)
		s.assetBalances[receiver.String()][assetID] += amount
	} else {
		s.algoBalances[receiver.String()] += amount
	}
}

// --- Gateway ---

func (s *Simulated) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SuggestedParams{
		Fee:             0,
		GenesisID:       s.genesisID,
		GenesisHash:     s.genesisHash[:],
		FirstRoundValid: types.Round(s.round),
		LastRoundValid:  types.Round(s.round + 1000),
		MinFee:          common.MinFee,
	}, nil
}

func (s *Simulated) SendRawGroup(ctx context.Context, blobs [][]byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return "", err
	}

	stxns := make([]types.SignedTxn, len(blobs))
	for i, blob := range blobs {
		if err := msgpack.Decode(blob, &stxns[i]); err != nil {
			return "", ErrTxnRejected
		}
		sender := stxns[i].Txn.Sender
		toSign := common.RawTransactionBytesToSign(stxns[i].Txn)
		if !ed25519.Verify(sender[:], toSign, stxns[i].Sig[:]) {
			return "", ErrSimBadSignature
		}
	}

	var groupKey string
	if len(stxns) > 0 {
		var zero types.Digest
		if gid := stxns[0].Txn.Group; gid != zero {
			groupKey = base64.StdEncoding.EncodeToString(gid[:])
			if s.groups[groupKey] {
				return "", ErrSimDuplicateGroup
			}
		}
	}

	// validity window check against the current round
	for _, stxn := range stxns {
		if uint64(stxn.Txn.LastValid) < s.round {
			return "", ErrTxnRejected
		}
	}

	// all or nothing: validate every position before applying any
	for _, stxn := range stxns {
		if err := s.checkLocked(stxn.Txn); err != nil {
			return "", err
		}
	}

	if groupKey != "" {
		s.groups[groupKey] = true
	}
	s.round++
	var firstID string
	for _, stxn := range stxns {
		txid := sdkcrypto.GetTxID(stxn.Txn)
		if firstID == "" {
			firstID = txid
		}
		s.applyLocked(txid, stxn.Txn)
	}
	return firstID, nil
}

func (s *Simulated) checkLocked(tx types.Transaction) error {
	sender := tx.Sender.String()
	switch tx.Type {
	case types.PaymentTx:
		need := uint64(tx.Fee) + uint64(tx.Amount)
		if s.algoBalances[sender] < need {
			return ErrBelowMinBalance
		}
	case types.AssetTransferTx:
		asset := uint64(tx.XferAsset)
		if !s.optIns[sender][asset] {
			return ErrAssetNotOptedIn
		}
		if !s.optIns[tx.AssetReceiver.String()][asset] {
			return ErrAssetNotOptedIn
		}
		if s.assetBalances[sender][asset] < tx.AssetAmount {
			return ErrBelowMinBalance
		}
	}
	return nil
}

func (s *Simulated) applyLocked(txid string, tx types.Transaction) {
	sender := tx.Sender.String()
	info := TxnInfo{
		TxID:   txid,
		Round:  s.round,
		Sender: sender,
	}
	if gid := tx.Group; gid != (types.Digest{}) {
		info.Group = append([]byte(nil), gid[:]...)
	}

	switch tx.Type {
	case types.PaymentTx:
		receiver := tx.Receiver.String()
		s.algoBalances[sender] -= uint64(tx.Fee) + uint64(tx.Amount)
		s.algoBalances[receiver] += uint64(tx.Amount)
		info.Receiver = receiver
		info.Amount = uint64(tx.Amount)
	case types.AssetTransferTx:
		asset := uint64(tx.XferAsset)
		receiver := tx.AssetReceiver.String()
		s.algoBalances[sender] -= uint64(tx.Fee)
		s.assetBalances[sender][asset] -= tx.AssetAmount
		s.assetBalances[receiver][asset] += tx.AssetAmount
		info.Receiver = receiver
		info.AssetID = asset
		info.Amount = tx.AssetAmount
	default:
		s.algoBalances[sender] -= uint64(tx.Fee)
	}

	s.confirmed[txid] = info
	if info.Receiver != "" && info.Receiver != sender {
		s.received[info.Receiver] = append(s.received[info.Receiver], info)
	}
}

func (s *Simulated) WaitForConfirmation(ctx context.Context, txid string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.confirmed[txid]
	if !ok {
		return 0, ErrWaitTimeout
	}
	return info.Round, nil
}

func (s *Simulated) LatestRound(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round, nil
}

func (s *Simulated) AccountBalance(ctx context.Context, addr string) (uint64, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	minBalance := uint64(100_000) + uint64(100_000)*uint64(len(s.optIns[addr]))
	return s.algoBalances[addr], minBalance, nil
}

func (s *Simulated) HoldsAsset(ctx context.Context, addr string, assetID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optIns[addr][assetID], nil
}

func (s *Simulated) AssetBalance(ctx context.Context, addr string, assetID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assetBalances[addr][assetID], nil
}

func (s *Simulated) LookupTransaction(ctx context.Context, txid string) (TxnInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.confirmed[txid]
	if !ok {
		return TxnInfo{}, ErrTxnNotFound
	}
	return info, nil
}

func (s *Simulated) SearchReceived(ctx context.Context, addr string, assetID uint64, minRound, maxRound uint64, next string) ([]TxnInfo, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TxnInfo
	for _, info := range s.received[addr] {
		if info.Round < minRound || info.Round > maxRound {
			continue
		}
		if assetID != 0 && info.AssetID != assetID {
			continue
		}
		out = append(out, info)
	}
	return out, "", nil
}
