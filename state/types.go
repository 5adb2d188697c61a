package state

import (
	"errors"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

// RecordStatus is the lifecycle state of a transaction record. Transitions
// only move along the DAG in allowedTransitions; a state is never re-entered.
type RecordStatus string

const (
	StatusPreparing         RecordStatus = "preparing"
	StatusPendingClientSign RecordStatus = "pending_client_sign"
	StatusPendingSubmit     RecordStatus = "pending_submit"
	StatusSubmitted         RecordStatus = "submitted"
	StatusConfirmed         RecordStatus = "confirmed"
	StatusFailedExpired     RecordStatus = "failed_expired"
	StatusFailedRejected    RecordStatus = "failed_rejected"
	StatusExpired           RecordStatus = "expired"
)

var allowedTransitions = map[RecordStatus][]RecordStatus{
	StatusPreparing:         {StatusPendingClientSign, StatusFailedRejected},
	StatusPendingClientSign: {StatusPendingSubmit, StatusExpired},
	StatusPendingSubmit:     {StatusSubmitted, StatusFailedRejected, StatusExpired},
	StatusSubmitted:         {StatusConfirmed, StatusFailedExpired, StatusFailedRejected},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to RecordStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func IsTerminal(s RecordStatus) bool {
	return len(allowedTransitions[s]) == 0
}

var (
	ErrBadStatusTransition = errors.New("illegal transaction record status transition")
	ErrRecordNotFound      = errors.New("transaction record not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrSponsorNotFound     = errors.New("sponsor state not found")
	ErrCursorConflict      = errors.New("indexer cursor version conflict")
	ErrReserveTooLow       = errors.New("sponsor reserve too low")
	ErrDuplicateGroupID    = errors.New("duplicate group id")
)

// TransactionRecord is the persistent trace of one operation. Created at
// prepare, mutated by the router and the reconciler, never deleted.
type TransactionRecord struct {
	ID           string
	OpKind       common.OpKind
	Actor        string // account key of the initiating party
	Counterparty string // address or account key of the other side, may be empty
	Amount       uint64
	AssetID      uint64
	SponsorCost  uint64 // microalgos the sponsor spends if the group commits
	Status       RecordStatus
	GroupID      string // base64 group id, empty until pending_submit
	TxIDs        []string
	LastValid    uint64 // round past which the group can no longer confirm
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Account binds an opaque account key to its derived on-chain address and
// the set of assets the address has opted into.
type Account struct {
	AccountKey string
	Address    types.Address
	OptInSet   []uint64

	// Pepper material, sealed by the key manager. PrevCipher is kept until
	// GraceUntil while a rotation is in flight.
	PepperCipher []byte
	PepperVer    int64
	PrevCipher   []byte
	GraceUntil   time.Time
}

// OptedIn reports whether the account holds assetID in its opt-in set.
func (a *Account) OptedIn(assetID uint64) bool {
	for _, id := range a.OptInSet {
		if id == assetID {
			return true
		}
	}
	return false
}

// SponsorState mirrors the sponsor_state row: a lower bound on the on-chain
// balance plus the amount currently reserved for in-flight groups.
type SponsorState struct {
	Address    types.Address
	Balance    uint64 // cached on-chain balance in microalgos
	Reserved   uint64 // sum of costs of in-flight groups
	MinReserve uint64
	UpdatedAt  time.Time
}

// Available is what a new group may spend without breaking the reserve floor.
func (s *SponsorState) Available() uint64 {
	floor := s.Reserved + s.MinReserve
	if s.Balance <= floor {
		return 0
	}
	return s.Balance - floor
}

// Scanner names for the indexer_cursor table.
const (
	ScannerInbound  = "inbound_deposits"
	ScannerOutbound = "outbound_confirmations"
)

// Cursor is the last fully processed round of one scanner, with a version
// counter for optimistic concurrency.
type Cursor struct {
	Scanner   string
	LastRound uint64
	Version   int64
}
