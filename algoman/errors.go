package algoman

import (
	"errors"
	"strings"
)

var (
	ErrTxnRejected     = errors.New("transaction rejected by node")
	ErrInsufficientFee = errors.New("group fee below pooled minimum")
	ErrBelowMinBalance = errors.New("account would drop below minimum balance")
	ErrAssetNotOptedIn = errors.New("receiver has not opted into asset")
	ErrLogicRejected   = errors.New("application logic rejected the call")
	ErrTxnNotFound     = errors.New("transaction not found")
	ErrWaitTimeout     = errors.New("transaction not confirmed within wait window")
	ErrNoIndexer       = errors.New("indexer not configured")
)

// CategorizeRejection folds the node's free-text rejection into one of the
// stable sentinels so callers can branch without string matching. The node
// does not version these messages, so the match is deliberately loose.
func CategorizeRejection(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "fee") && (strings.Contains(msg, "below") || strings.Contains(msg, "small") || strings.Contains(msg, "insufficient")):
		return ErrInsufficientFee
	case strings.Contains(msg, "balance") && strings.Contains(msg, "below min"):
		return ErrBelowMinBalance
	case strings.Contains(msg, "overspend"):
		return ErrBelowMinBalance
	case strings.Contains(msg, "asset") && strings.Contains(msg, "missing"):
		return ErrAssetNotOptedIn
	case strings.Contains(msg, "hasn't opted in"), strings.Contains(msg, "not opted in"):
		return ErrAssetNotOptedIn
	case strings.Contains(msg, "logic eval error"), strings.Contains(msg, "rejected by logic"), strings.Contains(msg, "assert failed"):
		return ErrLogicRejected
	default:
		return ErrTxnRejected
	}
}
