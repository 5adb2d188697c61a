package router

import (
	"errors"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/keyservice"
	"github.com/caesar4321/confio-go/sponsor"
	"github.com/caesar4321/confio-go/state"
)

var (
	ErrUnknownOperation = errors.New("no prepared operation with that id")
	ErrPrepareExpired   = errors.New("prepared group expired before submission")
)

// ErrorCode is the closed enum the API edge serves. New internal failure
// modes must map onto an existing code, never leak free text.
type ErrorCode string

const (
	CodeInvalidRequest     ErrorCode = "invalid_request"
	CodeUnknownOperation   ErrorCode = "unknown_operation"
	CodePrepareExpired     ErrorCode = "prepare_expired"
	CodeNotOptedIn         ErrorCode = "not_opted_in"
	CodeInsufficientFunds  ErrorCode = "insufficient_funds"
	CodeBadSignature       ErrorCode = "bad_signature"
	CodeSponsorUnavailable ErrorCode = "sponsor_unavailable"
	CodeRejectedOnChain    ErrorCode = "rejected_onchain"
	CodeInternal           ErrorCode = "internal"
)

// Classify folds any error from the prepare/submit paths into the API enum.
func Classify(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownOperation), errors.Is(err, state.ErrRecordNotFound):
		return CodeUnknownOperation
	case errors.Is(err, ErrPrepareExpired):
		return CodePrepareExpired
	case errors.Is(err, groupbuilder.ErrNotOptedIn), errors.Is(err, algoman.ErrAssetNotOptedIn):
		return CodeNotOptedIn
	case errors.Is(err, groupbuilder.ErrInsufficientBalance), errors.Is(err, algoman.ErrBelowMinBalance):
		return CodeInsufficientFunds
	case errors.Is(err, groupbuilder.ErrInvalidAmount),
		errors.Is(err, groupbuilder.ErrUnknownAsset),
		errors.Is(err, groupbuilder.ErrUnknownApp),
		errors.Is(err, groupbuilder.ErrUnknownOp),
		errors.Is(err, groupbuilder.ErrMissingParty),
		errors.Is(err, groupbuilder.ErrBadBoxKey):
		return CodeInvalidRequest
	case errors.Is(err, sponsor.ErrPositionMissing),
		errors.Is(err, sponsor.ErrPositionMutated),
		errors.Is(err, sponsor.ErrBadUserSignature),
		errors.Is(err, sponsor.ErrWrongAuthorizer),
		errors.Is(err, keyservice.ErrSignerRefused):
		return CodeBadSignature
	case errors.Is(err, state.ErrReserveTooLow),
		errors.Is(err, sponsor.ErrQueueFull),
		errors.Is(err, sponsor.ErrQueueClosed):
		return CodeSponsorUnavailable
	case errors.Is(err, algoman.ErrInsufficientFee),
		errors.Is(err, algoman.ErrLogicRejected),
		errors.Is(err, algoman.ErrTxnRejected):
		return CodeRejectedOnChain
	default:
		return CodeInternal
	}
}
