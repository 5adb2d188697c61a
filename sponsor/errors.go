package sponsor

import "errors"

var (
	ErrPositionMissing  = errors.New("client omitted a required signed position")
	ErrPositionMutated  = errors.New("returned transaction differs from prepared bytes")
	ErrBadUserSignature = errors.New("client signature does not verify")
	ErrWrongAuthorizer  = errors.New("position signed with an auth address")
	ErrQueueClosed      = errors.New("submitter is shut down")
	ErrQueueFull        = errors.New("submitter queue is full")
)
