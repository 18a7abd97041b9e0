package model

import "errors"

// Error taxonomy surfaced by every vault operation. Operations wrap these with
// context; callers classify with errors.Is or Kind.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidProof        = errors.New("invalid transfer proof")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInvalidState        = errors.New("invalid state")
	ErrTransfer            = errors.New("transfer failed")
	ErrNotFound            = errors.New("vault not found")
)

// ErrorKind is the short label of a taxonomy member, used in metrics and history.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindAuthorization       ErrorKind = "authorization"
	KindInvalidProof        ErrorKind = "invalid_proof"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindInvalidParameter    ErrorKind = "invalid_parameter"
	KindInvalidState        ErrorKind = "invalid_state"
	KindTransfer            ErrorKind = "transfer"
	KindNotFound            ErrorKind = "not_found"
	KindInternal            ErrorKind = "internal"
)

// Kind maps err to its taxonomy label. Errors outside the taxonomy are internal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrInvalidProof):
		return KindInvalidProof
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrTransfer):
		return KindTransfer
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
