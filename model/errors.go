package model

import "errors"

// Error taxonomy surfaced by registry operations. Every failure aborts the
// whole operation with no partial state written; callers match with
// errors.Is after unwrapping.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyRegistered   = errors.New("account already registered")
	ErrUnknownAccount      = errors.New("unknown account")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrRecordNotFound      = errors.New("record not found")
)
