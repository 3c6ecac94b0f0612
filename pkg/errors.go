package bork

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	BadRequest        ErrorCode = "bad-request"
	NotFound          ErrorCode = "not-found"
	AlreadyExists     ErrorCode = "already-exists"
	DBConflict        ErrorCode = "db-conflict"
	InsufficientFunds ErrorCode = "insufficient-funds"
	InvalidTxn        ErrorCode = "invalid-txn"
	InvalidTransition ErrorCode = "invalid-transition"
	NotAvailable      ErrorCode = "not-available"
	RPCError          ErrorCode = "rpc-error"
	Declined          ErrorCode = "declined"
	UnknownError      ErrorCode = "unknown-error"
)

type ErrorInfo struct {
	Code    ErrorCode // machine-readble ErrorCode enumeration
	Message string    // human-readable debug message (recorded as Message.LastError)
}

func (e *ErrorInfo) Error() string {
	return e.Message
}

func NewErr(code ErrorCode, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

func IsNotFoundError(err error) bool {
	return IsError(err, NotFound)
}

func IsAlreadyExistsError(err error) bool {
	return IsError(err, AlreadyExists)
}

func IsDBConflictError(err error) bool {
	return IsError(err, DBConflict)
}

func IsInsufficientFundsError(err error) bool {
	return IsError(err, InsufficientFunds)
}

// IsError also matches wrapped errors.
func IsError(err error, ofType ErrorCode) bool {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info.Code == ofType
	}
	return false
}
