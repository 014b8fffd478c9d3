// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package sealed

import "fmt"

// Failure codes for the ledger-facing surface. Every rejected
// operation maps onto exactly one of these.
const (
	CodeValidation int32 = iota + 1
	CodeAuthorization
	CodeState
	CodeReplay
	CodeNotFound
	CodeQuota
)

// Error is a coded failure surfaced to ledger callers
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("sealed error %d: %s", e.Code, e.Message)
}

// Errorf builds a coded Error with a formatted message.
func Errorf(code int32, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
