package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorMalformedRequest ErrorCode = "MALFORMED_REQUEST"
	ErrorMalformedMessage ErrorCode = "MALFORMED_MESSAGE"
	ErrorDecode           ErrorCode = "DECODE_ERROR"
	ErrorStorage          ErrorCode = "STORAGE_ERROR"
	ErrorQueue            ErrorCode = "QUEUE_ERROR"
	ErrorControlPlane     ErrorCode = "CONTROL_PLANE_ERROR"
	ErrorLedger           ErrorCode = "LEDGER_ERROR"
	ErrorSource           ErrorCode = "SOURCE_ERROR"
	ErrorBrowser          ErrorCode = "BROWSER_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or
// ErrorInternal when there is none.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}
