package types

import (
	"context"
	"errors"
	"fmt"

	"github.com/finch-technologies/storage-manager/storage/transfer"
)

// ErrorCode identifies the category of a storage failure. The known codes form a closed set;
// any other value is a backend specific code (see Error.IsOther).
type ErrorCode string

const (
	CodeObjectNotFound ErrorCode = "object-not-found"
	CodeUnauthorized   ErrorCode = "unauthorized"
	CodeCancelled      ErrorCode = "cancelled"
	CodeDecode         ErrorCode = "decode-error"
	CodeUnknown        ErrorCode = "unknown"
)

// Backend independent codes that fall outside the known set.
const (
	CodeInvalidArgument      ErrorCode = "invalid-argument"
	CodeDownloadSizeExceeded ErrorCode = "download-size-exceeded"
)

var knownCodes = map[ErrorCode]bool{
	CodeObjectNotFound: true,
	CodeUnauthorized:   true,
	CodeCancelled:      true,
	CodeDecode:         true,
	CodeUnknown:        true,
}

// IsKnown reports whether the code belongs to the closed set.
func (c ErrorCode) IsKnown() bool {
	return knownCodes[c]
}

// Error is the normalized error every operation fails with.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

var (
	ErrObjectNotFound = &Error{Code: CodeObjectNotFound, Message: "object not found"}
	ErrUnauthorized   = &Error{Code: CodeUnauthorized, Message: "not authorized"}
	ErrCancelled      = &Error{Code: CodeCancelled, Message: "operation cancelled"}
	ErrDecode         = &Error{Code: CodeDecode, Message: "unable to decode data"}
	ErrUnknown        = &Error{Code: CodeUnknown, Message: "unknown error"}
)

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns an Error of the given code caused by cause.
func Wrap(code ErrorCode, cause error) *Error {
	msg := string(code)
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so errors.Is(err, ErrObjectNotFound) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsOther reports whether the code is backend specific.
func (e *Error) IsOther() bool {
	return !e.Code.IsKnown()
}

// CodeOf returns the code of err after normalization. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// Normalize converts any error into an *Error. Cancellation maps to CodeCancelled and
// anything unrecognized to CodeUnknown. Normalize(nil) returns nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, transfer.ErrCancelled) {
		return Wrap(CodeCancelled, err)
	}

	return Wrap(CodeUnknown, err)
}
