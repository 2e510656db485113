package nvram

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint8

const (
	RetCSuccess              RetCode = iota // 0: No error.
	RetCTruncated                           // 1: Buffer or value shorter than required.
	RetCBadMagic                            // 2: Magic field does not match.
	RetCChecksumMismatch                    // 3: Stored and computed checksum differ.
	RetCSizeExceeded                        // 4: Declared length does not fit the region.
	RetCNotFound                            // 5: No entry matches the key.
	RetCInvalidLength                       // 6: Value length violates the type's unit size.
	RetCNotNullTerminated                   // 7: String value lacks its terminator.
	RetCAuthenticationFailed                // 8: Signature verification failed.
	RetCCommitFailed                        // 9: Store could not be made durable.
	RetCStorageIO                           // 10: Raw storage read or write failed.
	RetCOutOfMemory                         // 11: Allocation refused.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCTruncated:
		return "Truncated"
	case RetCBadMagic:
		return "BadMagic"
	case RetCChecksumMismatch:
		return "ChecksumMismatch"
	case RetCSizeExceeded:
		return "SizeExceeded"
	case RetCNotFound:
		return "NotFound"
	case RetCInvalidLength:
		return "InvalidLength"
	case RetCNotNullTerminated:
		return "NotNullTerminated"
	case RetCAuthenticationFailed:
		return "AuthenticationFailed"
	case RetCCommitFailed:
		return "CommitFailed"
	case RetCStorageIO:
		return "StorageIoError"
	case RetCOutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code together with the key or field it concerns.
// Two errors match under errors.Is when their codes are equal, so callers
// compare against the sentinels below.
type Error struct {
	Code  RetCode // The return code
	Field string  // Key or header field implicated, may be empty
	Msg   string  // Human readable detail
	Err   error   // Underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Field != "" {
		msg = fmt.Sprintf("%q: %s", e.Field, msg)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "nvram: " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code, field and message.
func NewError(code RetCode, field, msg string) *Error {
	return &Error{
		Code:  code,
		Field: field,
		Msg:   msg,
	}
}

// WrapError creates a new Error with the given code that wraps err.
func WrapError(code RetCode, field string, err error) *Error {
	return &Error{
		Code:  code,
		Field: field,
		Err:   err,
	}
}

// Code extracts the return code of err, or RetCSuccess if err is nil.
// Errors not produced by this package report RetCStorageIO.
func Code(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCStorageIO
}

// --------------------------------------------------------------------------
// Sentinels
// --------------------------------------------------------------------------

var (
	ErrTruncated            = &Error{Code: RetCTruncated}
	ErrBadMagic             = &Error{Code: RetCBadMagic}
	ErrChecksumMismatch     = &Error{Code: RetCChecksumMismatch}
	ErrSizeExceeded         = &Error{Code: RetCSizeExceeded}
	ErrNotFound             = &Error{Code: RetCNotFound}
	ErrInvalidLength        = &Error{Code: RetCInvalidLength}
	ErrNotNullTerminated    = &Error{Code: RetCNotNullTerminated}
	ErrAuthenticationFailed = &Error{Code: RetCAuthenticationFailed}
	ErrCommitFailed         = &Error{Code: RetCCommitFailed}
	ErrStorageIO            = &Error{Code: RetCStorageIO}
	ErrOutOfMemory          = &Error{Code: RetCOutOfMemory}
)
