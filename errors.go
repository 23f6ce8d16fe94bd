// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package brisk

import "fmt"

// ErrCode is the error code carried by errors from the store APIs
type ErrCode int

const (
	// ErrReserved should not be used
	ErrReserved ErrCode = iota
	// ErrFatal means the API encountered a fatal error, for example a
	// local block file the store claims exists cannot be read
	ErrFatal
	// ErrKeyNotFound means the requested key does not exist where the
	// operation's contract requires it to
	ErrKeyNotFound
	// ErrBadArguments means the arguments or a payload were invalid
	ErrBadArguments
	// ErrOperationFailed means the underlying store returned an error.
	// The message carries the cause so transient transport failures can
	// be told apart from logical ones
	ErrOperationFailed
	// ErrSchemaBad means the schema could not be created or verified
	ErrSchemaBad
)

// Error represents the error returned from the store APIs
type Error struct {
	Code ErrCode // This can be used as sentinal value
	Msg  string  // This is for humans
}

// NewError returns a new error
func NewError(code ErrCode, msg string, args ...interface{}) error {
	return &Error{Code: code, Msg: fmt.Sprintf(msg, args...)}
}

// ErrorCode returns a readable string for ErrCode
func (err *Error) ErrorCode() string {
	switch err.Code {
	default:
		return "Unknown error"
	case ErrFatal:
		return "Fatal store error"
	case ErrKeyNotFound:
		return "Key not found"
	case ErrBadArguments:
		return "Bad arguments"
	case ErrOperationFailed:
		return "Operation failed"
	case ErrSchemaBad:
		return "Schema setup failed"
	}
}

func (err *Error) Error() string {
	return fmt.Sprintf("Error: %s: %s", err.ErrorCode(), err.Msg)
}
