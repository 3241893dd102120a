package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials indicates that none of the supported authentication
	// modes had sufficient configuration fields.
	ErrNoCredentials = errors.New("datastore: no usable credential mode")
	// ErrNotFound indicates a read or get on an absent record.
	ErrNotFound = errors.New("datastore: record not found")
	// ErrInvalidArgument indicates a protocol precondition violated by the
	// caller, not a backend fault.
	ErrInvalidArgument = errors.New("datastore: invalid argument")
	// ErrInvalidToken indicates an upload token whose signature does not
	// verify or whose structure is malformed.
	ErrInvalidToken = errors.New("datastore: invalid upload token")
	// ErrUploadIncomplete indicates a completion call for a token under
	// which nothing was ever uploaded.
	ErrUploadIncomplete = errors.New("datastore: nothing uploaded for token")
	// ErrKeyStore indicates an I/O failure reading or writing the reference
	// secret.
	ErrKeyStore = errors.New("datastore: reference key store failure")
)

// LengthMismatchError is the content-addressing collision guard: a write to
// an existing identifier declared a different length than the stored record.
type LengthMismatchError struct {
	Identifier Identifier
	Existing   int64
	New        int64
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("datastore: length collision. identifier=%s new length=%d old length=%d",
		e.Identifier, e.New, e.Existing)
}

// BackendError wraps a transport-level provider failure.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("datastore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("datastore: %s key=%s: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
