// Package datastore re-exports the core backend abstractions for stable
// imports from commands and embedding applications.
package datastore

import (
	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

type (
	// Identifier is an opaque content identifier assigned by the store.
	Identifier = core.Identifier
	// Record describes a stored blob or metadata record.
	Record = core.Record
	// Upload carries everything a client needs for a direct upload.
	Upload = core.Upload
	// UploadOptions configures direct upload initiation.
	UploadOptions = core.UploadOptions
	// DownloadOptions configures presigned download URI creation.
	DownloadOptions = core.DownloadOptions
	// Iterator walks a listing one element at a time.
	Iterator[T any] = core.Iterator[T]
	// Backend is the interface for content-addressable storage backends.
	Backend = core.Backend
	// DirectAccess is the optional direct client transfer surface.
	DirectAccess = core.DirectAccess
)

var (
	// ErrNoCredentials indicates no usable authentication mode was configured.
	ErrNoCredentials = core.ErrNoCredentials
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrInvalidArgument indicates a caller-supplied parameter was rejected.
	ErrInvalidArgument = core.ErrInvalidArgument
	// ErrInvalidToken indicates an upload token failed verification.
	ErrInvalidToken = core.ErrInvalidToken
	// ErrUploadIncomplete indicates completion was requested with no parts uploaded.
	ErrUploadIncomplete = core.ErrUploadIncomplete
	// ErrKeyStore indicates the reference signing secret could not be obtained.
	ErrKeyStore = core.ErrKeyStore
)
