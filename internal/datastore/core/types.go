// Package core defines the abstract data store backend contract shared by
// storage provider implementations.
package core

import (
	"context"
	"io"
	"time"
)

// Identifier is the stable external handle for a stored record, typically
// content-derived. Identifiers of data records must be longer than the
// storage key prefix length used by the backend.
type Identifier string

// Record describes a stored record. It is a read-only view constructed on
// demand; Length and LastModified can become stale after construction.
type Record struct {
	Identifier   Identifier `json:"identifier"`
	Length       int64      `json:"length"`
	LastModified time.Time  `json:"last_modified"`
	Meta         bool       `json:"meta,omitempty"`
}

// UploadOptions configures a direct upload initiation.
type UploadOptions struct {
	// IgnoreDomainOverride forces the default storage domain even when an
	// upload domain override is configured.
	IgnoreDomainOverride bool
}

// DownloadOptions configures a presigned download URI.
type DownloadOptions struct {
	ContentTypeHeader        string
	ContentDispositionHeader string
	IgnoreDomainOverride     bool
}

// Upload describes an initiated direct upload: a signed completion token and
// one presigned write URI per part. Clients upload parts directly to storage
// and then redeem Token via CompleteUpload.
type Upload struct {
	Token       string   `json:"token"`
	MinPartSize int64    `json:"min_part_size"`
	MaxPartSize int64    `json:"max_part_size"`
	PartURIs    []string `json:"part_uris"`
}

// Iterator yields elements of a single listing snapshot. Next returns io.EOF
// once the snapshot is exhausted; an exhausted iterator stays exhausted.
// Iterators are not safe for concurrent use; each caller obtains its own.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, error)
}

// Backend is the abstract record store contract consumed by the repository
// runtime. One implementation exists per storage provider.
type Backend interface {
	// Init prepares the backend for use (credential resolution, container
	// creation, configuration). Must be called before any other operation.
	Init(ctx context.Context) error
	// Read returns the record content. Fails with ErrNotFound if absent.
	Read(ctx context.Context, id Identifier) (io.ReadCloser, error)
	// Write stores length bytes from r under id. Writing an existing
	// identifier with a different declared length fails with
	// LengthMismatchError; with the same length it only refreshes the
	// last-modified marker.
	Write(ctx context.Context, id Identifier, length int64, r io.Reader) error
	// GetRecord returns the record view. Fails with ErrNotFound if absent.
	GetRecord(ctx context.Context, id Identifier) (Record, error)
	// GetAllIdentifiers returns a single-snapshot iterator over all data
	// record identifiers.
	GetAllIdentifiers(ctx context.Context) (Iterator[Identifier], error)
	// GetAllRecords returns a single-snapshot iterator over all data records.
	GetAllRecords(ctx context.Context) (Iterator[Record], error)
	Exists(ctx context.Context, id Identifier) (bool, error)
	// DeleteRecord removes the record, reporting whether it existed.
	DeleteRecord(ctx context.Context, id Identifier) (bool, error)
	Close() error

	// Metadata records live in a namespace distinct from data records and
	// are looked up by name.
	AddMetadataRecord(ctx context.Context, name string, data []byte) error
	// GetMetadataRecord fails with ErrNotFound if the record is absent.
	GetMetadataRecord(ctx context.Context, name string) (Record, error)
	// GetAllMetadataRecords is best-effort: provider errors are logged and a
	// partial (possibly empty) list is returned.
	GetAllMetadataRecords(ctx context.Context, prefix string) []Record
	// DeleteMetadataRecord reports whether the record existed. Provider
	// errors are logged and reported as false.
	DeleteMetadataRecord(ctx context.Context, name string) bool
	// DeleteAllMetadataRecords is best-effort; provider errors are logged.
	DeleteAllMetadataRecords(ctx context.Context, prefix string)
	MetadataRecordExists(ctx context.Context, name string) bool

	// GetOrCreateReferenceKey returns the store's persistent signing secret,
	// creating it on first use. All callers observe the same persisted value.
	GetOrCreateReferenceKey(ctx context.Context) ([]byte, error)
}

// DirectAccess is an optional capability interface for backends that support
// client-to-storage transfers via presigned URIs. Providers without presigned
// URL support simply do not implement it.
type DirectAccess interface {
	// InitiateUpload prepares a direct multi-part upload of at most
	// maxUploadSize bytes split over at most maxPartURIs parts
	// (maxPartURIs == -1 means unbounded). Returns (nil, nil) when direct
	// upload is disabled or best-effort setup failed.
	InitiateUpload(ctx context.Context, maxUploadSize int64, maxPartURIs int, opts UploadOptions) (*Upload, error)
	// CompleteUpload commits the parts uploaded under the token's storage
	// key. Idempotent: redeeming a token whose record already exists returns
	// that record.
	CompleteUpload(ctx context.Context, token string) (Record, error)
	// CreateDownloadURI returns a presigned read URI for id, or "" when
	// minting is disabled or unavailable. Minting failures are logged, not
	// returned as errors.
	CreateDownloadURI(ctx context.Context, id Identifier, opts DownloadOptions) (string, error)
}
