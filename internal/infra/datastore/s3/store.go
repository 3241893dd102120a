// Package s3 implements the data store backend contract on S3-compatible
// object storage, including direct client-to-storage transfers via presigned
// URIs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

// Store implements core.Backend and core.DirectAccess against a single
// container (bucket). Safe for concurrent use; listing iterators are not and
// each caller must obtain its own.
type Store struct {
	cfg      Config
	log      *zap.Logger
	provider *containerProvider

	concurrentRequests int

	downloadURIExpirySeconds int
	uploadURIExpirySeconds   int
	verifyDownloadExists     bool
	downloadURICache         *expirable.LRU[string, string]

	secretMu sync.Mutex
	secret   []byte
}

var (
	_ core.Backend      = (*Store)(nil)
	_ core.DirectAccess = (*Store)(nil)
)

// New constructs a Store from cfg. No I/O happens until Init.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	concurrent := cfg.ConcurrentRequests
	if concurrent < defaultConcurrentRequestCount {
		if cfg.ConcurrentRequests != 0 {
			log.Warn("concurrentRequestsPerOperation too low; resetting",
				zap.Int("requested", cfg.ConcurrentRequests),
				zap.Int("effective", defaultConcurrentRequestCount))
		}
		concurrent = defaultConcurrentRequestCount
	} else if concurrent > maxConcurrentRequestCount {
		log.Warn("concurrentRequestsPerOperation too high; resetting",
			zap.Int("requested", cfg.ConcurrentRequests),
			zap.Int("effective", maxConcurrentRequestCount))
		concurrent = maxConcurrentRequestCount
	}
	return &Store{
		cfg:                  cfg,
		log:                  log,
		provider:             newContainerProvider(cfg, log),
		concurrentRequests:   concurrent,
		verifyDownloadExists: cfg.DownloadURIVerifyExists,
	}
}

// Init resolves credentials, optionally creates the container and applies
// the presigned-transfer settings.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		return err
	}

	if s.cfg.CreateContainer {
		_, err := h.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(h.bucket)})
		switch {
		case err == nil:
			s.log.Info("reusing existing container", zap.String("container", h.bucket))
		case isNotFound(err):
			input := &awss3.CreateBucketInput{Bucket: aws.String(h.bucket)}
			if s.provider.region != "us-east-1" {
				input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
					LocationConstraint: types.BucketLocationConstraint(s.provider.region),
				}
			}
			if _, err := h.client.CreateBucket(ctx, input); err != nil {
				return &core.BackendError{Op: "create container", Err: err}
			}
			s.log.Info("new container created", zap.String("container", h.bucket))
		default:
			return &core.BackendError{Op: "check container", Err: err}
		}
	}

	s.SetDownloadURIExpirySeconds(s.cfg.DownloadURIExpirySeconds)
	s.SetDownloadURICacheSize(s.cfg.DownloadURICacheMaxSize)
	s.SetUploadURIExpirySeconds(s.cfg.UploadURIExpirySeconds)

	if s.cfg.CreateReferenceKeyOnInit {
		if _, err := s.GetOrCreateReferenceKey(ctx); err != nil {
			return err
		}
	}
	s.log.Debug("backend initialized", zap.Duration("duration", time.Since(start)))
	return nil
}

// SetDownloadURIExpirySeconds sets the presigned download lifetime; 0
// disables presigned downloads.
func (s *Store) SetDownloadURIExpirySeconds(seconds int) {
	s.downloadURIExpirySeconds = seconds
}

// SetUploadURIExpirySeconds sets the presigned upload lifetime; 0 disables
// direct uploads.
func (s *Store) SetUploadURIExpirySeconds(seconds int) {
	s.uploadURIExpirySeconds = seconds
}

// SetDownloadURICacheSize bounds the download URI cache; 0 or smaller turns
// it off. Entries expire after half the download expiry so a served URI
// always has at least half its nominal lifetime remaining.
func (s *Store) SetDownloadURICacheSize(maxSize int) {
	if maxSize > 0 {
		ttl := time.Duration(s.downloadURIExpirySeconds/2) * time.Second
		s.log.Info("presigned download URI cache enabled",
			zap.Int("maxSize", maxSize), zap.Duration("ttl", ttl))
		s.downloadURICache = expirable.NewLRU[string, string](maxSize, nil, ttl)
	} else {
		s.log.Info("presigned download URI cache disabled")
		s.downloadURICache = nil
	}
}

func (s *Store) Read(ctx context.Context, id core.Identifier) (io.ReadCloser, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: identifier required", core.ErrInvalidArgument)
	}
	key := storageKey(id)
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		return nil, err
	}
	out, err := h.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	recordOp("read", err)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: identifier=%s", core.ErrNotFound, key)
	}
	if err != nil {
		s.log.Info("error reading blob", zap.String("identifier", key), zap.Error(err))
		return nil, &core.BackendError{Op: "read", Key: key, Err: err}
	}
	s.log.Debug("got input stream for blob",
		zap.String("identifier", key), zap.Duration("duration", time.Since(start)))
	return out.Body, nil
}

func (s *Store) Write(ctx context.Context, id core.Identifier, length int64, r io.Reader) error {
	if id == "" {
		return fmt.Errorf("%w: identifier required", core.ErrInvalidArgument)
	}
	if r == nil {
		return fmt.Errorf("%w: source required", core.ErrInvalidArgument)
	}
	key := storageKey(id)
	start := time.Now()
	s.log.Debug("blob write started", zap.String("identifier", key), zap.Int64("length", length))

	h, err := s.provider.Container(ctx)
	if err != nil {
		return err
	}
	head, err := h.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		recordOp("write", err)
		s.log.Info("error writing blob", zap.String("identifier", key), zap.Error(err))
		return &core.BackendError{Op: "write", Key: key, Err: err}
	}

	if err != nil { // absent: upload and stamp the marker
		s.touchLastModified(ctx, h)
		uploader := manager.NewUploader(h.client, func(u *manager.Uploader) {
			u.Concurrency = s.concurrentRequests
		})
		if _, err := uploader.Upload(ctx, &awss3.PutObjectInput{
			Bucket: aws.String(h.bucket),
			Key:    aws.String(key),
			Body:   r,
		}); err != nil {
			recordOp("write", err)
			s.log.Info("error writing blob", zap.String("identifier", key), zap.Error(err))
			return &core.BackendError{Op: "write", Key: key, Err: err}
		}
		recordOp("write", nil)
		s.log.Debug("blob created", zap.String("identifier", key),
			zap.Int64("length", length), zap.Duration("duration", time.Since(start)))
		return nil
	}

	if existing := aws.ToInt64(head.ContentLength); existing != length {
		mismatch := &core.LengthMismatchError{Identifier: id, Existing: existing, New: length}
		recordOp("write", mismatch)
		return mismatch
	}
	// Same length: only the last-modified marker is refreshed, never the
	// blob itself.
	s.touchLastModified(ctx, h)
	recordOp("write", nil)
	s.log.Debug("blob updated", zap.String("identifier", key),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id core.Identifier) (core.Record, error) {
	if id == "" {
		return core.Record{}, fmt.Errorf("%w: identifier required", core.ErrInvalidArgument)
	}
	key := storageKey(id)
	h, err := s.provider.Container(ctx)
	if err != nil {
		return core.Record{}, err
	}
	head, err := h.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	recordOp("getRecord", err)
	if isNotFound(err) {
		s.log.Debug("unable to get record; blob does not exist", zap.String("identifier", key))
		return core.Record{}, fmt.Errorf("%w: identifier=%s", core.ErrNotFound, key)
	}
	if err != nil {
		s.log.Info("error getting record", zap.String("identifier", key), zap.Error(err))
		return core.Record{}, &core.BackendError{Op: "getRecord", Key: key, Err: err}
	}
	return core.Record{
		Identifier:   id,
		Length:       aws.ToInt64(head.ContentLength),
		LastModified: s.lastModified(ctx, h, aws.ToTime(head.LastModified)),
	}, nil
}

func (s *Store) Exists(ctx context.Context, id core.Identifier) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: identifier required", core.ErrInvalidArgument)
	}
	key := storageKey(id)
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		return false, err
	}
	_, err = h.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		err = nil
		s.log.Debug("blob exists=false", zap.String("identifier", key),
			zap.Duration("duration", time.Since(start)))
		recordOp("exists", nil)
		return false, nil
	}
	recordOp("exists", err)
	if err != nil {
		return false, &core.BackendError{Op: "exists", Key: key, Err: err}
	}
	s.log.Debug("blob exists=true", zap.String("identifier", key),
		zap.Duration("duration", time.Since(start)))
	return true, nil
}

func (s *Store) DeleteRecord(ctx context.Context, id core.Identifier) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: identifier required", core.ErrInvalidArgument)
	}
	key := storageKey(id)
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		return false, err
	}
	existed, err := s.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !existed {
		s.log.Debug("blob delete requested, but it does not exist (perhaps already deleted)",
			zap.String("identifier", key))
		return false, nil
	}
	_, err = h.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	recordOp("delete", err)
	if err != nil {
		s.log.Info("error deleting blob", zap.String("identifier", key), zap.Error(err))
		return false, &core.BackendError{Op: "delete", Key: key, Err: err}
	}
	s.log.Debug("blob deleted", zap.String("identifier", key),
		zap.Duration("duration", time.Since(start)))
	return true, nil
}

func (s *Store) Close() error {
	s.log.Info("blob store backend closed")
	return nil
}

// CreateDownloadURI returns a presigned read URI for id, or "" when minting
// is disabled, the record is absent (with existence verification on), or the
// mint failed. A cache hit is returned unconditionally; staleness up to the
// cache TTL is accepted.
func (s *Store) CreateDownloadURI(ctx context.Context, id core.Identifier, opts core.DownloadOptions) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: identifier required", core.ErrInvalidArgument)
	}
	if s.downloadURIExpirySeconds <= 0 {
		return "", nil
	}
	domain := s.provider.downloadDomain(opts.IgnoreDomainOverride)
	if domain == "" {
		s.log.Warn("can't create download URI: no storage domain", zap.String("identifier", string(id)))
		return "", nil
	}

	cacheKey := string(id) + domain + opts.ContentTypeHeader + opts.ContentDispositionHeader
	if s.downloadURICache != nil {
		if uri, ok := s.downloadURICache.Get(cacheKey); ok {
			downloadURICacheEvents.WithLabelValues("hit").Inc()
			return uri, nil
		}
		downloadURICacheEvents.WithLabelValues("miss").Inc()
	}

	key := storageKey(id)
	if s.verifyDownloadExists {
		// Existence is authoritative on the miss path even if a stale cache
		// entry would have been usable.
		ok, err := s.Exists(ctx, id)
		if err != nil {
			s.log.Warn("can't create download URI for blob; existence check failed",
				zap.String("identifier", key), zap.Error(err))
			return "", nil
		}
		if !ok {
			s.log.Warn("can't create download URI for nonexistent blob",
				zap.String("identifier", key))
			return "", nil
		}
	}

	uri, err := s.provider.Mint(ctx, key, permissionRead, s.downloadURIExpirySeconds, mintParams{
		domain:             domain,
		contentType:        opts.ContentTypeHeader,
		contentDisposition: opts.ContentDispositionHeader,
	})
	recordPresign(permissionRead, err)
	if err != nil {
		s.log.Error("can't generate presigned download URI",
			zap.String("identifier", key), zap.Error(err))
		return "", nil
	}
	if s.downloadURICache != nil {
		s.downloadURICache.Add(cacheKey, uri)
	}
	return uri, nil
}

// touchLastModified stamps the container-wide write marker. Deliberately
// coarse; consumed as a liveness and GC signal, not per-blob metadata.
func (s *Store) touchLastModified(ctx context.Context, h *containerHandle) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := h.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(metaKey(lastModifiedKey)),
		Body:   strings.NewReader(now),
	})
	if err != nil {
		s.log.Warn("unable to refresh last-modified marker", zap.Error(err))
	}
}

// lastModified resolves the container-wide marker, falling back to the
// provider timestamp when the marker is absent or unreadable.
func (s *Store) lastModified(ctx context.Context, h *containerHandle, fallback time.Time) time.Time {
	b, err := s.readMetadataBytes(ctx, lastModifiedKey)
	if err == nil && b != nil {
		if ms, perr := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64); perr == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return fallback
}

func generateIdentifier() core.Identifier {
	return core.Identifier(fmt.Sprintf("%s-%d", uuid.New(), time.Now().UnixMilli()))
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func isNoSuchUpload(err error) bool {
	if err == nil {
		return false
	}
	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload"
}
