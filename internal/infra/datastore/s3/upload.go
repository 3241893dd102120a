package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

// InitiateUpload prepares a direct multi-part upload. Uploads are always
// presented as multi-part with N >= 1 parts, even for small binaries, so
// clients never special-case single-put semantics or provider-specific
// headers; the completion call is required regardless of part count.
//
// Returns (nil, nil) when direct upload is disabled or best-effort setup
// (secret retrieval, URI minting) failed; server-mediated Write remains
// available in that case.
func (s *Store) InitiateUpload(ctx context.Context, maxUploadSize int64, maxPartURIs int, opts core.UploadOptions) (*core.Upload, error) {
	switch {
	case maxUploadSize <= 0:
		return nil, fmt.Errorf("%w: maxUploadSize must be > 0", core.ErrInvalidArgument)
	case maxPartURIs == 0 || maxPartURIs < -1:
		return nil, fmt.Errorf("%w: maxPartURIs must either be > 0 or -1", core.ErrInvalidArgument)
	case maxPartURIs == 1 && maxUploadSize > maxSinglePutUploadSize:
		return nil, fmt.Errorf("%w: cannot do single-part upload with size %d - exceeds max single-part upload size of %d",
			core.ErrInvalidArgument, maxUploadSize, maxSinglePutUploadSize)
	case maxUploadSize > maxBinaryUploadSize:
		return nil, fmt.Errorf("%w: cannot do upload with size %d - exceeds max upload size of %d",
			core.ErrInvalidArgument, maxUploadSize, maxBinaryUploadSize)
	}

	if s.uploadURIExpirySeconds <= 0 {
		return nil, nil
	}

	numParts, err := computePartCount(maxUploadSize, maxPartURIs)
	if err != nil {
		return nil, err
	}

	domain := s.provider.uploadDomain(opts.IgnoreDomainOverride)
	if domain == "" {
		return nil, fmt.Errorf("could not determine domain for direct upload")
	}

	newID := generateIdentifier()
	key := storageKey(newID)

	h, err := s.provider.Container(ctx)
	if err != nil {
		return nil, err
	}
	created, err := h.client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		recordOp("initiateUpload", err)
		s.log.Warn("unable to create upload session", zap.String("identifier", key), zap.Error(err))
		return nil, nil
	}
	uploadID := aws.ToString(created.UploadId)

	partURIs := make([]string, 0, numParts)
	for part := int64(1); part <= numParts; part++ {
		uri, err := s.provider.Mint(ctx, key, permissionWrite, s.uploadURIExpirySeconds, mintParams{
			domain:     domain,
			uploadID:   uploadID,
			partNumber: int32(part),
		})
		recordPresign(permissionWrite, err)
		if err != nil {
			s.log.Error("can't generate presigned upload URI",
				zap.String("identifier", key), zap.Int64("part", part), zap.Error(err))
			s.abortUpload(ctx, h, key, uploadID)
			return nil, nil
		}
		partURIs = append(partURIs, uri)
	}

	secret, err := s.GetOrCreateReferenceKey(ctx)
	if err != nil {
		s.log.Warn("unable to obtain data store key", zap.Error(err))
		s.abortUpload(ctx, h, key, uploadID)
		return nil, nil
	}
	token, err := encodeUploadToken(secret, key, uploadID)
	if err != nil {
		s.log.Warn("unable to sign upload token", zap.Error(err))
		s.abortUpload(ctx, h, key, uploadID)
		return nil, nil
	}
	recordOp("initiateUpload", nil)
	s.log.Debug("direct upload initiated", zap.String("identifier", key),
		zap.Int64("numParts", numParts), zap.Int64("maxUploadSize", maxUploadSize))

	return &core.Upload{
		Token:       token,
		MinPartSize: minMultipartUploadPartSize,
		MaxPartSize: maxMultipartUploadPartSize,
		PartURIs:    partURIs,
	}, nil
}

// computePartCount partitions an upload of at most maxUploadSize bytes into
// parts bounded by the provider's min/max part size and part count limits.
func computePartCount(maxUploadSize int64, maxPartURIs int) (int64, error) {
	if maxPartURIs > 0 {
		requestedPartSize := ceilDiv(maxUploadSize, int64(maxPartURIs))
		if requestedPartSize > maxMultipartUploadPartSize {
			return 0, fmt.Errorf("%w: cannot do multi-part upload with requested part size %d",
				core.ErrInvalidArgument, requestedPartSize)
		}
		return min3(int64(maxPartURIs),
			ceilDiv(maxUploadSize, minMultipartUploadPartSize),
			maxAllowableUploadURIs), nil
	}
	n := ceilDiv(maxUploadSize, minMultipartUploadPartSize)
	if n > maxAllowableUploadURIs {
		n = maxAllowableUploadURIs
	}
	return n, nil
}

func ceilDiv(a, b int64) int64 {
	n := (a + b - 1) / b
	if n < 1 {
		n = 1
	}
	return n
}

func min3(a, b, c int64) int64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// CompleteUpload verifies the token and commits the uploaded parts.
// Idempotent: if a record already exists at the bound storage key it is
// returned as-is, whether the upload finished out-of-band or complete was
// already called once.
func (s *Store) CompleteUpload(ctx context.Context, token string) (core.Record, error) {
	if token == "" {
		return core.Record{}, fmt.Errorf("%w: upload token required", core.ErrInvalidArgument)
	}
	secret, err := s.GetOrCreateReferenceKey(ctx)
	if err != nil {
		return core.Record{}, err
	}
	key, uploadID, err := decodeUploadToken(secret, token)
	if err != nil {
		return core.Record{}, err
	}
	id, ok := identifierFromKey(key)
	if !ok {
		return core.Record{}, fmt.Errorf("%w: malformed storage key", core.ErrInvalidToken)
	}

	record, err := s.GetRecord(ctx, id)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Record{}, err
	}
	if uploadID == "" {
		// No record and no session to commit: the token was never usable.
		return core.Record{}, fmt.Errorf("%w: upload session missing from token for %s",
			core.ErrUploadIncomplete, id)
	}

	h, err := s.provider.Container(ctx)
	if err != nil {
		return core.Record{}, err
	}
	parts, size, err := s.listUploadedParts(ctx, h, key, uploadID)
	if err != nil {
		if isNoSuchUpload(err) {
			return core.Record{}, fmt.Errorf("%w: unknown upload session for %s", core.ErrUploadIncomplete, id)
		}
		recordOp("completeUpload", err)
		return core.Record{}, &core.BackendError{Op: "completeUpload", Key: key, Err: err}
	}
	if len(parts) == 0 {
		return core.Record{}, fmt.Errorf("%w: no parts uploaded for %s", core.ErrUploadIncomplete, id)
	}

	// Commit in ascending part order.
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})
	_, err = h.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:          aws.String(h.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	recordOp("completeUpload", err)
	if err != nil {
		s.log.Info("unable to finalize direct write", zap.String("identifier", key), zap.Error(err))
		return core.Record{}, &core.BackendError{Op: "completeUpload", Key: key, Err: err}
	}
	s.touchLastModified(ctx, h)
	s.log.Debug("direct upload completed", zap.String("identifier", key), zap.Int64("length", size))

	return core.Record{
		Identifier:   id,
		Length:       size,
		LastModified: s.lastModified(ctx, h, time.Now()),
	}, nil
}

// abortUpload discards an upload session that can no longer be handed to a
// client. Without this the session would stay open indefinitely, since no
// token or part URIs were ever issued for it. Best-effort: failures are
// logged, never returned.
func (s *Store) abortUpload(ctx context.Context, h *containerHandle, key, uploadID string) {
	_, err := h.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(h.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil && !isNoSuchUpload(err) {
		s.log.Warn("unable to abort orphaned upload session",
			zap.String("identifier", key), zap.Error(err))
	}
}

// listUploadedParts collects the uncommitted parts of an upload session and
// their total byte length, following part-number markers across pages.
func (s *Store) listUploadedParts(ctx context.Context, h *containerHandle, key, uploadID string) ([]types.CompletedPart, int64, error) {
	var parts []types.CompletedPart
	var size int64
	var marker *string
	for {
		out, err := h.client.ListParts(ctx, &awss3.ListPartsInput{
			Bucket:           aws.String(h.bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(uploadID),
			PartNumberMarker: marker,
		})
		if err != nil {
			return nil, 0, err
		}
		for _, p := range out.Parts {
			parts = append(parts, types.CompletedPart{
				ETag:       p.ETag,
				PartNumber: p.PartNumber,
			})
			size += aws.ToInt64(p.Size)
		}
		if aws.ToBool(out.IsTruncated) && out.NextPartNumberMarker != nil {
			marker = out.NextPartNumberMarker
			continue
		}
		break
	}
	return parts, size, nil
}
