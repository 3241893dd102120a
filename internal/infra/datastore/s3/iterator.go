package s3

import (
	"context"
	"io"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

type iterState int

const (
	iterNotStarted iterState = iota
	iterBuffering
	iterExhausted
)

type objectInfo struct {
	key          string
	length       int64
	lastModified time.Time
}

// snapshotIterator walks the container one provider page at a time. It is a
// point-in-time view: objects added or removed after iteration starts may or
// may not be observed. Not safe for concurrent use and not restartable.
type snapshotIterator[T any] struct {
	store     *Store
	transform func(objectInfo) (T, bool)

	state  iterState
	token  *string
	buffer []T
	marker time.Time
}

func (it *snapshotIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		switch it.state {
		case iterExhausted:
			return zero, io.EOF
		case iterNotStarted:
			h, err := it.store.provider.Container(ctx)
			if err != nil {
				it.state = iterExhausted
				return zero, err
			}
			it.marker = it.store.lastModified(ctx, h, time.Time{})
			it.state = iterBuffering
		case iterBuffering:
			if len(it.buffer) > 0 {
				v := it.buffer[0]
				it.buffer = it.buffer[1:]
				return v, nil
			}
			done, err := it.fetchPage(ctx)
			if err != nil {
				it.state = iterExhausted
				return zero, err
			}
			if done && len(it.buffer) == 0 {
				it.state = iterExhausted
			}
		}
	}
}

// fetchPage loads the next provider page into the buffer, reporting whether
// the listing is complete.
func (it *snapshotIterator[T]) fetchPage(ctx context.Context) (bool, error) {
	h, err := it.store.provider.Container(ctx)
	if err != nil {
		return false, err
	}
	out, err := h.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:            aws.String(h.bucket),
		ContinuationToken: it.token,
	})
	recordOp("list", err)
	if err != nil {
		return false, &core.BackendError{Op: "list", Err: err}
	}
	for _, obj := range out.Contents {
		info := objectInfo{
			key:          aws.ToString(obj.Key),
			length:       aws.ToInt64(obj.Size),
			lastModified: it.marker,
		}
		if info.lastModified.IsZero() {
			info.lastModified = aws.ToTime(obj.LastModified)
		}
		if v, ok := it.transform(info); ok {
			it.buffer = append(it.buffer, v)
		}
	}
	if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
		it.token = out.NextContinuationToken
		return false, nil
	}
	return true, nil
}

// GetAllIdentifiers lists every blob identifier in the container. Metadata
// records and objects with unrecognized keys are skipped.
func (s *Store) GetAllIdentifiers(ctx context.Context) (core.Iterator[core.Identifier], error) {
	if _, err := s.provider.Container(ctx); err != nil {
		return nil, err
	}
	return &snapshotIterator[core.Identifier]{
		store: s,
		transform: func(info objectInfo) (core.Identifier, bool) {
			if strings.HasPrefix(info.key, metaKeyPrefix) {
				return "", false
			}
			return identifierFromKey(info.key)
		},
	}, nil
}

// GetAllRecords lists every blob record in the container with its length and
// the container-wide last-modified time.
func (s *Store) GetAllRecords(ctx context.Context) (core.Iterator[core.Record], error) {
	if _, err := s.provider.Container(ctx); err != nil {
		return nil, err
	}
	return &snapshotIterator[core.Record]{
		store: s,
		transform: func(info objectInfo) (core.Record, bool) {
			if strings.HasPrefix(info.key, metaKeyPrefix) {
				return core.Record{}, false
			}
			id, ok := identifierFromKey(info.key)
			if !ok {
				return core.Record{}, false
			}
			return core.Record{
				Identifier:   id,
				Length:       info.length,
				LastModified: info.lastModified,
			}, true
		},
	}, nil
}
