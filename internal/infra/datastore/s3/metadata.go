package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

// Metadata records live under the META/ namespace and are looked up by name,
// never mapped back to content identifiers.

func (s *Store) AddMetadataRecord(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("%w: metadata name required", core.ErrInvalidArgument)
	}
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		return err
	}
	s.touchLastModified(ctx, h)
	_, err = h.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(metaKey(name)),
		Body:   bytes.NewReader(data),
	})
	recordOp("addMetadata", err)
	if err != nil {
		s.log.Info("error adding metadata record",
			zap.String("metadataName", name), zap.Int("length", len(data)), zap.Error(err))
		return &core.BackendError{Op: "addMetadata", Key: metaKey(name), Err: err}
	}
	s.log.Debug("metadata record added",
		zap.String("metadataName", name), zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Store) GetMetadataRecord(ctx context.Context, name string) (core.Record, error) {
	if name == "" {
		return core.Record{}, fmt.Errorf("%w: metadata name required", core.ErrInvalidArgument)
	}
	h, err := s.provider.Container(ctx)
	if err != nil {
		return core.Record{}, err
	}
	head, err := h.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(metaKey(name)),
	})
	recordOp("getMetadata", err)
	if isNotFound(err) {
		s.log.Warn("trying to read missing metadata", zap.String("metadataName", name))
		return core.Record{}, fmt.Errorf("%w: metadataName=%s", core.ErrNotFound, name)
	}
	if err != nil {
		s.log.Info("error reading metadata record", zap.String("metadataName", name), zap.Error(err))
		return core.Record{}, &core.BackendError{Op: "getMetadata", Key: metaKey(name), Err: err}
	}
	return core.Record{
		Identifier:   core.Identifier(name),
		Length:       aws.ToInt64(head.ContentLength),
		LastModified: s.lastModified(ctx, h, aws.ToTime(head.LastModified)),
		Meta:         true,
	}, nil
}

// GetAllMetadataRecords is best-effort: provider errors are logged and a
// partial (possibly empty) list is returned rather than failing the caller.
func (s *Store) GetAllMetadataRecords(ctx context.Context, prefix string) []core.Record {
	start := time.Now()
	var records []core.Record
	h, err := s.provider.Container(ctx)
	if err != nil {
		s.log.Info("error reading all metadata records", zap.String("metadataFolder", prefix), zap.Error(err))
		return records
	}
	marker := s.lastModified(ctx, h, time.Time{})

	var token *string
	for {
		out, err := h.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(h.bucket),
			Prefix:            aws.String(metaKey(prefix)),
			ContinuationToken: token,
		})
		if err != nil {
			s.log.Info("error reading all metadata records",
				zap.String("metadataFolder", prefix), zap.Error(err))
			return records
		}
		for _, obj := range out.Contents {
			lm := marker
			if lm.IsZero() {
				lm = aws.ToTime(obj.LastModified)
			}
			records = append(records, core.Record{
				Identifier:   core.Identifier(stripMetaKeyPrefix(aws.ToString(obj.Key))),
				Length:       aws.ToInt64(obj.Size),
				LastModified: lm,
				Meta:         true,
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	s.log.Debug("metadata records read", zap.Int("recordsRead", len(records)),
		zap.String("metadataFolder", prefix), zap.Duration("duration", time.Since(start)))
	return records
}

// DeleteMetadataRecord reports whether the record existed; provider errors
// are logged and reported as false.
func (s *Store) DeleteMetadataRecord(ctx context.Context, name string) bool {
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		s.log.Info("error deleting metadata record", zap.String("metadataName", name), zap.Error(err))
		return false
	}
	if !s.MetadataRecordExists(ctx, name) {
		s.log.Debug("metadata record delete requested, but it does not exist (perhaps already deleted)",
			zap.String("metadataName", name))
		return false
	}
	_, err = h.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(metaKey(name)),
	})
	recordOp("deleteMetadata", err)
	if err != nil {
		s.log.Info("error deleting metadata record", zap.String("metadataName", name), zap.Error(err))
		return false
	}
	s.log.Debug("metadata record deleted", zap.String("metadataName", name),
		zap.Duration("duration", time.Since(start)))
	return true
}

// DeleteAllMetadataRecords is best-effort across items; errors abort the
// sweep but are only logged.
func (s *Store) DeleteAllMetadataRecords(ctx context.Context, prefix string) {
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		s.log.Info("error deleting all metadata records", zap.String("metadataFolder", prefix), zap.Error(err))
		return
	}
	total := 0
	var token *string
	for {
		out, err := h.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(h.bucket),
			Prefix:            aws.String(metaKey(prefix)),
			ContinuationToken: token,
		})
		if err != nil {
			s.log.Info("error deleting all metadata records",
				zap.String("metadataFolder", prefix), zap.Error(err))
			return
		}
		for _, obj := range out.Contents {
			if _, err := h.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
				Bucket: aws.String(h.bucket),
				Key:    obj.Key,
			}); err != nil {
				s.log.Info("error deleting metadata record",
					zap.String("metadataName", aws.ToString(obj.Key)), zap.Error(err))
				continue
			}
			total++
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	s.log.Debug("metadata records deleted", zap.Int("recordsDeleted", total),
		zap.String("metadataFolder", prefix), zap.Duration("duration", time.Since(start)))
}

func (s *Store) MetadataRecordExists(ctx context.Context, name string) bool {
	start := time.Now()
	h, err := s.provider.Container(ctx)
	if err != nil {
		s.log.Debug("error checking existence of metadata record", zap.String("metadataName", name), zap.Error(err))
		return false
	}
	_, err = h.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(metaKey(name)),
	})
	if isNotFound(err) {
		return false
	}
	if err != nil {
		s.log.Debug("error checking existence of metadata record", zap.String("metadataName", name), zap.Error(err))
		return false
	}
	s.log.Debug("metadata record exists", zap.String("metadataName", name),
		zap.Duration("duration", time.Since(start)))
	return true
}

// readMetadataBytes returns the full content of a metadata record, or
// (nil, nil) when the record is absent.
func (s *Store) readMetadataBytes(ctx context.Context, name string) ([]byte, error) {
	h, err := s.provider.Container(ctx)
	if err != nil {
		return nil, err
	}
	out, err := h.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(metaKey(name)),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.BackendError{Op: "readMetadata", Key: metaKey(name), Err: err}
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
