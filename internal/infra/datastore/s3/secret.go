package s3

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

// GetOrCreateReferenceKey returns the store's persistent signing secret,
// creating it on first use. Once read into memory the secret is reused for
// the process lifetime. Concurrent creators across processes race benignly:
// each writes then re-reads, and the last writer's persisted bytes are
// authoritative for all readers.
func (s *Store) GetOrCreateReferenceKey(ctx context.Context) ([]byte, error) {
	s.secretMu.Lock()
	defer s.secretMu.Unlock()
	if len(s.secret) > 0 {
		return s.secret, nil
	}

	key, err := s.readMetadataBytes(ctx, refKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyStore, err)
	}
	if key == nil {
		fresh := make([]byte, referenceSecretLength)
		if _, err := rand.Read(fresh); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrKeyStore, err)
		}
		if err := s.AddMetadataRecord(ctx, refKey, fresh); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrKeyStore, err)
		}
		// Re-read rather than trusting the just-written bytes; a concurrent
		// writer may have won the race.
		key, err = s.readMetadataBytes(ctx, refKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrKeyStore, err)
		}
		if key == nil {
			return nil, fmt.Errorf("%w: reference key missing after write", core.ErrKeyStore)
		}
	}
	s.secret = key
	return s.secret, nil
}
