package s3

import (
	"testing"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

func TestStorageKeyInsertsSeparator(t *testing.T) {
	got := storageKey("0123456789abcdef")
	if got != "0123-456789abcdef" {
		t.Fatalf("unexpected storage key: %s", got)
	}
}

func TestIdentifierFromKeyRoundTrip(t *testing.T) {
	ids := []string{
		"0123456789abcdef",
		"e1fa2d0c-8b4f-4a6e-9c3d-1b2a3c4d5e6f-1714670000000",
		"abcd",
	}
	for _, id := range ids {
		key := storageKey(core.Identifier(id))
		back, ok := identifierFromKey(key)
		if !ok {
			t.Fatalf("key %s did not decode", key)
		}
		if string(back) != id {
			t.Fatalf("round trip mismatch: %s != %s", back, id)
		}
	}
}

func TestIdentifierFromKeyMetaPassthrough(t *testing.T) {
	id, ok := identifierFromKey("META/reference.key")
	if !ok {
		t.Fatalf("meta key should decode")
	}
	if string(id) != "META/reference.key" {
		t.Fatalf("meta key must pass through unchanged, got %s", id)
	}
}

func TestIdentifierFromKeyRejectsMalformed(t *testing.T) {
	if _, ok := identifierFromKey("noseparatorhere"); ok {
		t.Fatalf("key without separator should be rejected")
	}
}

func TestIdentifierFromKeyRejectsShortForeignKeys(t *testing.T) {
	// Objects written to the container out-of-band can carry arbitrary keys;
	// listing must skip them rather than panic.
	for _, key := range []string{"a-b", "-", "ab-", "1-23"} {
		if _, ok := identifierFromKey(key); ok {
			t.Fatalf("short foreign key %q should be rejected", key)
		}
	}
}

func TestMetaKeyPrefixing(t *testing.T) {
	if metaKey("lastModified") != "META/lastModified" {
		t.Fatalf("unexpected meta key: %s", metaKey("lastModified"))
	}
	if stripMetaKeyPrefix("META/repository.id") != "repository.id" {
		t.Fatalf("prefix not stripped")
	}
}
