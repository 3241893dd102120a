package s3

import (
	"errors"
	"testing"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

func TestUploadTokenRoundTrip(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	token, err := encodeUploadToken(secret, "0123-456789abcdef", "session-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	key, uploadID, err := decodeUploadToken(secret, token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if key != "0123-456789abcdef" || uploadID != "session-1" {
		t.Fatalf("round trip mismatch: key=%s uploadID=%s", key, uploadID)
	}
}

func TestUploadTokenDeterministic(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	a, err := encodeUploadToken(secret, "0123-456789abcdef", "s")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := encodeUploadToken(secret, "0123-456789abcdef", "s")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if a != b {
		t.Fatalf("same inputs must encode identically")
	}
}

func TestUploadTokenTamperDetected(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	token, err := encodeUploadToken(secret, "0123-456789abcdef", "session-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, _, err := decodeUploadToken(secret, tampered); !errors.Is(err, core.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUploadTokenWrongSecret(t *testing.T) {
	token, err := encodeUploadToken([]byte("secret-aaaaaaaaaaaaaaaaaaaaaaaaa"), "0123-456789abcdef", "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, _, err := decodeUploadToken([]byte("secret-bbbbbbbbbbbbbbbbbbbbbbbbb"), token); !errors.Is(err, core.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUploadTokenGarbageRejected(t *testing.T) {
	if _, _, err := decodeUploadToken([]byte("secret"), "not-a-token"); !errors.Is(err, core.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
