package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

func TestComputePartCountNoPreference(t *testing.T) {
	// 500 MB with no URI limit: one part per minimum part size.
	n, err := computePartCount(500_000_000, -1)
	if err != nil {
		t.Fatalf("computePartCount: %v", err)
	}
	want := int64(96) // ceil(500_000_000 / 5 MiB)
	if n != want {
		t.Fatalf("got %d parts, want %d", n, want)
	}
}

func TestComputePartCountTinyUpload(t *testing.T) {
	n, err := computePartCount(10, -1)
	if err != nil {
		t.Fatalf("computePartCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("small uploads still get one part, got %d", n)
	}
}

func TestComputePartCountCappedByMaxURIs(t *testing.T) {
	// 100 MiB split across at most 5 parts: part size fits, so the caller's
	// cap wins over the minimum-part-size partitioning.
	n, err := computePartCount(100*1024*1024, 5)
	if err != nil {
		t.Fatalf("computePartCount: %v", err)
	}
	if n != 5 {
		t.Fatalf("got %d parts, want 5", n)
	}
}

func TestComputePartCountFewPartsNeeded(t *testing.T) {
	// 12 MiB with room for 100 parts: bounded by ceil(total/minPartSize).
	n, err := computePartCount(12*1024*1024, 100)
	if err != nil {
		t.Fatalf("computePartCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d parts, want 3", n)
	}
}

func TestComputePartCountPartTooLarge(t *testing.T) {
	// 100 GiB in 10 parts would need 10 GiB parts, above the provider cap.
	if _, err := computePartCount(100*1024*1024*1024, 10); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestComputePartCountProviderCeiling(t *testing.T) {
	// The provider's part count limit bounds the no-preference case.
	n, err := computePartCount(maxBinaryUploadSize, -1)
	if err != nil {
		t.Fatalf("computePartCount: %v", err)
	}
	if n != maxAllowableUploadURIs {
		t.Fatalf("got %d parts, want %d", n, maxAllowableUploadURIs)
	}
}

func TestInitiateUploadRejectsBadArguments(t *testing.T) {
	store := New(Config{Container: "c", AccountName: "a", AccountKey: "k"})
	ctx := context.Background()

	cases := []struct {
		name    string
		size    int64
		maxURIs int
	}{
		{"zero size", 0, -1},
		{"negative size", -1, -1},
		{"zero URIs", 1024, 0},
		{"negative URIs", 1024, -2},
		{"single put too large", maxSinglePutUploadSize + 1, 1},
		{"exceeds object limit", maxBinaryUploadSize + 1, -1},
	}
	for _, tc := range cases {
		if _, err := store.InitiateUpload(ctx, tc.size, tc.maxURIs, core.UploadOptions{}); !errors.Is(err, core.ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestInitiateUploadDisabledReturnsNil(t *testing.T) {
	store := New(Config{Container: "c", AccountName: "a", AccountKey: "k"})
	up, err := store.InitiateUpload(context.Background(), 1024, -1, core.UploadOptions{})
	if err != nil {
		t.Fatalf("disabled direct upload must not error: %v", err)
	}
	if up != nil {
		t.Fatalf("disabled direct upload must return nil")
	}
}
