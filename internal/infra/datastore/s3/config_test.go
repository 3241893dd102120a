package s3

import (
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg := ParseConfig(map[string]string{
		PropContainer: "blobs",
	})
	if cfg.Container != "blobs" {
		t.Fatalf("container not carried through")
	}
	if !cfg.CreateContainer {
		t.Fatalf("createContainer should default to true")
	}
	if !cfg.DownloadURIVerifyExists {
		t.Fatalf("presignedDownloadURIVerifyExists should default to true")
	}
	if !cfg.CreateReferenceKeyOnInit {
		t.Fatalf("refOnInit should default to true")
	}
	if cfg.ConcurrentRequests != defaultConcurrentRequestCount {
		t.Fatalf("unexpected default concurrency: %d", cfg.ConcurrentRequests)
	}
	if cfg.DownloadURIExpirySeconds != 0 || cfg.UploadURIExpirySeconds != 0 {
		t.Fatalf("presigned transfers should default to disabled")
	}
}

func TestParseConfigOverrides(t *testing.T) {
	cfg := ParseConfig(map[string]string{
		PropContainer:                "blobs",
		PropCreateContainer:          "false",
		PropPathStyle:                "true",
		PropConcurrentRequests:       "8",
		PropDownloadURIExpirySeconds: "3600",
		PropUploadURIExpirySeconds:   "600",
		PropDownloadURICacheMaxSize:  "200",
		PropDownloadURIVerifyExists:  "false",
		PropCreateReferenceKeyOnInit: "false",
	})
	if cfg.CreateContainer || !cfg.PathStyle || cfg.ConcurrentRequests != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DownloadURIExpirySeconds != 3600 || cfg.UploadURIExpirySeconds != 600 || cfg.DownloadURICacheMaxSize != 200 {
		t.Fatalf("presign settings not applied: %+v", cfg)
	}
	if cfg.DownloadURIVerifyExists || cfg.CreateReferenceKeyOnInit {
		t.Fatalf("boolean overrides not applied: %+v", cfg)
	}
}

func TestParseConfigBadValuesFallBack(t *testing.T) {
	cfg := ParseConfig(map[string]string{
		PropConcurrentRequests: "not-a-number",
		PropCreateContainer:    "not-a-bool",
	})
	if cfg.ConcurrentRequests != defaultConcurrentRequestCount {
		t.Fatalf("bad int should fall back to default, got %d", cfg.ConcurrentRequests)
	}
	if !cfg.CreateContainer {
		t.Fatalf("bad bool should fall back to default")
	}
}

func TestParseConnectionString(t *testing.T) {
	fields := parseConnectionString("AccountName=store1;AccountKey=s3cr3t;Endpoint=http://localhost:9000; Region=eu-west-1 ;;")
	if fields["AccountName"] != "store1" || fields["AccountKey"] != "s3cr3t" {
		t.Fatalf("credentials not parsed: %v", fields)
	}
	if fields["Endpoint"] != "http://localhost:9000" {
		t.Fatalf("endpoint not parsed: %v", fields)
	}
	if fields["Region"] != "eu-west-1" {
		t.Fatalf("whitespace not trimmed: %v", fields)
	}
}

func TestParseConnectionStringIgnoresMalformedPairs(t *testing.T) {
	fields := parseConnectionString("AccountName=a;garbage;AccountKey=b")
	if len(fields) != 2 {
		t.Fatalf("malformed pairs should be skipped: %v", fields)
	}
}
