package datastore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Driver identifies a backend driver.
type Driver string

const (
	// DriverS3 is the S3-compatible object storage driver.
	DriverS3 Driver = "s3"
)

// Open selects a Backend implementation using environment variables.
//
//	OAKDS_DRIVER: s3 (default s3)
//	(S3 specific variables documented in s3.go)
func Open(ctx context.Context) (Backend, error) {
	driver := os.Getenv("OAKDS_DRIVER")
	if driver == "" {
		driver = string(DriverS3)
	}
	switch Driver(strings.ToLower(driver)) {
	case DriverS3:
		return OpenFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown datastore driver %s", driver)
	}
}
