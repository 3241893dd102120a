package datastore

import (
	"context"
	"fmt"
	"os"

	infraS3 "github.com/andreeastroe96/jackrabbit-oak/internal/infra/datastore/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Backend from the provided configuration and
// initializes it.
func NewS3(ctx context.Context, cfg S3Config) (Backend, error) {
	store := infraS3.New(cfg)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// OpenFromEnv constructs an S3 backend using environment variables.
//
//	OAKDS_S3_CONTAINER: bucket name, required
//	OAKDS_S3_REGION, OAKDS_S3_ENDPOINT, OAKDS_S3_PATH_STYLE
//	OAKDS_S3_CONNECTION_STRING or OAKDS_S3_ACCOUNT_NAME / OAKDS_S3_ACCOUNT_KEY
//	OAKDS_S3_SESSION_TOKEN, OAKDS_S3_ROLE_ARN
//	OAKDS_S3_DOWNLOAD_EXPIRY_SECONDS, OAKDS_S3_UPLOAD_EXPIRY_SECONDS
//	OAKDS_S3_DOWNLOAD_CACHE_MAX_SIZE
func OpenFromEnv(ctx context.Context) (Backend, error) {
	container := os.Getenv("OAKDS_S3_CONTAINER")
	if container == "" {
		return nil, fmt.Errorf("OAKDS_S3_CONTAINER required for s3 driver")
	}
	cfg := infraS3.ParseConfig(map[string]string{
		infraS3.PropConnectionString:         os.Getenv("OAKDS_S3_CONNECTION_STRING"),
		infraS3.PropAccountName:              os.Getenv("OAKDS_S3_ACCOUNT_NAME"),
		infraS3.PropAccountKey:               os.Getenv("OAKDS_S3_ACCOUNT_KEY"),
		infraS3.PropSessionToken:             os.Getenv("OAKDS_S3_SESSION_TOKEN"),
		infraS3.PropRoleARN:                  os.Getenv("OAKDS_S3_ROLE_ARN"),
		infraS3.PropEndpoint:                 os.Getenv("OAKDS_S3_ENDPOINT"),
		infraS3.PropRegion:                   os.Getenv("OAKDS_S3_REGION"),
		infraS3.PropContainer:                container,
		infraS3.PropPathStyle:                os.Getenv("OAKDS_S3_PATH_STYLE"),
		infraS3.PropDownloadURIExpirySeconds: os.Getenv("OAKDS_S3_DOWNLOAD_EXPIRY_SECONDS"),
		infraS3.PropUploadURIExpirySeconds:   os.Getenv("OAKDS_S3_UPLOAD_EXPIRY_SECONDS"),
		infraS3.PropDownloadURICacheMaxSize:  os.Getenv("OAKDS_S3_DOWNLOAD_CACHE_MAX_SIZE"),
	})
	return NewS3(ctx, cfg)
}
