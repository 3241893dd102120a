package s3

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Configuration property names, consumed as a flat string-keyed mapping
// supplied by the surrounding runtime's config loader.
const (
	PropConnectionString         = "connectionString"
	PropAccountName              = "accountName"
	PropAccountKey               = "accountKey"
	PropSessionToken             = "sessionToken"
	PropRoleARN                  = "roleARN"
	PropClientID                 = "clientId"
	PropClientSecret             = "clientSecret"
	PropEndpoint                 = "endpoint"
	PropRegion                   = "region"
	PropContainer                = "container"
	PropPathStyle                = "pathStyle"
	PropCreateContainer          = "createContainer"
	PropConcurrentRequests       = "concurrentRequestsPerOperation"
	PropMaxRequestRetry          = "maxRequestRetry"
	PropRequestTimeout           = "requestTimeout"
	PropDownloadURIExpirySeconds = "presignedDownloadURIExpirySeconds"
	PropUploadURIExpirySeconds   = "presignedUploadURIExpirySeconds"
	PropDownloadURICacheMaxSize  = "presignedDownloadURICacheMaxSize"
	PropDownloadURIVerifyExists  = "presignedDownloadURIVerifyExists"
	PropUploadDomainOverride     = "presignedUploadURIDomainOverride"
	PropDownloadDomainOverride   = "presignedDownloadURIDomainOverride"
	PropEnableSecondaryLocation  = "enableSecondaryLocation"
	PropCreateReferenceKeyOnInit = "refOnInit"
)

// Config holds explicit construction parameters for the S3 data store
// backend. Authentication fields select one of four mutually exclusive
// modes, tried in fixed precedence order (see containerProvider).
type Config struct {
	// ConnectionString holds "key=value" pairs separated by ';'
	// (AccountName, AccountKey, Endpoint, Region, SessionToken). Takes
	// precedence over every other credential field.
	ConnectionString string
	AccountName      string
	AccountKey       string
	SessionToken     string
	RoleARN          string
	ClientID         string
	ClientSecret     string

	Endpoint  string // optional; custom endpoint (e.g. MinIO)
	Region    string // default us-east-1
	Container string // bucket name, required
	PathStyle bool

	CreateContainer    bool
	ConcurrentRequests int
	MaxRequestRetry    int
	RequestTimeout     int // seconds; 0 leaves the transport default

	DownloadURIExpirySeconds int // 0 disables presigned downloads
	UploadURIExpirySeconds   int // 0 disables direct uploads
	DownloadURICacheMaxSize  int // <= 0 disables the cache
	DownloadURIVerifyExists  bool
	UploadDomainOverride     string
	DownloadDomainOverride   string
	EnableSecondaryLocation  bool

	// CreateReferenceKeyOnInit eagerly creates the signing secret during
	// Init instead of on first direct-upload initiation.
	CreateReferenceKeyOnInit bool

	Logger *zap.Logger
}

// ParseConfig builds a Config from a flat property mapping, applying
// defaults for absent keys.
func ParseConfig(props map[string]string) Config {
	return Config{
		ConnectionString:         props[PropConnectionString],
		AccountName:              props[PropAccountName],
		AccountKey:               props[PropAccountKey],
		SessionToken:             props[PropSessionToken],
		RoleARN:                  props[PropRoleARN],
		ClientID:                 props[PropClientID],
		ClientSecret:             props[PropClientSecret],
		Endpoint:                 props[PropEndpoint],
		Region:                   props[PropRegion],
		Container:                props[PropContainer],
		PathStyle:                toBool(props[PropPathStyle], false),
		CreateContainer:          toBool(props[PropCreateContainer], true),
		ConcurrentRequests:       toInt(props[PropConcurrentRequests], defaultConcurrentRequestCount),
		MaxRequestRetry:          toInt(props[PropMaxRequestRetry], 0),
		RequestTimeout:           toInt(props[PropRequestTimeout], 0),
		DownloadURIExpirySeconds: toInt(props[PropDownloadURIExpirySeconds], 0),
		UploadURIExpirySeconds:   toInt(props[PropUploadURIExpirySeconds], 0),
		DownloadURICacheMaxSize:  toInt(props[PropDownloadURICacheMaxSize], 0),
		DownloadURIVerifyExists:  toBool(props[PropDownloadURIVerifyExists], true),
		UploadDomainOverride:     props[PropUploadDomainOverride],
		DownloadDomainOverride:   props[PropDownloadDomainOverride],
		EnableSecondaryLocation:  toBool(props[PropEnableSecondaryLocation], false),
		CreateReferenceKeyOnInit: toBool(props[PropCreateReferenceKeyOnInit], true),
	}
}

func toBool(s string, def bool) bool {
	if strings.TrimSpace(s) == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func toInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseConnectionString splits a "k=v;k=v" connection string into fields.
// Unknown keys are ignored.
func parseConnectionString(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}
