package s3

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

type permission int

const (
	permissionRead permission = iota
	permissionWrite
)

func (p permission) String() string {
	if p == permissionWrite {
		return "write"
	}
	return "read"
}

type authMode int

const (
	authNone authMode = iota
	authConnectionString
	authServiceCredential
	authSharedAccessSignature
	authAccountKey
)

// retryPolicy is passed through to the transport opaquely; the backend never
// retries beyond what the transport performs.
type retryPolicy struct {
	maxRetries     int
	requestTimeout time.Duration

	// secondaryEndpoint records the georedundant read location when the
	// secondary-location flag is set. Requests do not fail over to it; it is
	// exposed for operators wiring their own read fallback.
	// TODO: fail reads over to secondaryEndpoint when the primary endpoint
	// is unreachable.
	secondaryEndpoint string
}

// containerHandle is a ready-to-use handle capable of blob CRUD, listing and
// signature minting against a single container.
type containerHandle struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

// mintParams carries the optional presign inputs: the target domain plus
// either part-identifying query parameters (write) or response header
// overrides (read).
type mintParams struct {
	domain             string
	uploadID           string
	partNumber         int32
	contentType        string
	contentDisposition string
}

// containerProvider resolves the authentication mode, lazily builds the
// container handle and mints delegation signatures. It never performs record
// CRUD itself.
type containerProvider struct {
	cfg      Config
	log      *zap.Logger
	retry    retryPolicy
	endpoint string
	region   string

	mu     sync.RWMutex
	handle *containerHandle
}

func newContainerProvider(cfg Config, log *zap.Logger) *containerProvider {
	endpoint, region := cfg.Endpoint, cfg.Region
	if strings.TrimSpace(cfg.ConnectionString) != "" {
		fields := parseConnectionString(cfg.ConnectionString)
		if fields["Endpoint"] != "" {
			endpoint = fields["Endpoint"]
		}
		if fields["Region"] != "" {
			region = fields["Region"]
		}
	}
	if region == "" {
		region = "us-east-1"
	}
	p := &containerProvider{
		cfg:      cfg,
		log:      log,
		endpoint: endpoint,
		region:   region,
	}
	p.retry = retryPolicy{
		maxRetries:     cfg.MaxRequestRetry,
		requestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}
	if cfg.EnableSecondaryLocation {
		p.retry.secondaryEndpoint = fmt.Sprintf("https://%s-secondary.s3.%s.amazonaws.com", cfg.Container, region)
	}
	return p
}

// Container returns the lazily created handle. The first caller performs the
// blocking initialization under a lock; later callers reuse the result.
func (p *containerProvider) Container(ctx context.Context) (*containerHandle, error) {
	p.mu.RLock()
	h := p.handle
	p.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		h, err := p.buildHandle(ctx)
		if err != nil {
			return nil, err
		}
		p.handle = h
	}
	return p.handle, nil
}

func (p *containerProvider) resolveAuthMode() (authMode, error) {
	cfg := p.cfg
	switch {
	case strings.TrimSpace(cfg.ConnectionString) != "":
		return authConnectionString, nil
	case allNonBlank(cfg.AccountName, cfg.RoleARN, cfg.ClientID, cfg.ClientSecret):
		return authServiceCredential, nil
	case allNonBlank(cfg.AccountName, cfg.AccountKey, cfg.SessionToken):
		return authSharedAccessSignature, nil
	case allNonBlank(cfg.AccountName, cfg.AccountKey):
		return authAccountKey, nil
	}
	return authNone, core.ErrNoCredentials
}

func (p *containerProvider) buildHandle(ctx context.Context) (*containerHandle, error) {
	if p.cfg.Container == "" {
		return nil, fmt.Errorf("%w: container name required", core.ErrInvalidArgument)
	}
	mode, err := p.resolveAuthMode()
	if err != nil {
		return nil, err
	}

	var creds aws.CredentialsProvider
	switch mode {
	case authConnectionString:
		fields := parseConnectionString(p.cfg.ConnectionString)
		name, key := fields["AccountName"], fields["AccountKey"]
		if name == "" || key == "" {
			return nil, fmt.Errorf("%w: connection string missing AccountName or AccountKey", core.ErrNoCredentials)
		}
		p.log.Debug("connecting to blob storage via connection string")
		creds = credentials.NewStaticCredentialsProvider(name, key, fields["SessionToken"])
	case authServiceCredential:
		p.log.Debug("connecting to blob storage via service credentials")
		baseCfg, err := p.loadAWSConfig(ctx, credentials.NewStaticCredentialsProvider(p.cfg.ClientID, p.cfg.ClientSecret, ""))
		if err != nil {
			return nil, &core.BackendError{Op: "resolve service credentials", Err: err}
		}
		creds = stscreds.NewAssumeRoleProvider(sts.NewFromConfig(baseCfg), p.cfg.RoleARN)
	case authSharedAccessSignature:
		p.log.Debug("connecting to blob storage via shared access token")
		creds = credentials.NewStaticCredentialsProvider(p.cfg.AccountName, p.cfg.AccountKey, p.cfg.SessionToken)
	default:
		p.log.Debug("connecting to blob storage via account key")
		creds = credentials.NewStaticCredentialsProvider(p.cfg.AccountName, p.cfg.AccountKey, "")
	}

	awsCfg, err := p.loadAWSConfig(ctx, creds)
	if err != nil {
		return nil, &core.BackendError{Op: "load storage config", Err: err}
	}
	client := awss3.NewFromConfig(awsCfg, p.clientOptions)
	return &containerHandle{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  p.cfg.Container,
	}, nil
}

func (p *containerProvider) loadAWSConfig(ctx context.Context, creds aws.CredentialsProvider) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(p.region),
		awsconfig.WithCredentialsProvider(creds),
	}
	if p.retry.requestTimeout > 0 {
		opts = append(opts, awsconfig.WithHTTPClient(&http.Client{Timeout: p.retry.requestTimeout}))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

func (p *containerProvider) clientOptions(o *awss3.Options) {
	if p.cfg.PathStyle {
		o.UsePathStyle = true
	}
	if p.endpoint != "" {
		o.BaseEndpoint = aws.String(p.endpoint)
	}
	if p.retry.maxRetries > 0 {
		o.RetryMaxAttempts = p.retry.maxRetries + 1
	}
}

// Mint produces a presigned URI for key with the requested permission and
// expiry. Service-credential mode performs a fresh delegation handshake per
// call; the short-lived delegation credentials are never cached.
func (p *containerProvider) Mint(ctx context.Context, key string, perm permission, expirySeconds int, params mintParams) (string, error) {
	h, err := p.Container(ctx)
	if err != nil {
		return "", err
	}
	presigner := h.presign
	mode, err := p.resolveAuthMode()
	if err != nil {
		return "", err
	}
	if mode == authServiceCredential {
		presigner, err = p.delegatedPresigner(ctx, expirySeconds)
		if err != nil {
			return "", &core.BackendError{Op: "delegation handshake", Key: key, Err: err}
		}
	}

	expiry := time.Duration(expirySeconds) * time.Second
	withExpiry := func(po *awss3.PresignOptions) { po.Expires = expiry }

	var raw string
	switch perm {
	case permissionWrite:
		out, err := presigner.PresignUploadPart(ctx, &awss3.UploadPartInput{
			Bucket:     aws.String(h.bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(params.uploadID),
			PartNumber: aws.Int32(params.partNumber),
		}, withExpiry)
		if err != nil {
			return "", &core.BackendError{Op: "presign upload part", Key: key, Err: err}
		}
		raw = out.URL
	default:
		input := &awss3.GetObjectInput{
			Bucket: aws.String(h.bucket),
			Key:    aws.String(key),
		}
		if params.contentType != "" {
			input.ResponseContentType = aws.String(params.contentType)
		}
		if params.contentDisposition != "" {
			input.ResponseContentDisposition = aws.String(params.contentDisposition)
		}
		out, err := presigner.PresignGetObject(ctx, input, withExpiry)
		if err != nil {
			return "", &core.BackendError{Op: "presign get", Key: key, Err: err}
		}
		raw = out.URL
	}
	return overrideDomain(raw, params.domain, p.defaultDomain()), nil
}

// delegatedPresigner obtains short-lived delegation credentials valid from
// now until the signature expiry and builds a one-shot presign client with
// them. Always fetched fresh; a known inefficiency kept for parity with the
// container handle's credential lifecycle.
func (p *containerProvider) delegatedPresigner(ctx context.Context, expirySeconds int) (*awss3.PresignClient, error) {
	baseCfg, err := p.loadAWSConfig(ctx, credentials.NewStaticCredentialsProvider(p.cfg.ClientID, p.cfg.ClientSecret, ""))
	if err != nil {
		return nil, err
	}
	// STS bounds the session duration to [15m, 12h].
	dur := expirySeconds
	if dur < 900 {
		dur = 900
	} else if dur > 43200 {
		dur = 43200
	}
	out, err := sts.NewFromConfig(baseCfg).AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.cfg.RoleARN),
		RoleSessionName: aws.String("datastore-presign"),
		DurationSeconds: aws.Int32(int32(dur)),
	})
	if err != nil {
		return nil, err
	}
	c := out.Credentials
	signCfg, err := p.loadAWSConfig(ctx, credentials.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId), aws.ToString(c.SecretAccessKey), aws.ToString(c.SessionToken)))
	if err != nil {
		return nil, err
	}
	return awss3.NewPresignClient(awss3.NewFromConfig(signCfg, p.clientOptions)), nil
}

// defaultDomain is the storage domain presigned URIs point at when no
// override applies: the custom endpoint host if configured, else the
// bucket's virtual-hosted domain.
func (p *containerProvider) defaultDomain() string {
	if p.endpoint != "" {
		if u, err := url.Parse(p.endpoint); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if p.cfg.Container == "" {
		p.log.Warn("can't determine storage domain: container name not configured")
		return ""
	}
	return fmt.Sprintf("%s.s3.%s.amazonaws.com", p.cfg.Container, p.region)
}

func (p *containerProvider) downloadDomain(ignoreOverride bool) string {
	domain := p.cfg.DownloadDomainOverride
	if ignoreOverride || domain == "" {
		domain = p.defaultDomain()
	}
	return domain
}

func (p *containerProvider) uploadDomain(ignoreOverride bool) string {
	domain := p.cfg.UploadDomainOverride
	if ignoreOverride || domain == "" {
		domain = p.defaultDomain()
	}
	return domain
}

// overrideDomain rewrites the presigned URI host when a non-default domain
// was requested (CDN or proxy fronting the storage account).
func overrideDomain(rawURI, domain, defaultDomain string) string {
	if domain == "" || domain == defaultDomain {
		return rawURI
	}
	u, err := url.Parse(rawURI)
	if err != nil {
		return rawURI
	}
	u.Host = domain
	return u.String()
}

func allNonBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
