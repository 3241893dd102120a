package s3

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

// uploadTokenClaims binds a storage key and an upload session id. No
// time-based claims are set so encoding the same inputs is deterministic and
// round-trips exactly; token lifetime is bounded by the part URI expiry.
type uploadTokenClaims struct {
	BlobKey  string `json:"blob"`
	UploadID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// encodeUploadToken signs {storage key, session id} with the store's
// reference secret. The result is opaque and transport-safe in a single HTTP
// header or body field.
func encodeUploadToken(secret []byte, blobKey, uploadID string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &uploadTokenClaims{
		BlobKey:  blobKey,
		UploadID: uploadID,
	})
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign upload token: %w", err)
	}
	return signed, nil
}

// decodeUploadToken verifies and unpacks a token. Signature or structure
// failures map to ErrInvalidToken.
func decodeUploadToken(secret []byte, token string) (blobKey, uploadID string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &uploadTokenClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*uploadTokenClaims)
	if !ok || !parsed.Valid || claims.BlobKey == "" {
		return "", "", fmt.Errorf("%w: missing blob key", core.ErrInvalidToken)
	}
	return claims.BlobKey, claims.UploadID, nil
}
