package s3

import (
	"strings"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore/core"
)

// storageKey maps an identifier to its backend object key by inserting a
// separator after a fixed-length prefix, so provider-side prefix listing and
// partitioning behave predictably. Identifiers shorter than the prefix length
// are a contract violation by the caller. No I/O.
func storageKey(id core.Identifier) string {
	s := string(id)
	return s[:keyPrefixLength] + keySeparator + s[keyPrefixLength:]
}

// identifierFromKey is the inverse of storageKey. Keys under the metadata
// namespace are returned unchanged. Keys without a separator, or too short to
// carry the prefix (foreign objects written to the container out-of-band),
// report ok=false.
func identifierFromKey(key string) (core.Identifier, bool) {
	if strings.HasPrefix(key, metaKeyPrefix) {
		return core.Identifier(key), true
	}
	if len(key) <= keyPrefixLength || !strings.Contains(key, keySeparator) {
		return "", false
	}
	return core.Identifier(key[:keyPrefixLength] + key[keyPrefixLength+1:]), true
}

func metaKey(name string) string {
	return metaKeyPrefix + name
}

func stripMetaKeyPrefix(key string) string {
	return strings.TrimPrefix(key, metaKeyPrefix)
}
