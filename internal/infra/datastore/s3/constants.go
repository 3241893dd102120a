package s3

const (
	metaDirName   = "META"
	metaKeyPrefix = metaDirName + "/"

	refKey          = "reference.key"
	lastModifiedKey = "lastModified"

	keyPrefixLength = 4
	keySeparator    = "-"

	// Provider-imposed transfer limits (S3).
	minMultipartUploadPartSize = int64(5 * 1024 * 1024)               // 5MiB
	maxMultipartUploadPartSize = int64(5 * 1024 * 1024 * 1024)        // 5GiB
	maxSinglePutUploadSize     = int64(5 * 1024 * 1024 * 1024)        // 5GiB, single PutObject limit
	maxBinaryUploadSize        = int64(5 * 1024 * 1024 * 1024 * 1024) // 5TiB, object size limit
	maxAllowableUploadURIs     = 10000                                // part count limit

	defaultConcurrentRequestCount = 2
	maxConcurrentRequestCount     = 50

	referenceSecretLength = 32
)
