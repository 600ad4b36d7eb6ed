package api

import "time"

// API limits and constants.
const (
	// DefaultMaxUploadSize caps a submission when the config sets no limit (1 GB).
	DefaultMaxUploadSize = 1 << 30

	// multipartMemory is how much of a multipart form is held in memory
	// before spilling to temporary files.
	multipartMemory = 32 << 20

	// UploadsPerMinute and UploadBurst bound submissions per client IP.
	UploadsPerMinute = 30
	UploadBurst      = 10

	// limiterIdleTTL evicts per-IP limiters that have been quiet this long.
	limiterIdleTTL = 10 * time.Minute
)

// Cache-Control header values.
const (
	CacheOneDayPrivate = "private, max-age=86400"
	CacheNoStore       = "no-cache"
)
