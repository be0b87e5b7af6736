package app

import "time"

// PoolConfig describes one {service, region} cache pool: its backing
// container and the copy/backfill behaviour scoped to it.
type PoolConfig struct {
	// Service and Region together form the pool id used in the external
	// HTTP interface and status-store keys.
	Service string
	Region  string

	// BucketName is the blob store container backing this pool.
	BucketName string
	// PublicURLBase is the URL prefix a stored key is appended to.
	PublicURLBase string
	// LifespanDays is the container lifecycle policy's object expiry.
	LifespanDays int

	// CacheTTL is the TTL applied to status entries for this pool.
	CacheTTL time.Duration
	// BackendCount is the number of Copy Worker goroutines consuming this
	// pool's queue concurrently.
	BackendCount int
}
