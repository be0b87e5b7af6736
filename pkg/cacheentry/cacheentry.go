// Package cacheentry defines the pool identity and status-store record
// shape shared by the Cache Manager and Copy Worker: pool ids, entry keys,
// lock keys, and the present/pending/error status lifecycle.
package cacheentry

import (
	"fmt"
	"net/url"
	"regexp"
)

// Status is one of the three cache entry lifecycle states.
type Status string

const (
	StatusPresent Status = "present"
	StatusPending Status = "pending"
	StatusError   Status = "error"
	// StatusAbsent is not a stored value; it is what callers observe when
	// Get returns statusstore.ErrNotFound.
	StatusAbsent Status = "absent"
)

// tokenPattern matches the service/region token grammar from the external
// HTTP interface: ^[A-Za-z0-9_-]{1,22}$.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,22}$`)

// ValidToken reports whether s is a valid service or region token.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// PoolID is the compound identity service_region.
func PoolID(service, region string) string {
	return service + "_" + region
}

// Key derives the status-store key for a pool and URL: pool_id followed by
// the percent-encoded URL. Percent-encoding is applied only when forming
// the key; the stored url field itself is the byte-for-byte request URL.
func Key(poolID, rawURL string) string {
	return poolID + "_" + url.QueryEscape(rawURL)
}

// LockKey derives the single-flight lock key for a cache key.
func LockKey(key string) string {
	return "LOCK-" + key
}

// ParsePool validates service/region tokens and returns the pool id.
func ParsePool(service, region string) (string, error) {
	if !ValidToken(service) {
		return "", fmt.Errorf("invalid service token %q", service)
	}
	if !ValidToken(region) {
		return "", fmt.Errorf("invalid region token %q", region)
	}
	return PoolID(service, region), nil
}
