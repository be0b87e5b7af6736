package app

import (
	"net/url"
	"time"
)

// ServerConfig configures the Redirect Service's HTTP surface and the
// validator shared by every pool.
type ServerConfig struct {
	Host      string
	Port      uint
	PublicURL *url.URL

	// MaxWaitForCachedCopy bounds the redirect poll loop; zero falls back to
	// the origin URL immediately.
	MaxWaitForCachedCopy time.Duration
	// RedirectLimit bounds the number of hops the validator follows.
	RedirectLimit int
	// EnsureSSL rejects non-https origin URLs when true.
	EnsureSSL bool
	// AllowedHostPatterns are regexes an origin host must match at least
	// one of.
	AllowedHostPatterns []string
}
