// Package validator checks candidate origin URLs against the allowlist and
// walks their redirect chain, rejecting anything that leaves the allowed
// host set or exceeds the configured hop budget.
package validator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/cloud-mirror/lib"
)

var log = logging.Logger("validator")

// ErrDisallowedScheme is returned when the URL scheme isn't http(s).
var ErrDisallowedScheme = errors.New("disallowed url scheme")

// ErrDisallowedHost is returned when the host doesn't match the allowlist.
var ErrDisallowedHost = errors.New("host not in allowlist")

// ErrTooManyHops is returned when a redirect chain exceeds MaxHops.
var ErrTooManyHops = errors.New("too many redirect hops")

// Config configures a Validator.
type Config struct {
	// AllowedHostPatterns are regexes matched against the request and every
	// hop's host. At least one must match for a host to be accepted.
	AllowedHostPatterns []string
	// MaxHops bounds the number of HEAD requests made while validating (the
	// request URL itself counts as the first). A value of 0 (or less) makes
	// no request at all: every URL that passes the scheme and host checks
	// fails validation with ErrTooManyHops.
	MaxHops int
	// HopTimeout bounds each individual HEAD request made while walking the
	// chain.
	HopTimeout time.Duration
	// EnsureSSL rejects http (non-TLS) URLs at the request URL and every
	// redirect hop, accepting only https.
	EnsureSSL bool
}

// Validator validates candidate origin URLs.
type Validator struct {
	cfg      Config
	patterns []*regexp.Regexp
	client   *http.Client
}

// New compiles the allowlist patterns and returns a Validator. The supplied
// http.Client, if nil, defaults to one that never auto-follows redirects so
// each hop can be inspected individually.
func New(cfg Config, client *http.Client) (*Validator, error) {
	if cfg.HopTimeout <= 0 {
		cfg.HopTimeout = 5 * time.Second
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.AllowedHostPatterns))
	for _, p := range cfg.AllowedHostPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling allowlist pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Validator{cfg: cfg, patterns: patterns, client: client}, nil
}

func (v *Validator) hostAllowed(host string) bool {
	if len(v.patterns) == 0 {
		return true
	}
	for _, re := range v.patterns {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// checkScheme rejects anything but http(s), and rejects http too when
// EnsureSSL is set.
func (v *Validator) checkScheme(scheme string) error {
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %s", ErrDisallowedScheme, scheme)
	}
	if v.cfg.EnsureSSL && scheme != "https" {
		return fmt.Errorf("%w: %s (ssl required)", ErrDisallowedScheme, scheme)
	}
	return nil
}

// Normalize parses and canonicalizes a raw URL string (trailing slashes
// stripped). The status-store key is derived from the raw URL, not from
// this normalized form.
func Normalize(raw string) (*url.URL, error) {
	return lib.ParseAndNormalizeURL(raw)
}

// Result is the outcome of a successful validation: the final resolved URL
// and the ordered chain of URLs visited along the way (the request URL
// itself, then each Location hop), recorded in the blob's addresses
// metadata.
type Result struct {
	FinalURL *url.URL
	HopChain []string
}

// Validate parses raw, confirms its scheme/host are allowed, then walks the
// redirect chain (issuing HEAD requests) up to MaxHops, confirming every hop
// also resolves to an allowed host. It returns the final resolved URL.
func (v *Validator) Validate(ctx context.Context, raw string) (*url.URL, error) {
	res, err := v.ValidateChain(ctx, raw)
	if err != nil {
		return nil, err
	}
	return res.FinalURL, nil
}

// ValidateChain is Validate plus the recorded hop chain.
func (v *Validator) ValidateChain(ctx context.Context, raw string) (*Result, error) {
	u, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing url: %w", err)
	}
	if err := v.checkScheme(u.Scheme); err != nil {
		return nil, err
	}
	if !v.hostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowedHost, u.Hostname())
	}

	hopChain := []string{u.String()}
	current := u
	for hop := 0; hop < v.cfg.MaxHops; hop++ {
		next, err := v.followHop(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return &Result{FinalURL: current, HopChain: hopChain}, nil
		}
		if err := v.checkScheme(next.Scheme); err != nil {
			return nil, err
		}
		if !v.hostAllowed(next.Hostname()) {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedHost, next.Hostname())
		}
		log.Debugw("followed redirect hop", "from", current.String(), "to", next.String())
		current = next
		hopChain = append(hopChain, current.String())
	}
	return nil, fmt.Errorf("%w: exceeded %d hops from %s", ErrTooManyHops, v.cfg.MaxHops, u.String())
}

// followHop issues a HEAD request for u and returns the Location of a
// redirect response, or nil if u is not a redirect.
func (v *Validator) followHop(ctx context.Context, u *url.URL) (*url.URL, error) {
	hopCtx, cancel := context.WithTimeout(ctx, v.cfg.HopTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodHead, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building HEAD request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD request to %s: %w", u.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return nil, nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("redirect response from %s missing Location header", u.String())
	}
	next, err := u.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect location %q: %w", loc, err)
	}
	return next, nil
}
