// Package cachemanager implements the read side of the cache entry
// lifecycle: status lookup with blob-backed backfill, enqueuing a copy
// request, and purge.
package cachemanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/storacha/cloud-mirror/pkg/aws"
	"github.com/storacha/cloud-mirror/pkg/blobstore"
	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/queue"
	"github.com/storacha/cloud-mirror/pkg/statusstore"
	"github.com/storacha/cloud-mirror/pkg/telemetry"
)

// Config bounds a Manager's TTLs.
type Config struct {
	// CacheTTL is the TTL applied to pending status writes.
	CacheTTL time.Duration
	// BackfillSafetyMargin is subtracted from a backfilled blob's remaining
	// life before it is used as the cache entry's TTL (30-minute default per
	// the invariant that entry TTL is strictly shorter than blob TTL).
	BackfillSafetyMargin time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.BackfillSafetyMargin <= 0 {
		c.BackfillSafetyMargin = 30 * time.Minute
	}
	return c
}

// Manager is stateless beyond its injected adapters; one Manager serves one
// pool_id (a single {service, region} pair).
type Manager struct {
	poolID   string
	status   statusstore.Store
	blobs    blobstore.Store
	q        queue.Queue
	queueURL string
	cfg      Config
	client   *http.Client
}

// New returns a Manager for poolID. The supplied http.Client, if nil,
// defaults to http.DefaultClient and is used only for the public-URL HEAD
// probe backfill issues to confirm readability.
func New(poolID string, status statusstore.Store, blobs blobstore.Store, q queue.Queue, queueURL string, cfg Config, client *http.Client) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{poolID: poolID, status: status, blobs: blobs, q: q, queueURL: queueURL, cfg: cfg.withDefaults(), client: client}
}

// RedirectInfo is what the Redirect Service needs to decide its next poll
// action: the observed status and the blob's deterministic public URL (set
// regardless of status, since PublicURL never makes a network call).
type RedirectInfo struct {
	Status cacheentry.Status
	URL    string
}

// GetURLForRedirect reads the cache entry's status, backfilling from the
// blob store on a cold miss before reporting absent.
func (m *Manager) GetURLForRedirect(ctx context.Context, rawURL string) (RedirectInfo, error) {
	key := cacheentry.Key(m.poolID, rawURL)
	publicURL := m.blobs.PublicURL(key)

	fields, err := m.status.Get(ctx, key)
	if errors.Is(err, statusstore.ErrNotFound) {
		telemetry.CacheMiss.Add(ctx, 1)
		if info, ok, err := m.backfill(ctx, key, rawURL, publicURL); err != nil {
			return RedirectInfo{}, err
		} else if ok {
			return info, nil
		}
		return RedirectInfo{Status: cacheentry.StatusAbsent, URL: publicURL}, nil
	}
	if err != nil {
		telemetry.StatusStoreFailure.Add(ctx, 1)
		return RedirectInfo{}, fmt.Errorf("reading status for %s: %w", key, err)
	}

	status := cacheentry.Status(fields["status"])
	if status == cacheentry.StatusPresent {
		telemetry.CacheHit.Add(ctx, 1)
	} else {
		telemetry.CacheMiss.Add(ctx, 1)
	}
	return RedirectInfo{Status: status, URL: publicURL}, nil
}

// backfill adopts an existing blob as present when the status entry has
// expired or was never written. It confirms the blob is actually live and
// publicly readable with an unauthenticated HEAD against its public URL
// (not a credentialed backend call, since the invariant being restored is
// "a live, publicly-readable object exists at the public URL", and a
// backend-only check can't observe bucket policy, CDN, or network-path
// failures affecting public readers), capping the restored TTL to the
// blob's own remaining life minus the safety margin. A HEAD that fails
// outright is treated like a non-2xx answer: nothing is backfilled.
func (m *Manager) backfill(ctx context.Context, key, rawURL, publicURL string) (RedirectInfo, bool, error) {
	expiration, ok, err := m.headPublicURL(ctx, publicURL)
	if err != nil {
		return RedirectInfo{}, false, nil
	}
	if !ok {
		return RedirectInfo{}, false, nil
	}

	ttl := m.cfg.CacheTTL
	if expiration != nil {
		remaining := time.Until(*expiration) - m.cfg.BackfillSafetyMargin
		if remaining < 0 {
			remaining = 0
		}
		ttl = remaining
	}

	if err := m.status.Put(ctx, key, statusstore.Fields{
		"url":    rawURL,
		"status": string(cacheentry.StatusPresent),
	}, ttl); err != nil {
		telemetry.StatusStoreFailure.Add(ctx, 1)
		return RedirectInfo{}, false, fmt.Errorf("writing backfilled status for %s: %w", key, err)
	}
	telemetry.Backfill.Add(ctx, 1)
	return RedirectInfo{Status: cacheentry.StatusPresent, URL: publicURL}, true, nil
}

// headPublicURL issues an HTTP HEAD against publicURL and reports whether it
// answered 2xx, plus the blob's expiration if the x-amz-expiration header is
// present. A non-2xx response (including 403/404, the expected shape of an
// absent or unreadable object) is reported as ok=false, not an error.
func (m *Manager) headPublicURL(ctx context.Context, publicURL string) (*time.Time, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, publicURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building HEAD request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("HEAD request to %s: %w", publicURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, nil
	}
	exp := resp.Header.Get("x-amz-expiration")
	if t, ok := aws.ParseS3Expiration(&exp); ok {
		return &t, true, nil
	}
	return nil, true, nil
}

// RequestPut writes a pending status entry and enqueues a copy job.
func (m *Manager) RequestPut(ctx context.Context, rawURL string) error {
	key := cacheentry.Key(m.poolID, rawURL)
	if err := m.status.Put(ctx, key, statusstore.Fields{
		"url":    rawURL,
		"status": string(cacheentry.StatusPending),
	}, m.cfg.CacheTTL); err != nil {
		telemetry.StatusStoreFailure.Add(ctx, 1)
		return fmt.Errorf("writing pending status for %s: %w", key, err)
	}
	if err := m.q.Send(ctx, m.queueURL, queue.Job{ID: m.poolID, URL: rawURL, Action: "put"}); err != nil {
		return fmt.Errorf("enqueuing copy job for %s: %w", key, err)
	}
	return nil
}

// Purge deletes the blob then the status entry, ignoring not-found on
// either (purging something already gone is not an error).
func (m *Manager) Purge(ctx context.Context, rawURL string) error {
	key := cacheentry.Key(m.poolID, rawURL)
	if err := m.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	if err := m.status.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting status entry %s: %w", key, err)
	}
	return nil
}
