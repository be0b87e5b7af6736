// Package copyworker implements the single-flight origin-to-blob copy: for
// a dequeued (pool, url), it locks, validates, streams the origin body into
// the blob store, and advances the cache entry's status accordingly.
package copyworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/cloud-mirror/pkg/blobstore"
	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/queue"
	"github.com/storacha/cloud-mirror/pkg/statusstore"
	"github.com/storacha/cloud-mirror/pkg/telemetry"
	"github.com/storacha/cloud-mirror/pkg/validator"
)

var log = logging.Logger("copyworker")

// Config bounds a Worker's timeouts and TTLs.
type Config struct {
	// CacheTTL is the TTL applied to pending/present/error status writes.
	CacheTTL time.Duration
	// LockTTL bounds how long a single-flight lock can survive an unreleased
	// worker; it is never longer than CacheTTL.
	LockTTL time.Duration
	// InactivityTimeout bounds the origin GET's idle time, not its total
	// duration — a slow-but-steady stream is allowed to run indefinitely, but
	// the stream is aborted the moment a Read blocks for longer than this.
	InactivityTimeout time.Duration
	// UploadTimeout is a hard watchdog on the blob store Put call: it bounds
	// total wall-clock time regardless of read activity, independent of
	// InactivityTimeout's idle-only bound.
	UploadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.LockTTL <= 0 || c.LockTTL > c.CacheTTL {
		c.LockTTL = c.CacheTTL
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = time.Hour
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 4 * time.Hour
	}
	return c
}

// Worker copies one pool_id's jobs from origin to blob store.
type Worker struct {
	poolID     string
	status     statusstore.Store
	blobs      blobstore.Store
	validator  *validator.Validator
	httpClient *http.Client
	cfg        Config
}

// New returns a Worker for poolID, backed by the given adapters.
func New(poolID string, status statusstore.Store, blobs blobstore.Store, v *validator.Validator, cfg Config, httpClient *http.Client) *Worker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Worker{
		poolID:     poolID,
		status:     status,
		blobs:      blobs,
		validator:  v,
		httpClient: httpClient,
		cfg:        cfg.withDefaults(),
	}
}

// Handler adapts Put to a queue.Handler, parsing the job payload described
// in the external queue message format.
func (w *Worker) Handler() queue.Handler {
	return func(ctx context.Context, msg queue.Message) error {
		var job queue.Job
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Errorw("unparseable job payload, leaving for redelivery", "err", err)
			return fmt.Errorf("unmarshaling job payload: %w", err)
		}
		if job.ID != w.poolID {
			return fmt.Errorf("job pool id %q does not match worker pool %q", job.ID, w.poolID)
		}
		return w.Put(ctx, job.URL)
	}
}

// Put is the worker entry point: single-flight lock, pending write,
// validate, stream, then present/error.
func (w *Worker) Put(ctx context.Context, rawURL string) error {
	key := cacheentry.Key(w.poolID, rawURL)
	lockKey := cacheentry.LockKey(key)

	if err := w.status.PutIfAbsent(ctx, lockKey, statusstore.Fields{}, w.cfg.LockTTL); err != nil {
		if errors.Is(err, statusstore.ErrAlreadyExists) {
			telemetry.ConcurrentCopyAlreadyLocked.Add(ctx, 1)
			log.Debugw("declined copy, already locked", "pool", w.poolID, "url", rawURL)
			return nil
		}
		telemetry.StatusStoreFailure.Add(ctx, 1)
		return fmt.Errorf("acquiring lock %s: %w", lockKey, err)
	}
	defer func() {
		release := context.WithoutCancel(ctx)
		if err := w.status.Delete(release, lockKey); err != nil {
			log.Warnw("failed to release lock", "key", lockKey, "err", err)
		}
	}()

	if err := w.status.Put(ctx, key, statusstore.Fields{
		"url":    rawURL,
		"status": string(cacheentry.StatusPending),
	}, w.cfg.CacheTTL); err != nil {
		telemetry.StatusStoreFailure.Add(ctx, 1)
		return fmt.Errorf("writing pending status for %s: %w", key, err)
	}

	result, err := w.validator.ValidateChain(ctx, rawURL)
	if err != nil {
		return w.fail(key, rawURL, fmt.Errorf("validating %s: %w", rawURL, err))
	}

	// getCtx carries no fixed deadline of its own: the idleTimeoutReader
	// below cancels it the moment a Read stalls for longer than
	// InactivityTimeout, so a slow-but-steady stream can run indefinitely.
	getCtx, cancelGet := context.WithCancel(ctx)
	defer cancelGet()

	req, err := http.NewRequestWithContext(getCtx, http.MethodGet, result.FinalURL.String(), nil)
	if err != nil {
		return w.fail(key, rawURL, fmt.Errorf("building origin request: %w", err))
	}
	req.Header.Set("Accept-Encoding", "*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return w.fail(key, rawURL, fmt.Errorf("fetching origin %s: %w", result.FinalURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.fail(key, rawURL, fmt.Errorf("origin %s returned status %d", result.FinalURL, resp.StatusCode))
	}

	headers, contentLength := originHeaders(resp)
	metadata := metadataFor(resp, result)

	idle := newIdleTimeoutReader(resp.Body, w.cfg.InactivityTimeout, cancelGet)
	defer idle.Stop()
	counter := &countingReader{r: idle}

	// uploadCtx is the hard watchdog on the Put call itself: it bounds total
	// upload wall-clock time regardless of read activity, independent of
	// (and in addition to) getCtx's idle-only cancellation.
	uploadCtx, cancelUpload := context.WithTimeout(getCtx, w.cfg.UploadTimeout)
	defer cancelUpload()

	start := time.Now()
	size := int64(-1)
	if contentLength != nil {
		size = *contentLength
	}
	err = w.blobs.Put(uploadCtx, key, size, counter, headers, metadata)
	duration := time.Since(start)
	if err != nil {
		return w.fail(key, rawURL, fmt.Errorf("uploading %s: %w", key, err))
	}

	telemetry.CopyDurationMS.Record(ctx, float64(duration.Milliseconds()))
	telemetry.CopySizeBytes.Record(ctx, counter.n)
	if duration > 0 {
		kbps := (float64(counter.n) / 1024.0) / duration.Seconds()
		telemetry.CopySpeedKBPS.Record(ctx, kbps)
	}

	if contentLength != nil && *contentLength != counter.n {
		log.Warnw("observed byte count differs from advertised content-length",
			"url", rawURL, "advertised", *contentLength, "observed", counter.n)
	}

	if err := w.status.Put(ctx, key, statusstore.Fields{
		"url":    rawURL,
		"status": string(cacheentry.StatusPresent),
	}, w.cfg.CacheTTL); err != nil {
		telemetry.StatusStoreFailure.Add(ctx, 1)
		return fmt.Errorf("writing present status for %s: %w", key, err)
	}
	return nil
}

// fail best-effort deletes any partial blob, overwrites the status entry
// with error+stack, and returns cause so the caller (the queue listener)
// leaves the message for redelivery.
func (w *Worker) fail(key, rawURL string, cause error) error {
	bg := context.Background()
	if err := w.blobs.Delete(bg, key); err != nil {
		log.Debugw("best-effort blob cleanup failed", "key", key, "err", err)
	}
	if err := w.status.Put(bg, key, statusstore.Fields{
		"url":    rawURL,
		"status": string(cacheentry.StatusError),
		"stack":  cause.Error(),
	}, w.cfg.CacheTTL); err != nil {
		telemetry.StatusStoreFailure.Add(bg, 1)
		log.Errorw("failed to write error status", "key", key, "err", err)
	}
	return cause
}

func originHeaders(resp *http.Response) (blobstore.Headers, *int64) {
	h := blobstore.Headers{
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		ContentEncoding:    resp.Header.Get("Content-Encoding"),
	}
	var contentLength *int64
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			contentLength = &n
			h.ContentLength = &n
		}
	}
	return h, contentLength
}

func metadataFor(resp *http.Response, result *validator.Result) map[string]string {
	hops, _ := json.Marshal(result.HopChain)
	return map[string]string{
		"cloud-mirror-upstream-etag":           resp.Header.Get("ETag"),
		"cloud-mirror-upstream-content-length": resp.Header.Get("Content-Length"),
		"cloud-mirror-upstream-url":            result.FinalURL.String(),
		"cloud-mirror-stored":                  time.Now().UTC().Format(time.RFC3339),
		"cloud-mirror-addresses":               string(hops),
	}
}

// idleTimeoutReader wraps an io.Reader with a watchdog timer that fires
// cancel if no Read call returns within timeout, resetting the timer on
// every call so a slow-but-steady stream never trips it. It implements the
// inactivity (not total-duration) timeout bound on the origin GET.
type idleTimeoutReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func newIdleTimeoutReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutReader {
	return &idleTimeoutReader{r: r, timer: time.AfterFunc(timeout, cancel), timeout: timeout}
}

func (i *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := i.r.Read(p)
	i.timer.Reset(i.timeout)
	return n, err
}

// Stop releases the watchdog timer once the stream is done, successfully or
// otherwise.
func (i *idleTimeoutReader) Stop() {
	i.timer.Stop()
}

// countingReader wraps an io.Reader, counting bytes read so the caller can
// record the observed byte count without buffering the whole body.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
