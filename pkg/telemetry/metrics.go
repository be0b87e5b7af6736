package telemetry

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/storacha/cloud-mirror"

var log = logging.Logger("telemetry")

var (
	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestSize     metric.Float64Histogram
	HTTPResponseSize    metric.Float64Histogram

	// Cache Manager / Redirect Service metrics
	CacheHit         metric.Int64Counter
	CacheMiss        metric.Int64Counter
	Backfill         metric.Int64Counter
	RedirectOriginal metric.Int64Counter

	// Copy Worker metrics
	CopyDurationMS              metric.Float64Histogram
	CopySizeBytes               metric.Int64Histogram
	CopySpeedKBPS               metric.Float64Histogram
	ConcurrentCopyAlreadyLocked metric.Int64Counter

	// Queue metrics
	DeadLetters   metric.Int64Counter
	QueueDepth    metric.Int64Gauge
	QueueInFlight metric.Int64Gauge

	// Adapter health
	StatusStoreFailure metric.Int64Counter
)

// init populates every package-level metric with a noop implementation so
// callers never observe a nil instrument before SetupMetrics runs — the
// same fallback SetupMetrics itself uses is just a real meter in place of
// the noop one below.
func init() {
	meter := noop.NewMeterProvider().Meter("noop")
	HTTPRequestDuration, _ = meter.Float64Histogram("http.server.duration.seconds")
	HTTPRequestsTotal, _ = meter.Int64Counter("http.server.requests.count")
	HTTPRequestSize, _ = meter.Float64Histogram("http.server.request.size.bytes")
	HTTPResponseSize, _ = meter.Float64Histogram("http.server.response.size.bytes")
	CacheHit, _ = meter.Int64Counter("cache.hit.count")
	CacheMiss, _ = meter.Int64Counter("cache.miss.count")
	Backfill, _ = meter.Int64Counter("cache.backfill.count")
	RedirectOriginal, _ = meter.Int64Counter("redirect.original.count")
	CopyDurationMS, _ = meter.Float64Histogram("copy.duration.ms")
	CopySizeBytes, _ = meter.Int64Histogram("copy.size.bytes")
	CopySpeedKBPS, _ = meter.Float64Histogram("copy.speed.kbps")
	ConcurrentCopyAlreadyLocked, _ = meter.Int64Counter("copy.concurrent.already_locked.count")
	DeadLetters, _ = meter.Int64Counter("queue.dead_letters.count")
	QueueDepth, _ = meter.Int64Gauge("queue.depth.count")
	QueueInFlight, _ = meter.Int64Gauge("queue.in_flight.count")
	StatusStoreFailure, _ = meter.Int64Counter("status_store.failure.count")
}

// SetupMetrics sets up OpenTelemetry metrics and the Prometheus exporter,
// instantiating every metric this process emits. If setup fails, the
// process logs and exits — metrics are considered part of the ambient
// stack, not an optional add-on.
func SetupMetrics(ctx context.Context) *prometheus.Exporter {
	exporter, err := prometheus.New()
	if err != nil {
		log.Fatal(err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	meter := provider.Meter(meterName)

	HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.duration.seconds",
		metric.WithDescription("Duration of HTTP requests in seconds, by endpoint, method, and status"),
	)
	must(err)

	HTTPRequestsTotal, err = meter.Int64Counter(
		"http.server.requests.count",
		metric.WithDescription("Total number of HTTP requests, by endpoint, method, and status"),
	)
	must(err)

	HTTPRequestSize, err = meter.Float64Histogram(
		"http.server.request.size.bytes",
		metric.WithDescription("Size of HTTP request bodies in bytes"),
	)
	must(err)

	HTTPResponseSize, err = meter.Float64Histogram(
		"http.server.response.size.bytes",
		metric.WithDescription("Size of HTTP response bodies in bytes"),
	)
	must(err)

	CacheHit, err = meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Redirect status reads that found a present cache entry"),
	)
	must(err)

	CacheMiss, err = meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Redirect status reads that found no present cache entry (absent, pending or error)"),
	)
	must(err)

	Backfill, err = meter.Int64Counter(
		"cache.backfill.count",
		metric.WithDescription("Cache entries populated from an existing blob via HEAD"),
	)
	must(err)

	RedirectOriginal, err = meter.Int64Counter(
		"redirect.original.count",
		metric.WithDescription("Redirects that fell back to the original URL after poll timeout"),
	)
	must(err)

	CopyDurationMS, err = meter.Float64Histogram(
		"copy.duration.ms",
		metric.WithDescription("Wall-clock duration of a completed origin-to-blob copy, in milliseconds"),
	)
	must(err)

	CopySizeBytes, err = meter.Int64Histogram(
		"copy.size.bytes",
		metric.WithDescription("Observed byte count of a completed origin-to-blob copy"),
	)
	must(err)

	CopySpeedKBPS, err = meter.Float64Histogram(
		"copy.speed.kbps",
		metric.WithDescription("Observed throughput of a completed origin-to-blob copy, in KB/s"),
	)
	must(err)

	ConcurrentCopyAlreadyLocked, err = meter.Int64Counter(
		"copy.concurrent.already_locked.count",
		metric.WithDescription("Single-flight lock contention: a copy job found another worker already holding the lock"),
	)
	must(err)

	DeadLetters, err = meter.Int64Counter(
		"queue.dead_letters.count",
		metric.WithDescription("Messages that exceeded their redelivery cap and were dead-lettered"),
	)
	must(err)

	QueueDepth, err = meter.Int64Gauge(
		"queue.depth.count",
		metric.WithDescription("ApproximateNumberOfMessages observed by the periodic queue-depth probe"),
	)
	must(err)

	QueueInFlight, err = meter.Int64Gauge(
		"queue.in_flight.count",
		metric.WithDescription("ApproximateNumberOfMessagesNotVisible observed by the periodic queue-depth probe"),
	)
	must(err)

	StatusStoreFailure, err = meter.Int64Counter(
		"status_store.failure.count",
		metric.WithDescription("Errors returned by the status store adapter (excluding expected misses)"),
	)
	must(err)

	return exporter
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
