// Package fleet wires one (Cache Manager, Copy Worker pool) per configured
// region onto a shared Redirect Service and owns their start/stop
// lifecycle. Grounded on the teacher's service-assembly pattern in
// pkg/aws/service.go (FromEnv constructing one concrete adapter set per
// component), generalized from a single fx-built graph to an imperative,
// per-pool constructor loop since the pool count is only known at config
// load time.
package fleet

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/cloud-mirror/pkg/aws"
	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/cachemanager"
	"github.com/storacha/cloud-mirror/pkg/config/app"
	"github.com/storacha/cloud-mirror/pkg/copyworker"
	"github.com/storacha/cloud-mirror/pkg/queue"
	"github.com/storacha/cloud-mirror/pkg/redirect"
	"github.com/storacha/cloud-mirror/pkg/telemetry"
	"github.com/storacha/cloud-mirror/pkg/validator"
)

var log = logging.Logger("fleet")

// pool is one region's worth of wired adapters and workers.
type pool struct {
	id            string
	queueURL      string
	deadLetterURL string
	q             queue.Queue
	workers       []*copyworker.Worker
}

// Fleet constructs and runs one Cache Manager / Copy Worker set per
// configured pool, all fronted by a single Redirect Service.
type Fleet struct {
	redirect *redirect.Server
	pools    []*pool
	queueCfg app.QueueConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Redirect returns the shared Redirect Service every pool registers onto,
// for mounting into the HTTP server.
func (f *Fleet) Redirect() *redirect.Server {
	return f.redirect
}

// New resolves the AWS client configuration, constructs a Blob Store
// Adapter, Status Store Adapter, and Queue Sender per pool, provisions
// their backing resources, and registers each pool's Cache Manager onto a
// shared Redirect Service. It does not start any background workers; call
// Start for that.
func New(ctx context.Context, cfg app.Config) (*Fleet, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	v, err := validator.New(validator.Config{
		AllowedHostPatterns: cfg.Server.AllowedHostPatterns,
		MaxHops:             cfg.Server.RedirectLimit,
		EnsureSSL:           cfg.Server.EnsureSSL,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("constructing validator: %w", err)
	}

	redirectServer := redirect.New(redirect.Config{
		MaxWaitForCachedCopy: cfg.Server.MaxWaitForCachedCopy,
	}, v)

	httpClient := &http.Client{Timeout: 0} // bounded by copyworker's own inactivity timeout, not a fixed deadline

	f := &Fleet{redirect: redirectServer, queueCfg: cfg.Queue}

	for _, p := range cfg.Pools {
		poolID := cacheentry.PoolID(p.Service, p.Region)

		blobs := aws.NewS3BlobStore(awsCfg, p.BucketName, p.PublicURLBase, cfg.AWS.PartSize, cfg.AWS.MultipartQueueSize,
			func(o *s3.Options) { applyEndpoint(cfg.AWS.Endpoint, &o.BaseEndpoint) })
		if err := blobs.EnsureContainer(ctx, p.LifespanDays); err != nil {
			return nil, fmt.Errorf("provisioning bucket for pool %s: %w", poolID, err)
		}

		status := aws.NewDynamoStatusStore(awsCfg, poolID+"-cache",
			func(o *dynamodb.Options) { applyEndpoint(cfg.AWS.Endpoint, &o.BaseEndpoint) })

		q := aws.NewSQSQueue(awsCfg,
			func(o *sqs.Options) { applyEndpoint(cfg.AWS.Endpoint, &o.BaseEndpoint) })
		queueURL, deadLetterURL, err := q.Initialize(ctx, poolID, cfg.Queue.DeadLetterSuffix, cfg.Queue.MaxReceiveCount)
		if err != nil {
			return nil, fmt.Errorf("provisioning queue for pool %s: %w", poolID, err)
		}

		cm := cachemanager.New(poolID, status, blobs, q, queueURL, cachemanager.Config{CacheTTL: p.CacheTTL}, nil)
		if err := redirectServer.Register(p.Service, p.Region, cm); err != nil {
			return nil, fmt.Errorf("registering pool %s: %w", poolID, err)
		}

		workers := make([]*copyworker.Worker, 0, p.BackendCount)
		for i := 0; i < p.BackendCount; i++ {
			workers = append(workers, copyworker.New(poolID, status, blobs, v, copyworker.Config{CacheTTL: p.CacheTTL}, httpClient))
		}

		f.pools = append(f.pools, &pool{
			id:            poolID,
			queueURL:      queueURL,
			deadLetterURL: deadLetterURL,
			q:             q,
			workers:       workers,
		})
	}

	return f, nil
}

// Start launches every pool's Copy Workers, dead-letter drain, and
// queue-depth probe as background goroutines bound to ctx.
func (f *Fleet) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	listenerCfg := queue.ListenerConfig{
		BatchSize:        f.queueCfg.BatchSize,
		WaitTime:         f.queueCfg.WaitTime,
		VisibilityExtend: f.queueCfg.VisibilityTimeout / 2,
		VisibilityPeriod: f.queueCfg.VisibilityTimeout,
	}

	for _, p := range f.pools {
		for _, w := range p.workers {
			f.wg.Add(1)
			go func(p *pool, w *copyworker.Worker) {
				defer f.wg.Done()
				if err := queue.Run(ctx, p.q, p.queueURL, listenerCfg, w.Handler()); err != nil {
					log.Errorw("copy worker listener stopped", "pool", p.id, "err", err)
				}
			}(p, w)
		}

		f.wg.Add(1)
		go func(p *pool) {
			defer f.wg.Done()
			queue.RunDeadLetterDrain(ctx, p.q, p.deadLetterURL, f.queueCfg.DeadLetterDrainInterval, deadLetterHandler(p.id))
		}(p)

		f.wg.Add(1)
		go func(p *pool) {
			defer f.wg.Done()
			f.probeQueueDepth(ctx, p)
		}(p)
	}
}

// Stop cancels every pool's background goroutines and waits for them to
// exit.
func (f *Fleet) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func deadLetterHandler(poolID string) queue.DeadHandler {
	attr := telemetry.StringAttr("pool", poolID)
	return func(ctx context.Context, body []byte) {
		telemetry.DeadLetters.Add(ctx, 1, attr)
		log.Warnw("dead-lettered copy job", "pool", poolID, "body", string(body))
	}
}

func (f *Fleet) probeQueueDepth(ctx context.Context, p *pool) {
	interval := f.queueCfg.DeadLetterDrainInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	attr := telemetry.StringAttr("pool", p.id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			visible, inFlight, err := p.q.ApproximateCounts(ctx, p.queueURL)
			if err != nil {
				log.Warnw("queue depth probe failed", "pool", p.id, "err", err)
				continue
			}
			telemetry.QueueDepth.Record(ctx, visible, attr)
			telemetry.QueueInFlight.Record(ctx, inFlight, attr)
		}
	}
}

func loadAWSConfig(ctx context.Context, cfg app.AWSConfig) (awssdk.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// applyEndpoint overrides a client's base endpoint, used to point every
// adapter at a single S3-compatible/localstack endpoint in non-production
// deployments. Left nil in production, where each service resolves its own
// regional endpoint.
func applyEndpoint(endpoint string, target **string) {
	if endpoint == "" {
		return
	}
	*target = awssdk.String(endpoint)
}
