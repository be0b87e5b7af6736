// Package integration exercises pkg/cachemanager, pkg/copyworker, and the
// pkg/aws adapter family against a real S3/DynamoDB/SQS surface provided by
// a localstack container, rather than the in-memory fakes the unit test
// suites for those packages use. Grounded on the teacher's
// testcontainers-go TestMain pattern (pkg/store/objectstore/minio) and its
// env-var test-skip convention (lib/jobqueue/internal/testing/postgres.go).
package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"

	cmaws "github.com/storacha/cloud-mirror/pkg/aws"
	"github.com/storacha/cloud-mirror/pkg/blobstore"
	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/cachemanager"
	"github.com/storacha/cloud-mirror/pkg/copyworker"
	"github.com/storacha/cloud-mirror/pkg/queue"
	"github.com/storacha/cloud-mirror/pkg/statusstore"
	"github.com/storacha/cloud-mirror/pkg/testutil/localstack"
	"github.com/storacha/cloud-mirror/pkg/validator"
)

var stack *localstack.Container

// TestMain brings up one shared localstack container for every test in
// this package; each test provisions its own uniquely named bucket, table,
// and queue so tests don't interfere with one another.
func TestMain(m *testing.M) {
	if os.Getenv("CLOUD_MIRROR_SKIP_INTEGRATION_TESTS") == "1" {
		os.Exit(0)
	}

	ctx := context.Background()
	var err error
	stack, err = localstack.Run(ctx)
	if err != nil {
		panic(fmt.Sprintf("starting localstack: %v", err))
	}

	code := m.Run()

	if err := stack.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("terminating localstack container: %v", err))
	}
	os.Exit(code)
}

// sanitize turns a test-chosen label into a name valid for an S3 bucket,
// DynamoDB table, and SQS queue alike: lowercase alphanumerics and hyphens.
func sanitize(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

func dynamoClient(t *testing.T, cfg awssdk.Config) *dynamodb.Client {
	t.Helper()
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = awssdk.String(stack.Endpoint)
	})
}

// newBlobStore provisions a fresh bucket and returns an S3BlobStore over it.
func newBlobStore(t *testing.T, cfg awssdk.Config, label string) blobstore.Store {
	t.Helper()
	bucket := sanitize(label)
	publicBase := fmt.Sprintf("%s/%s/", stack.Endpoint, bucket)
	store := cmaws.NewS3BlobStore(cfg, bucket, publicBase, 0, 0, func(o *s3.Options) {
		o.BaseEndpoint = awssdk.String(stack.Endpoint)
		o.UsePathStyle = true
	})
	require.NoError(t, store.EnsureContainer(t.Context(), 1))
	return store
}

// newStatusStore provisions a fresh DynamoDB table and returns a
// DynamoStatusStore over it.
func newStatusStore(t *testing.T, cfg awssdk.Config, label string) statusstore.Store {
	t.Helper()
	table := sanitize(label)
	require.NoError(t, localstack.CreateStatusTable(t.Context(), dynamoClient(t, cfg), table))
	return cmaws.NewDynamoStatusStore(cfg, table, func(o *dynamodb.Options) {
		o.BaseEndpoint = awssdk.String(stack.Endpoint)
	})
}

// newQueue provisions a fresh primary + dead-letter queue pair and returns
// the queue.Queue plus both URLs.
func newQueue(t *testing.T, cfg awssdk.Config, label string) (queue.Queue, string, string) {
	t.Helper()
	q := cmaws.NewSQSQueue(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = awssdk.String(stack.Endpoint)
	})
	queueURL, deadLetterURL, err := q.Initialize(t.Context(), sanitize(label), "-dlq", 3)
	require.NoError(t, err)
	return q, queueURL, deadLetterURL
}

func TestS3BlobStore_PutHeadDeleteAgainstLocalstack(t *testing.T) {
	cfg, err := stack.AWSConfig(t.Context())
	require.NoError(t, err)
	blobs := newBlobStore(t, cfg, "s3-direct-put-head-delete")

	body := "hello from the integration suite"
	headers := blobstore.Headers{ContentType: "text/plain"}
	require.NoError(t, blobs.Put(t.Context(), "greeting", int64(len(body)), strings.NewReader(body), headers, nil))

	head, err := blobs.Head(t.Context(), "greeting")
	require.NoError(t, err)
	require.NotNil(t, head.Headers.ContentLength)
	require.Equal(t, int64(len(body)), *head.Headers.ContentLength)

	require.NoError(t, blobs.Delete(t.Context(), "greeting"))
	_, err = blobs.Head(t.Context(), "greeting")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDynamoStatusStore_PutGetPutIfAbsentDeleteAgainstLocalstack(t *testing.T) {
	cfg, err := stack.AWSConfig(t.Context())
	require.NoError(t, err)
	status := newStatusStore(t, cfg, "dynamo-direct-roundtrip")

	key := cacheentry.Key("s3_us-west-1", "https://example.com/dynamo-roundtrip")
	fields := statusstore.Fields{"url": "https://example.com/dynamo-roundtrip", "status": "present"}

	require.NoError(t, status.Put(t.Context(), key, fields, time.Minute))
	got, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, fields, got)

	err = status.PutIfAbsent(t.Context(), key, fields, time.Minute)
	require.ErrorIs(t, err, statusstore.ErrAlreadyExists)

	require.NoError(t, status.Delete(t.Context(), key))
	_, err = status.Get(t.Context(), key)
	require.ErrorIs(t, err, statusstore.ErrNotFound)
}

func TestSQSQueue_InitializeSendReceiveAckAgainstLocalstack(t *testing.T) {
	cfg, err := stack.AWSConfig(t.Context())
	require.NoError(t, err)
	q, queueURL, _ := newQueue(t, cfg, "sqs-direct-roundtrip")

	job := queue.Job{ID: "s3_us-west-1", URL: "https://example.com/queued", Action: "put"}
	require.NoError(t, q.Send(t.Context(), queueURL, job))

	msgs, err := q.Receive(t.Context(), queueURL, 1, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Contains(t, string(msgs[0].Body), job.URL)

	require.NoError(t, q.Ack(t.Context(), queueURL, msgs[0]))

	visible, inFlight, err := q.ApproximateCounts(t.Context(), queueURL)
	require.NoError(t, err)
	require.Zero(t, visible)
	require.Zero(t, inFlight)
}

// TestCachemanagerAndCopyworker_EndToEndAgainstLocalstack wires a Cache
// Manager and a Copy Worker to real S3, DynamoDB, and SQS and drives one
// full copy: RequestPut enqueues a job, the worker dequeues and uploads it,
// and the cache entry becomes observably present.
func TestCachemanagerAndCopyworker_EndToEndAgainstLocalstack(t *testing.T) {
	cfg, err := stack.AWSConfig(t.Context())
	require.NoError(t, err)

	const poolID = "s3_us-west-1"
	blobs := newBlobStore(t, cfg, "e2e-blobs")
	status := newStatusStore(t, cfg, "e2e-status")
	q, queueURL, _ := newQueue(t, cfg, "e2e-jobs")

	body := "copied end to end through localstack"
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(origin.Close)

	originURL, err := url.Parse(origin.URL)
	require.NoError(t, err)
	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{"^" + regexp.QuoteMeta(originURL.Hostname()) + "$"}, MaxHops: 5}, nil)
	require.NoError(t, err)

	cm := cachemanager.New(poolID, status, blobs, q, queueURL, cachemanager.Config{CacheTTL: time.Minute}, nil)
	worker := copyworker.New(poolID, status, blobs, v, copyworker.Config{CacheTTL: time.Minute}, nil)

	rawURL := origin.URL + "/object"
	require.NoError(t, cm.RequestPut(t.Context(), rawURL))

	msgs, err := q.Receive(t.Context(), queueURL, 1, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, worker.Handler()(t.Context(), msgs[0]))
	require.NoError(t, q.Ack(t.Context(), queueURL, msgs[0]))

	key := cacheentry.Key(poolID, rawURL)
	head, err := blobs.Head(t.Context(), key)
	require.NoError(t, err)
	require.NotNil(t, head.Headers.ContentLength)
	require.Equal(t, int64(len(body)), *head.Headers.ContentLength)

	fields, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, "present", fields["status"])
}
