package copyworker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	blobmem "github.com/storacha/cloud-mirror/pkg/blobstore/memory"
	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/queue"
	statusmem "github.com/storacha/cloud-mirror/pkg/statusstore/memory"
	"github.com/storacha/cloud-mirror/pkg/validator"
)

func TestPut_CopiesOriginToBlobAndMarksPresent(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello world"))
	}))
	defer origin.Close()

	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{`^127\.0\.0\.1$`}, MaxHops: 5}, nil)
	require.NoError(t, err)

	status := statusmem.New()
	blobs := blobmem.New()
	w := New("s3_us-west-1", status, blobs, v, Config{CacheTTL: time.Minute}, nil)

	err = w.Put(t.Context(), origin.URL+"/object")
	require.NoError(t, err)

	key := cacheentry.Key("s3_us-west-1", origin.URL+"/object")
	fields, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, string(cacheentry.StatusPresent), fields["status"])

	body, ok := blobs.Get(key)
	require.True(t, ok)
	require.Equal(t, "hello world", string(body))
}

func TestPut_DeclinesWhenAlreadyLocked(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer origin.Close()

	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{`^127\.0\.0\.1$`}, MaxHops: 5}, nil)
	require.NoError(t, err)

	status := statusmem.New()
	blobs := blobmem.New()
	w := New("s3_us-west-1", status, blobs, v, Config{CacheTTL: time.Minute}, nil)

	rawURL := origin.URL + "/object"
	key := cacheentry.Key("s3_us-west-1", rawURL)
	lockKey := cacheentry.LockKey(key)
	require.NoError(t, status.PutIfAbsent(t.Context(), lockKey, nil, time.Minute))

	require.NoError(t, w.Put(t.Context(), rawURL))

	_, ok := blobs.Get(key)
	require.False(t, ok, "declining the lock must not perform any upload")
}

func TestPut_RejectsDisallowedHost(t *testing.T) {
	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{`^cdn\.example\.com$`}}, nil)
	require.NoError(t, err)

	status := statusmem.New()
	blobs := blobmem.New()
	w := New("s3_us-west-1", status, blobs, v, Config{CacheTTL: time.Minute}, nil)

	err = w.Put(t.Context(), "https://evil.example.net/x")
	require.Error(t, err)

	key := cacheentry.Key("s3_us-west-1", "https://evil.example.net/x")
	fields, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, "error", fields["status"])
	require.NotEmpty(t, fields["stack"])
}

func TestHandler_UnparseablePayloadReturnsErrorForRedelivery(t *testing.T) {
	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{`^127\.0\.0\.1$`}}, nil)
	require.NoError(t, err)

	w := New("s3_us-west-1", statusmem.New(), blobmem.New(), v, Config{CacheTTL: time.Minute}, nil)

	err = w.Handler()(t.Context(), queue.Message{Body: []byte("not json")})
	require.Error(t, err, "a malformed payload must stay unacked so the queue redelivers it toward the dead-letter path")
}

func TestPut_InactivityTimeoutAbortsStalledStream(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first chunk"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("second chunk"))
	}))
	defer origin.Close()

	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{`^127\.0\.0\.1$`}, MaxHops: 5}, nil)
	require.NoError(t, err)

	status := statusmem.New()
	blobs := blobmem.New()
	worker := New("s3_us-west-1", status, blobs, v, Config{CacheTTL: time.Minute, InactivityTimeout: 20 * time.Millisecond}, nil)

	err = worker.Put(t.Context(), origin.URL+"/object")
	require.Error(t, err)

	key := cacheentry.Key("s3_us-west-1", origin.URL+"/object")
	fields, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, "error", fields["status"])
}

func TestPut_SlowButSteadyStreamSurvivesInactivityTimeout(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _ := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			w.Write([]byte("chunk "))
			if f != nil {
				f.Flush()
			}
			time.Sleep(15 * time.Millisecond)
		}
	}))
	defer origin.Close()

	v, err := validator.New(validator.Config{AllowedHostPatterns: []string{`^127\.0\.0\.1$`}, MaxHops: 5}, nil)
	require.NoError(t, err)

	status := statusmem.New()
	blobs := blobmem.New()
	// Total transfer time (~75ms) exceeds InactivityTimeout (50ms); since no
	// single gap between writes does, the stream must still succeed — this
	// is an idle-time bound, not a total-duration one.
	worker := New("s3_us-west-1", status, blobs, v, Config{CacheTTL: time.Minute, InactivityTimeout: 50 * time.Millisecond}, nil)

	err = worker.Put(t.Context(), origin.URL+"/object")
	require.NoError(t, err)

	key := cacheentry.Key("s3_us-west-1", origin.URL+"/object")
	fields, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, string(cacheentry.StatusPresent), fields["status"])
}
