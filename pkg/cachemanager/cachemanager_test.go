package cachemanager

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storacha/cloud-mirror/pkg/blobstore"
	blobmem "github.com/storacha/cloud-mirror/pkg/blobstore/memory"
	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	queuemem "github.com/storacha/cloud-mirror/pkg/queue/memory"
	statusmem "github.com/storacha/cloud-mirror/pkg/statusstore/memory"
)

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func blobstoreHeaders() blobstore.Headers { return blobstore.Headers{ContentType: "text/plain"} }

func TestGetURLForRedirect_Absent(t *testing.T) {
	m := New("s3_us-west-1", statusmem.New(), blobmem.New(), queuemem.New(), "q", Config{}, nil)

	info, err := m.GetURLForRedirect(t.Context(), "https://example.com/x")
	require.NoError(t, err)
	require.Equal(t, cacheentry.StatusAbsent, info.Status)
	require.NotEmpty(t, info.URL)
}

func TestGetURLForRedirect_Present(t *testing.T) {
	status := statusmem.New()
	m := New("s3_us-west-1", status, blobmem.New(), queuemem.New(), "q", Config{}, nil)

	rawURL := "https://example.com/x"
	key := cacheentry.Key("s3_us-west-1", rawURL)
	require.NoError(t, status.Put(t.Context(), key, map[string]string{"url": rawURL, "status": "present"}, time.Minute))

	info, err := m.GetURLForRedirect(t.Context(), rawURL)
	require.NoError(t, err)
	require.Equal(t, cacheentry.StatusPresent, info.Status)
}

func TestGetURLForRedirect_BackfillsFromBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	blobs := blobmem.New()
	blobs.PublicURLPrefix = srv.URL + "/"
	m := New("s3_us-west-1", statusmem.New(), blobs, queuemem.New(), "q", Config{CacheTTL: time.Minute}, nil)

	rawURL := "https://example.com/x"
	key := cacheentry.Key("s3_us-west-1", rawURL)
	require.NoError(t, blobs.Put(t.Context(), key, 5, stringsReader("hello"), blobstoreHeaders(), nil))

	info, err := m.GetURLForRedirect(t.Context(), rawURL)
	require.NoError(t, err)
	require.Equal(t, cacheentry.StatusPresent, info.Status)
}

func TestGetURLForRedirect_DoesNotBackfillWhenPublicURLUnreadable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	blobs := blobmem.New()
	blobs.PublicURLPrefix = srv.URL + "/"
	m := New("s3_us-west-1", statusmem.New(), blobs, queuemem.New(), "q", Config{CacheTTL: time.Minute}, nil)

	rawURL := "https://example.com/x"
	key := cacheentry.Key("s3_us-west-1", rawURL)
	require.NoError(t, blobs.Put(t.Context(), key, 5, stringsReader("hello"), blobstoreHeaders(), nil))

	info, err := m.GetURLForRedirect(t.Context(), rawURL)
	require.NoError(t, err)
	require.Equal(t, cacheentry.StatusAbsent, info.Status)
}

func TestRequestPut_WritesPendingAndEnqueues(t *testing.T) {
	status := statusmem.New()
	q := queuemem.New()
	queueURL, _, err := q.Initialize(t.Context(), "copy-jobs", "-dlq", 5)
	require.NoError(t, err)

	m := New("s3_us-west-1", status, blobmem.New(), q, queueURL, Config{CacheTTL: time.Minute}, nil)

	rawURL := "https://example.com/x"
	require.NoError(t, m.RequestPut(t.Context(), rawURL))

	key := cacheentry.Key("s3_us-west-1", rawURL)
	fields, err := status.Get(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, "pending", fields["status"])

	visible, _, err := q.ApproximateCounts(t.Context(), queueURL)
	require.NoError(t, err)
	require.Equal(t, int64(1), visible)
}

func TestPurge_DeletesBlobAndStatus(t *testing.T) {
	status := statusmem.New()
	blobs := blobmem.New()
	m := New("s3_us-west-1", status, blobs, queuemem.New(), "q", Config{}, nil)

	rawURL := "https://example.com/x"
	key := cacheentry.Key("s3_us-west-1", rawURL)
	require.NoError(t, status.Put(t.Context(), key, map[string]string{"url": rawURL, "status": "present"}, time.Minute))
	require.NoError(t, blobs.Put(t.Context(), key, 5, stringsReader("hello"), blobstoreHeaders(), nil))

	require.NoError(t, m.Purge(t.Context(), rawURL))

	_, err := status.Get(t.Context(), key)
	require.Error(t, err)
	_, ok := blobs.Get(key)
	require.False(t, ok)
}
