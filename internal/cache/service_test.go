package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zetabytes/fussball-de-api/internal/hash/md5"
	"github.com/Zetabytes/fussball-de-api/internal/storage/local"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T, clock *fakeClock, cfg Config) *Service {
	t.Helper()
	blobs, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return New(http.DefaultClient, blobs, md5.New(), clock, cfg, nil)
}

func TestFreshHitSkipsNetwork(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{})

	resp, err := svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Text())
	assert.Equal(t, int64(1), gets.Load())

	resp, err = svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Text())
	assert.Equal(t, int64(1), gets.Load(), "fresh entry must not hit the network")
}

func TestHeadProbeExtendsUnchangedEntry(t *testing.T) {
	var gets, heads atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		if r.Method == http.MethodHead {
			heads.Add(1)
			return
		}
		gets.Add(1)
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{})

	_, err := svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), gets.Load())

	clock.advance(2 * time.Minute)

	resp, err := svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Text())
	assert.Equal(t, int64(1), gets.Load(), "matching ETag must avoid a body re-download")
	assert.Equal(t, int64(1), heads.Load())

	// The probe extended the TTL, so the next read is a plain hit.
	_, err = svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), heads.Load())
	assert.Equal(t, int64(1), gets.Load())
}

func TestConditionalGetHandles304(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// No validators on HEAD forces the conditional GET path.
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{})

	_, err := svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)

	clock.advance(2 * time.Minute)

	resp, err := svc.Fetch(context.Background(), srv.URL, "GET", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Text(), "304 must serve the stored body")
	assert.Equal(t, int64(2), gets.Load())
}

func TestNegativeCaching(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gets.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{NegativeTTL: time.Minute})

	resp, err := svc.Fetch(context.Background(), srv.URL, "GET", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Body, "negative entries carry no body")

	resp, err = svc.Fetch(context.Background(), srv.URL, "GET", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int64(1), gets.Load(), "negative entry must be served from cache")

	// The negative TTL caps the requested TTL.
	clock.advance(2 * time.Minute)
	_, err = svc.Fetch(context.Background(), srv.URL, "GET", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gets.Load())
}

func TestTransportErrorIsNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{})

	_, err := svc.Fetch(context.Background(), url, "GET", time.Minute)
	require.Error(t, err)
	assert.Equal(t, 0, svc.Len())
}

func TestEvictionRespectsBound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{MaxEntries: 2})

	for i := 0; i < 3; i++ {
		_, err := svc.Fetch(context.Background(), fmt.Sprintf("%s/page/%d", srv.URL, i), "GET", time.Minute)
		require.NoError(t, err)
		clock.advance(time.Second)
	}
	assert.Equal(t, 2, svc.Len())

	// The first URL was the least recently used one and must be gone.
	redirects := svc.Redirects()
	_, ok := redirects[srv.URL+"/page/0"]
	assert.False(t, ok)
}

func TestRestoreRequiresURL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock, Config{})

	assert.Error(t, svc.Restore(&Entry{}))
	assert.NoError(t, svc.Restore(&Entry{URL: "https://example.test/x"}))
	assert.Equal(t, 1, svc.Len())
}
