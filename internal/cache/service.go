package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Zetabytes/fussball-de-api/internal/metrics"
	"github.com/Zetabytes/fussball-de-api/internal/storage/local"
)

// Clock abstracts time.Now for TTL arithmetic.
type Clock interface {
	Now() time.Time
}

// Hasher produces the hex digest used to address content-store slots.
type Hasher interface {
	Hash(data []byte) string
}

// BlobStore persists response bodies and sidecar metadata records.
// Implemented by storage/local.Store.
type BlobStore interface {
	Put(name string, data []byte) (string, error)
	Get(ref string) ([]byte, error)
	Ref(name string) string
}

// Config controls Service behavior.
type Config struct {
	// MaxEntries caps the entry map size; the least-recently-used entry is
	// evicted once exceeded. This is a size safety valve, not the primary
	// expiry mechanism, which is TTL-based.
	MaxEntries int
	// NegativeTTL caps how long error responses (status >= 400) stay cached.
	NegativeTTL time.Duration
}

// Service is the transparent HTTP cache. The entry map is shared mutable
// state fanned out to by prewarm goroutines, so every access goes through mu.
type Service struct {
	mu      sync.Mutex
	entries map[string]*Entry

	client *http.Client
	blobs  BlobStore
	hasher Hasher
	clock  Clock
	cfg    Config
	log    *zap.Logger
}

// New constructs a cache Service.
func New(client *http.Client, blobs BlobStore, hasher Hasher, clock Clock, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		entries: make(map[string]*Entry),
		client:  client,
		blobs:   blobs,
		hasher:  hasher,
		clock:   clock,
		cfg:     cfg,
		log:     logger,
	}
}

// Fetch returns the cached or live response for url.
//
// Fresh entries are served without network access. Expired entries are
// revalidated with a HEAD probe first; matching validators extend the TTL
// without a body re-download. Otherwise a full request is issued, carrying
// If-None-Match/If-Modified-Since built from stored validators. Responses
// with status >= 400 are cached negatively (no body, short TTL). Transport
// failures are returned as errors and never cached.
func (s *Service) Fetch(ctx context.Context, url, method string, ttl time.Duration) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	now := s.clock.Now()

	if resp := s.freshHit(url, now); resp != nil {
		metrics.ObserveCacheRequest("hit")
		return resp, nil
	}

	stale := s.peek(url)
	if stale != nil {
		if resp := s.revalidate(ctx, url, stale, ttl); resp != nil {
			metrics.ObserveCacheRequest("revalidated")
			return resp, nil
		}
	}

	return s.fullFetch(ctx, url, method, ttl, stale)
}

// freshHit serves an unexpired entry, or nil if none is usable. An entry
// whose body blob went missing is dropped so the caller refetches.
func (s *Service) freshHit(url string, now time.Time) *Response {
	s.mu.Lock()
	e, ok := s.entries[url]
	if !ok || !e.Fresh(now) {
		s.mu.Unlock()
		return nil
	}
	e.lastAccess = now
	snap := *e
	s.mu.Unlock()

	resp, err := s.respond(&snap)
	if err != nil {
		s.log.Warn("cached body unreadable, dropping entry",
			zap.String("url", url), zap.Error(err))
		s.drop(url)
		return nil
	}
	s.log.Debug("cache hit", zap.String("url", url))
	return resp
}

// peek returns a copy of the entry for url, expired or not.
func (s *Service) peek(url string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[url]
	if !ok {
		return nil
	}
	snap := *e
	return &snap
}

func (s *Service) drop(url string) {
	s.mu.Lock()
	delete(s.entries, url)
	s.mu.Unlock()
}

// revalidate probes an expired entry with a HEAD request. If the probe's
// validators match the stored ones the entry's expiry is extended and the
// stored content returned; any mismatch or probe failure returns nil so the
// caller falls through to a full fetch.
func (s *Service) revalidate(ctx context.Context, url string, stale *Entry, ttl time.Duration) *Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil
	}
	probe, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("HEAD probe failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	defer probe.Body.Close()
	if probe.StatusCode != http.StatusOK {
		return nil
	}

	newETag := probe.Header.Get("ETag")
	newLastMod := probe.Header.Get("Last-Modified")
	matched := (newETag != "" && newETag == stale.ETag) ||
		(newLastMod != "" && newLastMod == stale.LastModified)
	if !matched {
		s.log.Debug("HEAD probe: resource changed, refetching", zap.String("url", url))
		return nil
	}

	s.extend(url, s.clock.Now().Add(ttl))
	resp, err := s.respond(stale)
	if err != nil {
		s.log.Warn("revalidated entry has unreadable body, dropping",
			zap.String("url", url), zap.Error(err))
		s.drop(url)
		return nil
	}
	s.log.Debug("HEAD probe: no change, extended TTL", zap.String("url", url))
	return resp
}

// extend moves an entry's expiry forward. It never moves expiry backwards,
// so a fresher write is not overwritten by a conditional-probe no-op.
func (s *Service) extend(url string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[url]
	if !ok {
		return
	}
	if expiresAt.After(e.ExpiresAt) {
		e.ExpiresAt = expiresAt
	}
	e.lastAccess = s.clock.Now()
}

func (s *Service) fullFetch(ctx context.Context, url, method string, ttl time.Duration, stale *Entry) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if stale != nil {
		if stale.ETag != "" {
			req.Header.Set("If-None-Match", stale.ETag)
		}
		if stale.LastModified != "" {
			req.Header.Set("If-Modified-Since", stale.LastModified)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.ObserveCacheRequest("error")
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	now := s.clock.Now()
	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusNotModified && stale != nil {
		s.extend(url, now.Add(ttl))
		out, err := s.respond(stale)
		if err != nil {
			s.drop(url)
			return nil, fmt.Errorf("cached body unreadable for %s: %w", url, err)
		}
		metrics.ObserveCacheRequest("revalidated")
		return out, nil
	}

	headers := flattenHeaders(resp.Header)

	if resp.StatusCode >= 400 {
		s.log.Warn("caching negative response",
			zap.String("url", url), zap.Int("status", resp.StatusCode))
		negTTL := ttl
		if s.cfg.NegativeTTL < negTTL {
			negTTL = s.cfg.NegativeTTL
		}
		s.insert(&Entry{
			URL:        url,
			FinalURL:   finalURL,
			StatusCode: resp.StatusCode,
			Headers:    headers,
			ExpiresAt:  now.Add(negTTL),
			lastAccess: now,
		})
		metrics.ObserveCacheRequest("negative")
		return &Response{URL: finalURL, StatusCode: resp.StatusCode, Headers: headers}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveCacheRequest("error")
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}

	entry := &Entry{
		URL:          url,
		FinalURL:     finalURL,
		StatusCode:   resp.StatusCode,
		Headers:      headers,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ExpiresAt:    now.Add(ttl),
		lastAccess:   now,
	}
	s.persist(url, body, entry)
	s.insert(entry)

	metrics.ObserveCacheRequest("miss")
	return &Response{URL: finalURL, StatusCode: resp.StatusCode, Headers: headers, Body: body}, nil
}

// persist writes the body blob and its sidecar record. Persistence failures
// are logged and skipped; the entry is still usable for its lifetime but
// carries no BodyRef.
func (s *Service) persist(url string, body []byte, entry *Entry) {
	hash := s.hasher.Hash([]byte(url))

	ref, err := s.blobs.Put(hash+".bin", body)
	if err != nil {
		s.log.Error("persist body failed", zap.String("url", url), zap.Error(err))
		return
	}
	entry.BodyRef = ref

	sidecar, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		s.log.Error("marshal sidecar failed", zap.String("url", url), zap.Error(err))
		return
	}
	if _, err := s.blobs.Put(hash+"_metadata.json", sidecar); err != nil {
		s.log.Error("persist sidecar failed", zap.String("url", url), zap.Error(err))
	}
}

// respond reconstructs a Response from an entry, loading the body lazily.
// Entries without a BodyRef (negative entries) yield an empty body.
func (s *Service) respond(e *Entry) (*Response, error) {
	var body []byte
	if e.BodyRef != "" {
		b, err := s.blobs.Get(e.BodyRef)
		if err != nil {
			return nil, err
		}
		body = b
	}
	return &Response{
		URL:        e.FinalURL,
		StatusCode: e.StatusCode,
		Headers:    e.Headers,
		Body:       body,
	}, nil
}

// insert adds or overwrites an entry, evicting the least-recently-used one
// when the size bound is exceeded. Last writer wins on concurrent fetches.
func (s *Service) insert(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.URL] = e
	for len(s.entries) > s.cfg.MaxEntries {
		var oldestURL string
		var oldest time.Time
		first := true
		for url, cur := range s.entries {
			if first || cur.lastAccess.Before(oldest) {
				oldestURL = url
				oldest = cur.lastAccess
				first = false
			}
		}
		delete(s.entries, oldestURL)
		metrics.ObserveCacheEviction()
		s.log.Debug("evicted cache entry", zap.String("url", oldestURL))
	}
}

// Restore places a reconstructed entry into the cache, used by the
// persistence loader at startup.
func (s *Service) Restore(e *Entry) error {
	if e == nil || e.URL == "" {
		return errors.New("restore: entry has no URL")
	}
	e.lastAccess = s.clock.Now()
	s.insert(e)
	return nil
}

// Redirects returns the URL to final-URL map covering every current entry.
func (s *Service) Redirects() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for url, e := range s.entries {
		out[url] = e.FinalURL
	}
	return out
}

// Len returns the number of cached entries.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// ensure the local store satisfies the consumer interface.
var _ BlobStore = (*local.Store)(nil)
