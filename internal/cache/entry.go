// Package cache implements a transparent, size- and time-bounded HTTP cache
// with conditional revalidation and disk-backed response bodies.
package cache

import "time"

// Entry represents the cached state of one URL. The JSON tags double as the
// sidecar metadata record format written next to each body blob, so a cache
// can be reconstructed from disk without replaying the snapshot's fields.
type Entry struct {
	URL          string            `json:"url"`
	FinalURL     string            `json:"final_url"`
	StatusCode   int               `json:"status_code"`
	Headers      map[string]string `json:"headers"`
	ETag         string            `json:"etag,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at"`
	BodyRef      string            `json:"content_file,omitempty"`

	lastAccess time.Time
}

// Fresh reports whether the entry may be served without network access.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Negative reports whether the entry caches an error response. Negative
// entries carry no body and are overwritten by the next successful fetch.
func (e *Entry) Negative() bool {
	return e.StatusCode >= 400
}

// Response is what Fetch hands back to callers: either freshly fetched or
// reconstructed from a cache entry plus its stored body.
type Response struct {
	URL        string
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Text returns the body decoded as a string.
func (r *Response) Text() string {
	return string(r.Body)
}
