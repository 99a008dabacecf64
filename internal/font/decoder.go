package font

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Zetabytes/fussball-de-api/internal/cache"
)

// Fetcher is the slice of the HTTP cache the decoder needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, method string, ttl time.Duration) (*cache.Response, error)
}

type mappingEntry struct {
	m         map[string]string
	expiresAt time.Time
}

// Decoder resolves obfuscation font IDs to character mappings and applies
// them to text. Mappings are cached per font ID with their own TTL on top of
// the HTTP cache, since the same few fonts recur across many pages.
type Decoder struct {
	fetcher Fetcher
	clock   cache.Clock
	baseURL string
	ttl     time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	mappings map[string]mappingEntry
}

// NewDecoder constructs a Decoder fetching font assets through the cache.
func NewDecoder(fetcher Fetcher, clock cache.Clock, baseURL string, ttl time.Duration, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		fetcher:  fetcher,
		clock:    clock,
		baseURL:  baseURL,
		ttl:      ttl,
		log:      logger,
		mappings: make(map[string]mappingEntry),
	}
}

// MapFor returns the deobfuscation mapping for fontID. Failures yield an
// empty mapping so callers degrade to raw text; failures are not cached, a
// later call retries the download.
func (d *Decoder) MapFor(ctx context.Context, fontID string) map[string]string {
	if fontID == "" {
		return map[string]string{}
	}
	now := d.clock.Now()

	d.mu.Lock()
	if cached, ok := d.mappings[fontID]; ok && now.Before(cached.expiresAt) {
		d.mu.Unlock()
		return cached.m
	}
	d.mu.Unlock()

	url := d.baseURL + "/export.fontface/-/format/woff/id/" + fontID + "/type/font"
	resp, err := d.fetcher.Fetch(ctx, url, "GET", d.ttl)
	if err != nil {
		d.log.Warn("font download failed", zap.String("font_id", fontID), zap.Error(err))
		return map[string]string{}
	}
	if resp.StatusCode >= 400 || len(resp.Body) == 0 {
		d.log.Warn("font download returned no usable body",
			zap.String("font_id", fontID), zap.Int("status", resp.StatusCode))
		return map[string]string{}
	}

	names, err := ParseGlyphNames(resp.Body)
	if err != nil {
		d.log.Warn("font parse failed", zap.String("font_id", fontID), zap.Error(err))
		return map[string]string{}
	}
	m := BuildMapping(names)

	d.mu.Lock()
	d.mappings[fontID] = mappingEntry{m: m, expiresAt: now.Add(d.ttl)}
	d.mu.Unlock()

	d.log.Debug("built font mapping",
		zap.String("font_id", fontID), zap.Int("glyphs", len(m)))
	return m
}

// DecodeText decodes a fully obfuscated string, where every character is a
// code point to look up in the font mapping. Characters are matched by
// lowercase hex first, then uppercase; glyphs mapped to the empty placeholder
// are dropped. With no usable mapping the trimmed raw text is returned.
func (d *Decoder) DecodeText(ctx context.Context, text, fontID string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	mapping := d.MapFor(ctx, fontID)
	if len(mapping) == 0 {
		return text
	}

	var b strings.Builder
	for _, r := range text {
		hex := formatHex(r)
		if v, ok := mapping[hex]; ok {
			b.WriteString(v)
			continue
		}
		if v, ok := mapping[strings.ToUpper(hex)]; ok {
			b.WriteString(v)
		}
	}
	return b.String()
}

// DecodeFragment walks an HTML fragment mixing plain text with obfuscated
// spans (marked by a data-obfuscation attribute naming the font) and returns
// the decoded plain text.
//
// Obfuscated spans are decoded with a lowercase lookup and unmapped
// characters passed through untouched; their children are not walked again.
// Plain text nodes are trimmed, and nodes that are empty or consist only of
// private-use code points (leftover glyphs without a marker span) are
// discarded.
func (d *Decoder) DecodeFragment(ctx context.Context, root *html.Node) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "span" {
			if fontID := attr(n, "data-obfuscation"); fontID != "" {
				parts = append(parts, d.decodeObfuscated(ctx, textContent(n), fontID))
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text == "" || allPrivateUse(text) {
				return
			}
			parts = append(parts, text)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.TrimSpace(strings.Join(parts, ""))
}

// decodeObfuscated maps each character of an obfuscated span through the font
// mapping. Unlike DecodeText, characters without a mapping are kept as-is so
// mixed content inside a marker span survives.
func (d *Decoder) decodeObfuscated(ctx context.Context, text, fontID string) string {
	mapping := d.MapFor(ctx, fontID)
	if len(mapping) == 0 {
		return text
	}
	var b strings.Builder
	for _, r := range text {
		if v, ok := mapping[formatHex(r)]; ok {
			b.WriteString(v)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatHex(r rune) string {
	const digits = "0123456789abcdef"
	if r == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v := uint32(r); v > 0; v >>= 4 {
		i--
		buf[i] = digits[v&0xF]
	}
	return string(buf[i:])
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// allPrivateUse reports whether every rune falls in the BMP private use area,
// the range obfuscation glyphs live in.
func allPrivateUse(s string) bool {
	for _, r := range s {
		if r < 0xE000 || r > 0xF8FF {
			return false
		}
	}
	return true
}
