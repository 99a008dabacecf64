package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Zetabytes/fussball-de-api/internal/storage/local"
)

// AggregateSnapshotter exposes the single prewarmed aggregate for
// persistence without the cache package knowing its concrete type.
type AggregateSnapshotter interface {
	SnapshotJSON(id string) (json.RawMessage, bool)
	RestoreJSON(id string, raw json.RawMessage) error
}

// snapshotFile is the durable snapshot format: a redirect map covering every
// cache entry plus the aggregate for the configured prewarm target only.
type snapshotFile struct {
	Redirects     map[string]string          `json:"redirects"`
	ClubInfoCache map[string]json.RawMessage `json:"club_info_cache"`
}

// PersistorConfig controls snapshot location and bounds.
type PersistorConfig struct {
	// Path is the snapshot file location.
	Path string
	// MaxBytes is the load-time size ceiling; larger files are deleted unread.
	MaxBytes int64
	// PrewarmID selects which aggregate (if any) is persisted and restored.
	PrewarmID string
}

// Persistor saves a bounded snapshot of cache metadata at shutdown and
// restores it at startup.
type Persistor struct {
	svc    *Service
	agg    AggregateSnapshotter
	blobs  BlobStore
	hasher Hasher
	cfg    PersistorConfig
	log    *zap.Logger
}

// NewPersistor wires a Persistor to the cache service, the aggregate store
// and the blob store holding the sidecar metadata records.
func NewPersistor(svc *Service, agg AggregateSnapshotter, blobs BlobStore, hasher Hasher, cfg PersistorConfig, logger *zap.Logger) *Persistor {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistor{svc: svc, agg: agg, blobs: blobs, hasher: hasher, cfg: cfg, log: logger}
}

// Save writes the snapshot file, flushed and forced to stable storage before
// returning. Only the configured prewarm target's aggregate is persisted, so
// the snapshot size stays bounded regardless of what was cached.
func (p *Persistor) Save() error {
	snap := snapshotFile{
		Redirects:     p.svc.Redirects(),
		ClubInfoCache: map[string]json.RawMessage{},
	}
	if p.cfg.PrewarmID != "" && p.agg != nil {
		if raw, ok := p.agg.SnapshotJSON(p.cfg.PrewarmID); ok {
			snap.ClubInfoCache[p.cfg.PrewarmID] = raw
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	f, err := os.OpenFile(p.cfg.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	p.log.Info("saved cache snapshot",
		zap.String("path", p.cfg.Path),
		zap.Int("redirects", len(snap.Redirects)))
	return nil
}

// Load restores cache entries from the snapshot and the sidecar metadata
// records. A snapshot exceeding the size ceiling is deleted unread. Entries
// whose sidecar is missing or unreadable are silently dropped; one bad entry
// never aborts the rest of the load.
func (p *Persistor) Load() error {
	info, err := os.Stat(p.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat snapshot: %w", err)
	}
	if info.Size() > p.cfg.MaxBytes {
		p.log.Warn("snapshot exceeds size ceiling, deleting",
			zap.String("path", p.cfg.Path),
			zap.Int64("size", info.Size()),
			zap.Int64("max", p.cfg.MaxBytes))
		if err := os.Remove(p.cfg.Path); err != nil {
			return fmt.Errorf("remove oversized snapshot: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(p.cfg.Path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	restored := 0
	for url := range snap.Redirects {
		entry, err := p.loadSidecar(url)
		if err != nil {
			if !errors.Is(err, local.ErrNotFound) {
				p.log.Error("failed to restore cache entry",
					zap.String("url", url), zap.Error(err))
			}
			continue
		}
		if err := p.svc.Restore(entry); err != nil {
			p.log.Error("failed to restore cache entry",
				zap.String("url", url), zap.Error(err))
			continue
		}
		restored++
	}

	p.restoreAggregate(snap.ClubInfoCache)

	p.log.Info("loaded cache snapshot",
		zap.String("path", p.cfg.Path),
		zap.Int("entries", restored))
	return nil
}

func (p *Persistor) loadSidecar(url string) (*Entry, error) {
	hash := p.hasher.Hash([]byte(url))
	raw, err := p.blobs.Get(p.blobs.Ref(hash + "_metadata.json"))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	return &entry, nil
}

// restoreAggregate keeps only the configured prewarm target's aggregate.
// With no target configured any loaded aggregate state is discarded, so a
// changed configuration cannot grow memory across restarts.
func (p *Persistor) restoreAggregate(aggs map[string]json.RawMessage) {
	if p.cfg.PrewarmID == "" || p.agg == nil {
		if len(aggs) > 0 {
			p.log.Info("no prewarm target configured, discarding loaded aggregate state")
		}
		return
	}
	raw, ok := aggs[p.cfg.PrewarmID]
	if !ok {
		return
	}
	if err := p.agg.RestoreJSON(p.cfg.PrewarmID, raw); err != nil {
		p.log.Error("failed to restore aggregate",
			zap.String("club_id", p.cfg.PrewarmID), zap.Error(err))
	}
}
