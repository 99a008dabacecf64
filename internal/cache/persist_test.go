package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zetabytes/fussball-de-api/internal/hash/md5"
	"github.com/Zetabytes/fussball-de-api/internal/storage/local"
)

type fakeSnapshotter struct {
	snapshots map[string]json.RawMessage
	restored  map[string]json.RawMessage
}

func newFakeSnapshotter() *fakeSnapshotter {
	return &fakeSnapshotter{
		snapshots: map[string]json.RawMessage{},
		restored:  map[string]json.RawMessage{},
	}
}

func (f *fakeSnapshotter) SnapshotJSON(id string) (json.RawMessage, bool) {
	raw, ok := f.snapshots[id]
	return raw, ok
}

func (f *fakeSnapshotter) RestoreJSON(id string, raw json.RawMessage) error {
	f.restored[id] = raw
	return nil
}

func TestSaveLoadRoundtrip(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	hasher := md5.New()
	clock := &fakeClock{now: time.Now()}
	snapshotPath := filepath.Join(dir, "snapshot.json")

	svc := New(http.DefaultClient, blobs, hasher, clock, Config{}, nil)
	_, err = svc.Fetch(context.Background(), srv.URL, "GET", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), gets.Load())

	agg := newFakeSnapshotter()
	agg.snapshots["00123"] = json.RawMessage(`{"teams":[]}`)
	p := NewPersistor(svc, agg, blobs, hasher, PersistorConfig{
		Path:      snapshotPath,
		PrewarmID: "00123",
	}, nil)
	require.NoError(t, p.Save())

	// A fresh process: new service over the same blob directory.
	restored := New(http.DefaultClient, blobs, hasher, clock, Config{}, nil)
	agg2 := newFakeSnapshotter()
	p2 := NewPersistor(restored, agg2, blobs, hasher, PersistorConfig{
		Path:      snapshotPath,
		PrewarmID: "00123",
	}, nil)
	require.NoError(t, p2.Load())
	require.Equal(t, 1, restored.Len())

	resp, err := restored.Fetch(context.Background(), srv.URL, "GET", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Text())
	assert.Equal(t, int64(1), gets.Load(), "restored entry must serve without network access")

	assert.JSONEq(t, `{"teams":[]}`, string(agg2.restored["00123"]))
}

func TestLoadDropsEntriesWithMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	hasher := md5.New()
	clock := &fakeClock{now: time.Now()}
	snapshotPath := filepath.Join(dir, "snapshot.json")

	snap := map[string]any{
		"redirects":       map[string]string{"https://example.test/a": "https://example.test/a"},
		"club_info_cache": map[string]any{},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(snapshotPath, data, 0o600))

	svc := New(http.DefaultClient, blobs, hasher, clock, Config{}, nil)
	p := NewPersistor(svc, nil, blobs, hasher, PersistorConfig{Path: snapshotPath}, nil)
	require.NoError(t, p.Load())
	assert.Equal(t, 0, svc.Len())
}

func TestLoadDeletesOversizedSnapshot(t *testing.T) {
	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	clock := &fakeClock{now: time.Now()}
	snapshotPath := filepath.Join(dir, "snapshot.json")

	require.NoError(t, os.WriteFile(snapshotPath, bytes.Repeat([]byte("x"), 2048), 0o600))

	svc := New(http.DefaultClient, blobs, md5.New(), clock, Config{}, nil)
	p := NewPersistor(svc, nil, blobs, md5.New(), PersistorConfig{
		Path:     snapshotPath,
		MaxBytes: 1024,
	}, nil)
	require.NoError(t, p.Load())

	_, err = os.Stat(snapshotPath)
	assert.True(t, os.IsNotExist(err), "oversized snapshot must be deleted unread")
	assert.Equal(t, 0, svc.Len())
}

func TestLoadWithoutSnapshotIsNoop(t *testing.T) {
	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	clock := &fakeClock{now: time.Now()}

	svc := New(http.DefaultClient, blobs, md5.New(), clock, Config{}, nil)
	p := NewPersistor(svc, nil, blobs, md5.New(), PersistorConfig{
		Path: filepath.Join(dir, "missing.json"),
	}, nil)
	require.NoError(t, p.Load())
	assert.Equal(t, 0, svc.Len())
}
