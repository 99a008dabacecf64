package local

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundtrip(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ref, err := store.Put("abc.bin", []byte("hello"))
	require.NoError(t, err)

	data, err := store.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestPutOverwrites(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put("abc.bin", []byte("first"))
	require.NoError(t, err)
	ref, err := store.Put("abc.bin", []byte("second"))
	require.NoError(t, err)

	data, err := store.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestGetMissingBlob(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Get(store.Ref("nope.bin"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsPathSeparators(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put("../escape.bin", []byte("x"))
	assert.Error(t, err)

	_, err = store.Put("", []byte("x"))
	assert.Error(t, err)
}

func TestGetRejectsRefsOutsideStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	_, err = store.Get(filepath.Join(dir, "..", "outside.bin"))
	assert.Error(t, err)
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
