// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-image-harvester/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "ebay_by_title")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "testfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("NestedPath", func(t *testing.T) {
		path := "widgets/A1.jpg"
		data := []byte("jpeg bytes")
		saved, err := store.PutObject(context.Background(), path, "image/jpeg", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tempDir, path), saved)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(saved)
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("OverwriteReplacesContent", func(t *testing.T) {
		path := "widgets/A2.jpg"
		_, err := store.PutObject(context.Background(), path, "image/jpeg", bytes.NewReader([]byte("old")))
		require.NoError(t, err)
		saved, err := store.PutObject(context.Background(), path, "image/jpeg", bytes.NewReader([]byte("new")))
		require.NoError(t, err)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(saved)
		require.NoError(t, err)
		assert.Equal(t, "new", string(readData))

		entries, err := os.ReadDir(filepath.Dir(saved))
		require.NoError(t, err)
		for _, entry := range entries {
			assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "temp file left behind: %s", entry.Name())
		}
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "image/jpeg", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.jpg", "image/jpeg", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})
}

func TestPutObjectRelativeBaseDir(t *testing.T) {
	t.Chdir(t.TempDir())

	for _, base := range []string{".", "./"} {
		t.Run(base, func(t *testing.T) {
			store, err := local.New(local.Config{BaseDir: base})
			require.NoError(t, err)

			saved, err := store.PutObject(context.Background(), "widgets/A1.jpg", "image/jpeg", bytes.NewReader([]byte("jpeg")))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(base, "widgets", "A1.jpg"), saved)
			assert.FileExists(t, filepath.Join("widgets", "A1.jpg"))

			_, exists, err := store.Exists(context.Background(), "widgets/A1.jpg")
			require.NoError(t, err)
			assert.True(t, exists)

			for _, bad := range []string{"../escape.jpg", "widgets/../../escape.jpg", "."} {
				_, err := store.PutObject(context.Background(), bad, "image/jpeg", bytes.NewReader([]byte("x")))
				assert.Error(t, err, bad)
			}
		})
	}
}

func TestExists(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	saved, exists, err := store.Exists(context.Background(), "widgets/A1.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, filepath.Join(tempDir, "widgets/A1.jpg"), saved)

	_, err = store.PutObject(context.Background(), "widgets/A1.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	_, exists, err = store.Exists(context.Background(), "widgets/A1.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestWriteFileAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "summary.json")

	err := local.WriteFileAtomic(target, failingReader{})
	require.Error(t, err)
	assert.NoFileExists(t, target)

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
