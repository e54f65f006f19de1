package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "widgets/A1.jpg", "image/jpeg", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://widgets/A1.jpg", uri)

	payload[0] = 'C'
	stored, ok := store.Object("widgets/A1.jpg")
	require.True(t, ok)
	assert.Equal(t, "content", string(stored))
}

func TestBlobStoreExists(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, ok, err := store.Exists(context.Background(), "widgets/A1.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.PutObject(context.Background(), "widgets/A1.jpg", "image/jpeg", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "widgets/A1.jpg", "image/jpeg", bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	uri, ok, err := store.Exists(context.Background(), "widgets/A1.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "memory://widgets/A1.jpg", uri)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, store.Puts())
}

func TestResultStore(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	require.NoError(t, store.StoreResult(context.Background(), harvest.StoredResult{
		ResultRecord: harvest.ResultRecord{ID: "A1"},
	}))
	store.FailWith(errors.New("db down"))
	require.Error(t, store.StoreResult(context.Background(), harvest.StoredResult{}))

	results := store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "A1", results[0].ID)
}
