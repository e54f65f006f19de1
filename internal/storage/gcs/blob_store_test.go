package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newClient(t *testing.T) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(newClient(t), Config{})
	require.Error(t, err)
}

func TestObjectNaming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		path   string
		want   string
	}{
		{name: "no prefix", path: "widgets/A1.jpg", want: "gs://listing-images/widgets/A1.jpg"},
		{name: "prefix", prefix: "ebay_by_title", path: "widgets/A1.jpg", want: "gs://listing-images/ebay_by_title/widgets/A1.jpg"},
		{name: "slashes trimmed", prefix: "/runs/2024/", path: "/widgets/A1.jpg", want: "gs://listing-images/runs/2024/widgets/A1.jpg"},
	}
	client := newClient(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(client, Config{Bucket: "listing-images", Prefix: tt.prefix})
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.uri(store.objectName(tt.path)))
		})
	}
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(newClient(t), Config{Bucket: "listing-images"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "image/jpeg", nil)
	require.Error(t, err)
}
