package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

func TestDownloadSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotReferer = r.Referer()
		w.Header().Set("Content-Type", "image/PNG; charset=binary")
		_, _ = w.Write([]byte("\x89PNG"))
	}))
	defer srv.Close()

	d := New(Config{UserAgent: "harvester-test", Timeout: 5 * time.Second}, nil)
	asset, err := d.Download(context.Background(), srv.URL+"/a1.png", "https://ebay.com/itm/1")
	require.NoError(t, err)
	assert.Equal(t, "harvester-test", gotUA)
	assert.Equal(t, "https://ebay.com/itm/1", gotReferer)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, []byte("\x89PNG"), asset.Body)
	assert.Equal(t, srv.URL+"/a1.png", asset.FinalURL)
}

func TestDownloadFollowsRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.jpg", http.StatusFound)
	})
	mux.HandleFunc("/new.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	asset, err := New(Config{}, nil).Download(context.Background(), srv.URL+"/old.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new.jpg", asset.FinalURL)
}

func TestDownloadFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		maxBytes   int64
		wantStatus int
		permanent  bool
	}{
		{
			name:       "not found",
			handler:    func(w http.ResponseWriter, _ *http.Request) { http.NotFound(w, nil) },
			wantStatus: http.StatusNotFound,
			permanent:  true,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "empty body",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
			wantStatus: http.StatusOK,
		},
		{
			name: "too large",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
			},
			maxBytes:   16,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(Config{MaxBytes: tt.maxBytes}, nil).Download(context.Background(), srv.URL+"/img.jpg", "")
			require.Error(t, err)
			var dlErr *harvest.DownloadError
			require.True(t, errors.As(err, &dlErr))
			assert.Equal(t, tt.wantStatus, dlErr.StatusCode)
			assert.Equal(t, tt.permanent, dlErr.Permanent())
		})
	}
}

func TestDownloadTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}, nil).Download(context.Background(), addr+"/img.jpg", "")
	var dlErr *harvest.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Zero(t, dlErr.StatusCode)
	assert.False(t, dlErr.Permanent())
}

func TestDownloadWithCloudflareTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	asset, err := New(Config{CloudflareBypass: true}, nil).Download(context.Background(), srv.URL+"/a.webp", "")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", asset.ContentType)
}
