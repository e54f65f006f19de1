package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
	"github.com/JakeFAU/listing-image-harvester/internal/headless/detector"
)

func TestFetcherNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	if got := fetcher.navTimeout(); got != defaultNavigationTimeout {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	fetcher.cfg.NavigationTimeout = time.Second
	if got := fetcher.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 500, URL: "https://img.example/x.jpg"},
	})
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://www.ebay.com/itm/gone"},
	})
	status, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 404, status)
	require.Equal(t, "https://www.ebay.com/itm/gone", url)

	meta = newResponseMeta()
	status, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)

	status, url = meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://req", url)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled")
	}
}

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	fetcher, err := NewChromedp(cfg, detector.NewHeuristic(), zap.NewNop())
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	t.Cleanup(fetcher.Close)
	return fetcher
}

func TestFetchRendersListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><head></head><body><script>
			var m = document.createElement('meta');
			m.setAttribute('property', 'og:image');
			m.setAttribute('content', 'https://img.example/a1.jpg');
			document.head.appendChild(m);
		</script></body></html>`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(t, Config{NavigationTimeout: 10 * time.Second, SettleDelay: 100 * time.Millisecond})
	page, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		var navErr *harvest.NavigationError
		if errors.As(err, &navErr) {
			t.Skipf("render failed: %v", err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
	require.True(t, page.UsedHeadless)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.HTML), "https://img.example/a1.jpg")
}

func TestFetchReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<html><body>listing ended</body></html>`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(t, Config{NavigationTimeout: 10 * time.Second})
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var navErr *harvest.NavigationError
	require.True(t, errors.As(err, &navErr))
	if navErr.StatusCode == 0 {
		t.Skipf("browser did not report a document status: %v", err)
	}
	require.Equal(t, http.StatusNotFound, navErr.StatusCode)
}

func TestFetchDetectsChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Pardon Our Interruption...</title></head><body></body></html>`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(t, Config{NavigationTimeout: 10 * time.Second})
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	var navErr *harvest.NavigationError
	if errors.As(err, &navErr) {
		t.Skipf("render failed: %v", err)
	}
	var blocked *harvest.BlockedError
	require.True(t, errors.As(err, &blocked), "got %v", err)
}
