package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
	"github.com/JakeFAU/listing-image-harvester/internal/headless/detector"
)

func TestFetchListingPage(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		fmt.Fprint(w, `<html><head><meta property="og:image" content="/a1.jpg"></head></html>`)
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "harvester-test", Timeout: 5 * time.Second}, detector.NewHeuristic())
	page, err := f.Fetch(context.Background(), srv.URL+"/itm/1")
	require.NoError(t, err)
	assert.Equal(t, "harvester-test", gotUA)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, srv.URL+"/itm/1", page.FinalURL)
	assert.False(t, page.UsedHeadless)
	assert.Contains(t, string(page.HTML), "og:image")

	// Revisiting the same URL must work for retries.
	_, err = f.Fetch(context.Background(), srv.URL+"/itm/1")
	require.NoError(t, err)
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := New(Config{}, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var navErr *harvest.NavigationError
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, http.StatusGone, navErr.StatusCode)
}

func TestFetchBlockedPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<title>Pardon Our Interruption...</title>`)
	}))
	defer srv.Close()

	_, err := New(Config{}, detector.NewHeuristic()).Fetch(context.Background(), srv.URL)
	var blocked *harvest.BlockedError
	require.True(t, errors.As(err, &blocked), "got %v", err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{Timeout: 5 * time.Second}, nil).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	state := &fetchState{}
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://www.ebay.com/itm/1", time.Unix(0, 0), state)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	final, err := url.Parse("https://www.ebay.com/itm/1?redirected=1")
	require.NoError(t, err)
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<html></html>"),
		Request:    &colly.Request{URL: final},
	})
	assert.Equal(t, "https://www.ebay.com/itm/1?redirected=1", state.page.FinalURL)
	assert.Equal(t, "https://www.ebay.com/itm/1", state.page.URL)

	hooks.onError(&colly.Response{StatusCode: http.StatusForbidden}, errors.New("Forbidden"))
	assert.Equal(t, http.StatusForbidden, state.statusCode)
	require.Error(t, state.err)
}
