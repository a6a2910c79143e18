package pagecache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"htmlkit/lib/browser"
	"htmlkit/lib/dom"

	"github.com/stretchr/testify/require"
)

const testPage = `<html><head><title>Cached</title></head><body>` +
	`<a href="https://www.google.at/" id="google">google</a>` +
	`</body></html>`

type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCountingServer(t testing.TB) *countingServer {
	s := &countingServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(testPage))
	}))
	t.Cleanup(s.Close)
	return s
}

func newClient(t testing.TB) *browser.Client {
	client, err := browser.NewClient(browser.ClientOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestHandleRoundTrip(t *testing.T) {
	server := newCountingServer(t)
	client := newClient(t)
	cache := New(Options{Dir: t.TempDir()})

	live, err := cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	require.Equal(t, server.URL, live.Location())
	require.Equal(t, int32(1), server.hits.Load())

	path, err := cache.Path(server.URL)
	require.NoError(t, err)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "https://www.google.at/")

	cached, err := cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	require.Equal(t, int32(1), server.hits.Load())
	require.True(t, strings.HasPrefix(cached.Location(), "file://"))

	anchor, ok := cached.ElementByID("google")
	require.True(t, ok)
	require.Equal(t, dom.KindAnchor, anchor.Kind())
	require.Equal(t, "https://www.google.at/", anchor.Attr("href"))
	require.Equal(t, "Cached", cached.Title())
}

func TestHandleRefetchesExpiredEntries(t *testing.T) {
	server := newCountingServer(t)
	client := newClient(t)
	cache := New(Options{Dir: t.TempDir()})

	_, err := cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)

	path, err := cache.Path(server.URL)
	require.NoError(t, err)
	old := time.Now().Add(-DefaultTTL - time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	page, err := cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	require.Equal(t, int32(2), server.hits.Load())
	require.Equal(t, server.URL, page.Location())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.ModTime().After(old))
}

func TestHandleTreatsEmptyFileAsMiss(t *testing.T) {
	server := newCountingServer(t)
	client := newClient(t)
	cache := New(Options{Dir: t.TempDir()})

	path, err := cache.Path(server.URL)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err = cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	require.Equal(t, int32(1), server.hits.Load())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestHandleUsesInjectedClock(t *testing.T) {
	server := newCountingServer(t)
	client := newClient(t)

	now := time.Now()
	cache := New(Options{
		Dir: t.TempDir(),
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})

	_, err := cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	_, err = cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	require.Equal(t, int32(1), server.hits.Load())

	now = now.Add(time.Hour * 2)
	_, err = cache.Handle(context.Background(), client, server.URL)
	require.NoError(t, err)
	require.Equal(t, int32(2), server.hits.Load())
}

func TestHandlePropagatesFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dir := t.TempDir()
	cache := New(Options{Dir: dir})
	_, err := cache.Handle(context.Background(), newClient(t), server.URL)
	require.True(t, errors.Is(err, browser.ErrTransport))
	require.False(t, errors.Is(err, ErrCacheIO))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestHandleReportsCacheIOFailure(t *testing.T) {
	server := newCountingServer(t)

	// a regular file where the cache directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	cache := New(Options{Dir: blocker})
	_, err := cache.Handle(context.Background(), newClient(t), server.URL)
	require.True(t, errors.Is(err, ErrCacheIO))
}

func TestClear(t *testing.T) {
	server := newCountingServer(t)
	dir := filepath.Join(t.TempDir(), DefaultDirName)
	cache := New(Options{Dir: dir})

	_, err := cache.Handle(context.Background(), newClient(t), server.URL)
	require.NoError(t, err)
	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Clear())
	_, err = os.Stat(dir)
	require.True(t, errors.Is(err, os.ErrNotExist))

	// clearing a missing directory is fine
	require.NoError(t, cache.Clear())
}

func TestPath(t *testing.T) {
	cache := New(Options{Dir: "/cache"})

	a, err := cache.Path("http://example.com/page?x=1")
	require.NoError(t, err)
	again, err := cache.Path("http://example.com/page?x=1")
	require.NoError(t, err)
	require.Equal(t, a, again)
	require.Equal(t, "/cache", filepath.Dir(a))
	require.True(t, strings.HasSuffix(a, ".html"))
	require.Len(t, filepath.Base(a), 64+len(".html"))

	b, err := cache.Path("http://example.com/page?x=2")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	upper, err := cache.Path("HTTP://EXAMPLE.COM/page?x=1")
	require.NoError(t, err)
	require.Equal(t, a, upper)
}

func TestDefaults(t *testing.T) {
	cache := New(Options{})
	require.Equal(t, filepath.Join(os.TempDir(), "htmlunit-cache"), cache.Dir())
	require.Equal(t, time.Hour*20, cache.TTL())
}

// gatedServer holds every response until release is closed.
type gatedServer struct {
	*httptest.Server
	hits    atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedServer(t testing.TB) *gatedServer {
	s := &gatedServer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.started <- struct{}{}
		<-s.release
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(testPage))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *gatedServer) open() {
	select {
	case <-s.release:
	default:
		close(s.release)
	}
}

func TestHandleCollapsesConcurrentFetches(t *testing.T) {
	server := newGatedServer(t)
	defer server.open()
	client := newClient(t)
	cache := New(Options{Dir: t.TempDir()})

	const callers = 8
	pages := make([]*dom.Page, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pages[0], errs[0] = cache.Handle(context.Background(), client, server.URL)
	}()
	<-server.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pages[i], errs[i] = cache.Handle(context.Background(), client, server.URL)
		}(i)
	}
	time.Sleep(time.Millisecond * 200)
	server.open()
	wg.Wait()

	require.Equal(t, int32(1), server.hits.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, pages[i])
		require.Equal(t, "Cached", pages[i].Title())
	}
}

func TestHandleCancelledCallerDoesNotFailOthers(t *testing.T) {
	server := newGatedServer(t)
	defer server.open()
	client := newClient(t)
	cache := New(Options{Dir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Handle(ctx, client, server.URL)
		firstErr <- err
	}()
	<-server.started

	type result struct {
		page *dom.Page
		err  error
	}
	second := make(chan result, 1)
	go func() {
		page, err := cache.Handle(context.Background(), client, server.URL)
		second <- result{page, err}
	}()
	time.Sleep(time.Millisecond * 100)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	server.open()
	res := <-second
	require.NoError(t, res.err)
	require.Equal(t, "Cached", res.page.Title())
	require.Equal(t, int32(1), server.hits.Load())

	path, err := cache.Path(server.URL)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}
