package pagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"htmlkit/lib/dom"
	"htmlkit/lib/telemetry"

	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var (
	tracer = telemetry.Tracer("htmlkit/lib/pagecache")
	meter  = telemetry.Meter("htmlkit/lib/pagecache")
)

var (
	hitCounter, _  = meter.Int64Counter("pagecache.hits")
	missCounter, _ = meter.Int64Counter("pagecache.misses")
)

var ErrCacheIO = errors.New("page cache io failure")

const (
	DefaultTTL     = time.Hour * 20
	DefaultDirName = "htmlunit-cache"
)

type Fetcher interface {
	FetchPage(ctx context.Context, url string) (*dom.Page, error)
}

type Options struct {
	// Dir defaults to <os temp dir>/htmlunit-cache.
	Dir string
	// TTL defaults to 20 hours.
	TTL time.Duration
	Now func() time.Time
}

type Cache struct {
	dir   string
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
}

func New(opts Options) *Cache {
	if opts.Dir == "" {
		opts.Dir = filepath.Join(os.TempDir(), DefaultDirName)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		dir: opts.Dir,
		ttl: opts.TTL,
		now: opts.Now,
	}
}

func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Path returns the file a page fetched from rawUrl is stored in. URLs that
// only differ in ways normalization removes share a file.
func (c *Cache) Path(rawUrl string) (string, error) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(parsed, purell.FlagsSafe)
	sum := sha256.Sum256([]byte(normalized))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".html"), nil
}

func (c *Cache) fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Size() == 0 {
		return false
	}
	return c.now().Sub(info.ModTime()) < c.ttl
}

// Handle returns the page at rawUrl, served from the cache file when it is
// fresh and fetched live (and stored) otherwise. Cached pages are loaded
// through the fetcher as well, from a file:// URL, so both paths produce
// pages the same way.
func (c *Cache) Handle(ctx context.Context, fetcher Fetcher, rawUrl string) (*dom.Page, error) {
	ctx, span := tracer.Start(ctx, "Handle")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawUrl))

	path, err := c.Path(rawUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compute cache path")
		return nil, err
	}
	span.SetAttributes(attribute.String("cache_path", path))

	// the shared fetch outlives any single caller, each caller stops
	// waiting on its own cancellation
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (any, error) {
		return c.handle(shared, fetcher, rawUrl, path)
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled while waiting for page")
		return nil, err
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return nil, res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "joined in-flight cache lookup", "url", rawUrl)
		}
		return res.Val.(*dom.Page), nil
	}
}

func (c *Cache) handle(ctx context.Context, fetcher Fetcher, rawUrl, path string) (*dom.Page, error) {
	if c.fresh(path) {
		hitCounter.Add(ctx, 1)
		fileUrl := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
		slog.DebugContext(ctx, "cache hit", "url", rawUrl, "file", fileUrl)
		return fetcher.FetchPage(ctx, fileUrl)
	}

	missCounter.Add(ctx, 1)
	slog.DebugContext(ctx, "cache miss", "url", rawUrl, "path", path)

	page, err := fetcher.FetchPage(ctx, rawUrl)
	if err != nil {
		return nil, err
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: remove stale entry: %w", ErrCacheIO, err)
	}
	err = os.MkdirAll(c.dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %w", ErrCacheIO, err)
	}
	err = page.Save(path)
	if err != nil {
		return nil, fmt.Errorf("%w: write entry: %w", ErrCacheIO, err)
	}

	return page, nil
}

// Clear removes the cache directory and everything in it.
func (c *Cache) Clear() error {
	err := os.RemoveAll(c.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	return nil
}
