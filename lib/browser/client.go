package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"htmlkit/lib/dom"
	"htmlkit/lib/restyutil"
	"htmlkit/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("htmlkit/lib/browser")

// ErrTransport marks every failure to load a page: network errors,
// non-success statuses and renderer failures.
var ErrTransport = errors.New("failed to load page")

// StatusError is returned for responses outside of the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %s", ErrTransport.Error(), e.URL, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrTransport
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	// EnableJavaScript renders pages through Renderer instead of a plain
	// HTTP GET.
	EnableJavaScript bool
	// Renderer is used when EnableJavaScript is set. nil means a headless
	// Chromium driven by go-rod, launched on first use.
	Renderer Renderer
	// ChromeControlURL points the default renderer at an already running
	// browser.
	ChromeControlURL string

	Timeout time.Duration
	// BackgroundJavaScriptWait bounds how long a render waits for scripts
	// started during page load.
	BackgroundJavaScriptWait time.Duration
	MaxRedirects             int
	UserAgent                string
	BypassCloudflare         bool

	// OnScriptError receives uncaught script errors. They are discarded,
	// never returned from FetchPage.
	OnScriptError func(err error)
	// OnIncorrectness receives notices about questionable content such as
	// non-html responses. They are discarded, never returned from FetchPage.
	OnIncorrectness func(message, origin string)

	// DumpDir, when set, receives a dump of every HTTP exchange while debug
	// logging is enabled.
	DumpDir string
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		EnableJavaScript:         true,
		Timeout:                  time.Second * 60,
		BackgroundJavaScriptWait: time.Second,
		MaxRedirects:             10,
		UserAgent:                defaultUserAgent,
	}
}

func (o ClientOptions) withDefaults() ClientOptions {
	defaults := DefaultClientOptions()
	if o.Timeout <= 0 {
		o.Timeout = defaults.Timeout
	}
	if o.BackgroundJavaScriptWait <= 0 {
		o.BackgroundJavaScriptWait = defaults.BackgroundJavaScriptWait
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = defaults.MaxRedirects
	}
	if o.UserAgent == "" {
		o.UserAgent = defaults.UserAgent
	}
	if o.OnScriptError == nil {
		o.OnScriptError = func(error) {}
	}
	if o.OnIncorrectness == nil {
		o.OnIncorrectness = func(string, string) {}
	}
	return o
}

// Client loads pages. Stylesheets are never fetched nor applied.
type Client struct {
	Http *resty.Client

	opts     ClientOptions
	renderer Renderer

	mutex sync.Mutex
	last  *dom.Page
}

func NewClient(opts ClientOptions) (*Client, error) {
	opts = opts.withDefaults()
	slog.Debug("creating client", "javascript", opts.EnableJavaScript, "timeout", opts.Timeout)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// cached pages are loaded through the same client as live ones
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	var roundTripper http.RoundTripper = transport
	if opts.BypassCloudflare {
		roundTripper = cloudflarebp.AddCloudFlareByPass(roundTripper)
	}

	client := resty.New()
	client.SetTransport(roundTripper)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(opts.MaxRedirects),
		localRedirectPolicy,
		trackLastHop,
	)
	client.SetTimeout(opts.Timeout)

	var output restyutil.InstrumentOutput
	if opts.DumpDir != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, err
		}
		output = fsOutput
	}
	restyutil.InstrumentClient(client, telemetry.Tracer("htmlkit/lib/browser/http"), output)

	c := &Client{
		Http: client,
		opts: opts,
	}
	if opts.EnableJavaScript {
		c.renderer = opts.Renderer
		if c.renderer == nil {
			c.renderer = NewRodRenderer(RodOptions{
				ControlURL:      opts.ChromeControlURL,
				Timeout:         opts.Timeout,
				BackgroundWait:  opts.BackgroundJavaScriptWait,
				OnScriptError:   opts.OnScriptError,
				OnIncorrectness: opts.OnIncorrectness,
			})
		}
	}
	return c, nil
}

func (c *Client) JavaScriptEnabled() bool {
	return c.renderer != nil
}

// FetchPage loads and parses the page at rawUrl. Failures to load it wrap
// ErrTransport.
func (c *Client) FetchPage(ctx context.Context, rawUrl string) (*dom.Page, error) {
	ctx, span := tracer.Start(ctx, "FetchPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawUrl))

	location, err := url.Parse(rawUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse url")
		return nil, fmt.Errorf("%w: invalid url '%s': %w", ErrTransport, rawUrl, err)
	}

	var markup []byte
	if c.renderer != nil {
		rendered, err := c.renderer.Render(ctx, location.String())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to render page")
			return nil, fmt.Errorf("%w: render %s: %w", ErrTransport, rawUrl, err)
		}
		if rendered.Status != 0 && (rendered.Status < 200 || rendered.Status > 299) {
			err := &StatusError{
				URL:        rawUrl,
				StatusCode: rendered.Status,
				Status:     renderedStatus(rendered),
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "failing status code")
			return nil, err
		}
		markup = []byte(rendered.HTML)
		if rendered.URL != "" {
			final, err := url.Parse(rendered.URL)
			if err == nil {
				location = final
			}
		}
	} else {
		markup, location, err = c.get(ctx, location)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch page")
			return nil, err
		}
	}

	page, err := dom.Parse(bytes.NewReader(markup), location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}
	slog.DebugContext(ctx, "loaded page", "url", page.Location(), "title", page.Title())

	c.mutex.Lock()
	c.last = page
	c.mutex.Unlock()
	return page, nil
}

func renderedStatus(r Rendered) string {
	text := r.StatusText
	if text == "" {
		text = http.StatusText(r.Status)
	}
	return fmt.Sprintf("%d %s", r.Status, text)
}

func (c *Client) get(ctx context.Context, location *url.URL) ([]byte, *url.URL, error) {
	ctx, hop := withLastHop(ctx)
	res, err := c.Http.R().
		SetContext(ctx).
		Get(location.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrTransport, location, err)
	}
	if !res.IsSuccess() {
		return nil, nil, &StatusError{
			URL:        location.String(),
			StatusCode: res.StatusCode(),
			Status:     res.Status(),
		}
	}

	final := location
	if hop.url != nil {
		final = hop.url
	}

	contentType := res.Header().Get("content-type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || (mediaType != "text/html" && mediaType != "application/xhtml+xml") {
			c.opts.OnIncorrectness(
				fmt.Sprintf("content type '%s' is not html, parsing it anyway", contentType),
				final.String(),
			)
		}
	}

	return res.Body(), final, nil
}

// Close releases the renderer, if one was started.
func (c *Client) Close() error {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.Close()
}
