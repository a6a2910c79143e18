package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Rendered is a document after its scripts ran.
type Rendered struct {
	// URL is the final location after redirects.
	URL string
	// Status is the HTTP status of the main document, 0 when the browser
	// reported none (file:// URLs for instance).
	Status     int
	StatusText string
	HTML       string
}

// Renderer loads pages with JavaScript execution.
type Renderer interface {
	Render(ctx context.Context, url string) (Rendered, error)
	// Snapshot serializes the current state of the last rendered page.
	Snapshot(ctx context.Context) (string, error)
	// PendingJobs waits up to `wait` for background work of the last
	// rendered page to finish and returns how much is still pending.
	PendingJobs(ctx context.Context, wait time.Duration) (int, error)
	Close() error
}

var errNothingRendered = errors.New("no page has been rendered yet")

type RodOptions struct {
	// ControlURL connects to an already running browser instead of
	// launching one.
	ControlURL      string
	Timeout         time.Duration
	BackgroundWait  time.Duration
	OnScriptError   func(err error)
	OnIncorrectness func(message, origin string)
}

// RodRenderer renders pages in headless Chromium. The browser is launched
// on the first Render call.
type RodRenderer struct {
	opts RodOptions

	mutex      sync.Mutex
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	stopEvents context.CancelFunc
}

func NewRodRenderer(opts RodOptions) *RodRenderer {
	if opts.OnScriptError == nil {
		opts.OnScriptError = func(error) {}
	}
	if opts.OnIncorrectness == nil {
		opts.OnIncorrectness = func(string, string) {}
	}
	return &RodRenderer{opts: opts}
}

func (r *RodRenderer) connect() error {
	if r.browser != nil {
		return nil
	}

	controlURL := r.opts.ControlURL
	if controlURL == "" {
		r.launcher = launcher.New().Headless(true)
		u, err := r.launcher.Launch()
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	err := browser.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	r.browser = browser
	return nil
}

func (r *RodRenderer) closePage() {
	if r.stopEvents != nil {
		r.stopEvents()
		r.stopEvents = nil
	}
	if r.page != nil {
		err := r.page.Close()
		if err != nil {
			slog.Debug("failed to close page", "err", err)
		}
		r.page = nil
	}
}

func (r *RodRenderer) Render(ctx context.Context, url string) (Rendered, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.connect()
	if err != nil {
		return Rendered{}, err
	}
	r.closePage()

	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return Rendered{}, err
	}
	r.page = page

	var status atomic.Int64
	var statusText atomic.Value

	eventCtx, cancel := context.WithCancel(context.Background())
	r.stopEvents = cancel
	err = proto.RuntimeEnable{}.Call(page)
	if err != nil {
		return Rendered{}, err
	}
	wait := page.Context(eventCtx).EachEvent(
		func(e *proto.RuntimeExceptionThrown) {
			if e.ExceptionDetails != nil {
				r.opts.OnScriptError(errors.New(e.ExceptionDetails.Text))
			}
		},
		func(e *proto.RuntimeConsoleAPICalled) {
			if e.Type == proto.RuntimeConsoleAPICalledTypeWarning {
				r.opts.OnIncorrectness("console warning", url)
			}
		},
		// the last document response of the main frame is the one that
		// ends up displayed, redirects never reach this event
		func(e *proto.NetworkResponseReceived) {
			if e.Type != proto.NetworkResourceTypeDocument || e.FrameID != page.FrameID || e.Response == nil {
				return
			}
			status.Store(int64(e.Response.Status))
			statusText.Store(e.Response.StatusText)
		},
	)
	go wait()

	// stylesheets are never loaded
	err = proto.NetworkEnable{}.Call(page)
	if err != nil {
		return Rendered{}, err
	}
	err = proto.NetworkSetBlockedURLs{Urls: []string{"*.css"}}.Call(page)
	if err != nil {
		return Rendered{}, err
	}

	p := page.Context(ctx)
	if r.opts.Timeout > 0 {
		p = p.Timeout(r.opts.Timeout)
	}
	err = p.Navigate(url)
	if err != nil {
		return Rendered{}, err
	}
	err = p.WaitLoad()
	if err != nil {
		return Rendered{}, err
	}
	if r.opts.BackgroundWait > 0 {
		err = p.WaitIdle(r.opts.BackgroundWait)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			slog.DebugContext(ctx, "background scripts still running after load", "url", url, "err", err)
		}
	}

	html, err := p.HTML()
	if err != nil {
		return Rendered{}, err
	}
	finalURL := url
	info, err := p.Info()
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}
	text, _ := statusText.Load().(string)
	return Rendered{
		URL:        finalURL,
		Status:     int(status.Load()),
		StatusText: text,
		HTML:       html,
	}, nil
}

func (r *RodRenderer) Snapshot(ctx context.Context) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.page == nil {
		return "", errNothingRendered
	}
	return r.page.Context(ctx).HTML()
}

const pendingJobsScript = `() => (document.readyState === 'complete' ? 0 : 1) +
	performance.getEntriesByType('resource').filter(e => e.responseEnd === 0).length`

func (r *RodRenderer) PendingJobs(ctx context.Context, wait time.Duration) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.page == nil {
		return 0, errNothingRendered
	}

	deadline := time.Now().Add(wait)
	for {
		res, err := r.page.Context(ctx).Eval(pendingJobsScript)
		if err != nil {
			return 0, err
		}
		pending := res.Value.Int()
		if pending == 0 || !time.Now().Before(deadline) {
			return pending, nil
		}

		select {
		case <-ctx.Done():
			return pending, ctx.Err()
		case <-time.After(time.Millisecond * 100):
		}
	}
}

func (r *RodRenderer) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closePage()
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}
