package browser

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"htmlkit/internal/assert"
)

// WaitForBackgroundJavaScript waits up to d for the scripts of the last
// rendered page and returns the number of jobs still pending. Without
// JavaScript nothing is ever pending.
func (c *Client) WaitForBackgroundJavaScript(ctx context.Context, d time.Duration) int {
	if c.renderer == nil {
		return 0
	}
	pending, err := c.renderer.PendingJobs(ctx, d)
	if err != nil {
		slog.DebugContext(ctx, "could not query pending background jobs", "err", err)
		return 0
	}
	return pending
}

type BackgroundWaiter interface {
	WaitForBackgroundJavaScript(ctx context.Context, d time.Duration) int
}

// WaitForJavaScript waits in rounds of one second until no background job
// is pending or `seconds` rounds have passed.
func WaitForJavaScript(ctx context.Context, waiter BackgroundWaiter, seconds int) {
	for i := 0; i < seconds; i++ {
		if waiter.WaitForBackgroundJavaScript(ctx, time.Second) == 0 {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Markup is anything that can be serialized to its current markup.
type Markup interface {
	HTML() string
}

type liveMarkup struct {
	client *Client
}

func (m liveMarkup) HTML() string {
	if m.client.renderer != nil {
		html, err := m.client.renderer.Snapshot(context.Background())
		if err == nil {
			return html
		}
	}
	m.client.mutex.Lock()
	defer m.client.mutex.Unlock()
	if m.client.last == nil {
		return ""
	}
	return m.client.last.HTML()
}

// Live follows the document the client loaded last, including changes
// its scripts make after loading.
func (c *Client) Live() Markup {
	return liveMarkup{client: c}
}

const textPollInterval = time.Millisecond * 100

// WaitForText polls src until its markup contains text. Not seeing the
// text within `wait` is treated as a broken invariant and panics.
func WaitForText(ctx context.Context, src Markup, text string, wait time.Duration) {
	deadline := time.Now().Add(wait)

poll:
	for !strings.Contains(src.HTML(), text) && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break poll
		case <-time.After(textPollInterval):
		}
	}

	assert.State(strings.Contains(src.HTML(), text), "still did not find '%s' after %s", text, wait)
}
