package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

type lastHopKey struct{}

// lastHop records the URL of the latest redirect a request followed.
type lastHop struct {
	url *url.URL
}

func withLastHop(ctx context.Context) (context.Context, *lastHop) {
	hop := &lastHop{}
	return context.WithValue(ctx, lastHopKey{}, hop), hop
}

// localRedirectPolicy keeps remote pages from redirecting into the local
// filesystem through the file:// protocol registered for cached pages.
var localRedirectPolicy = resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
	if len(via) == 0 || req.URL.Scheme != "file" {
		return nil
	}
	if via[0].URL.Scheme != "file" {
		return fmt.Errorf("refusing redirect from %s to local file %s", via[0].URL, req.URL)
	}
	return nil
})

// trackLastHop must come after every policy that can reject the redirect.
var trackLastHop = resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
	hop, ok := req.Context().Value(lastHopKey{}).(*lastHop)
	if ok {
		hop.url = req.URL
	}
	return nil
})
