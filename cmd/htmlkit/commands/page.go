package commands

import (
	"context"
	"fmt"
	"os"

	"htmlkit/lib/browser"
	"htmlkit/lib/dom"
	"htmlkit/lib/pagecache"
	"htmlkit/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newClient() *browser.Client {
	opts, err := config.ClientOptions(*verbose, *noJs)
	if err != nil {
		serviceutil.Fatal("invalid client config", err)
	}
	client, err := browser.NewClient(opts)
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}
	return client
}

func newCache() *pagecache.Cache {
	opts, err := config.CacheOptions()
	if err != nil {
		serviceutil.Fatal("invalid cache config", err)
	}
	return pagecache.New(opts)
}

// loadPage fetches url, through the page cache when --cache is given, and
// waits for background scripts when --wait-js is given.
func loadPage(ctx context.Context, client *browser.Client, url string) *dom.Page {
	var page *dom.Page
	var err error
	if *useCache {
		page, err = newCache().Handle(ctx, client, url)
	} else {
		page, err = client.FetchPage(ctx, url)
	}
	if err != nil {
		serviceutil.Fatal("failed to load page", err)
	}

	if *waitJs > 0 {
		browser.WaitForJavaScript(ctx, client, *waitJs)
	}
	return page
}

func parseKind(name string) dom.Kind {
	kind, err := dom.ParseKind(name)
	if err != nil {
		serviceutil.Fatal("invalid --kind", err)
	}
	return kind
}

func printElements(elements ...dom.Element) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Tag", "Kind", "Id", "Name", "Text"})

	for _, e := range elements {
		t.AppendRow(table.Row{
			e.Tag(),
			e.Kind().String(),
			e.Attr("id"),
			e.Attr("name"),
			text.Trim(dom.CollapseText(e.Text()), 48),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printLookupFailure(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
