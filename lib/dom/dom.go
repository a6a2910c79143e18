package dom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed document together with the URL it was loaded from.
type Page struct {
	doc *goquery.Document
	url *url.URL
}

// Parse reads a whole document. The HTML parser is lenient: malformed markup
// is repaired rather than reported.
func Parse(r io.Reader, location *url.URL) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	doc.Url = location
	return &Page{doc: doc, url: location}, nil
}

func ParseString(markup string, location *url.URL) (*Page, error) {
	return Parse(strings.NewReader(markup), location)
}

func (p *Page) URL() *url.URL {
	return p.url
}

// Location is the page URL as a string, or "about:blank" for pages without one.
func (p *Page) Location() string {
	if p.url == nil {
		return "about:blank"
	}
	return p.url.String()
}

func (p *Page) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

func (p *Page) Document() *goquery.Document {
	return p.doc
}

func (p *Page) render() (string, error) {
	var buf bytes.Buffer
	for _, n := range p.doc.Nodes {
		err := html.Render(&buf, n)
		if err != nil {
			return buf.String(), err
		}
	}
	return buf.String(), nil
}

// HTML serializes the whole document back to markup. A tree that cannot be
// serialized yields the markup written up to the failing node.
func (p *Page) HTML() string {
	out, _ := p.render()
	return out
}

// Save writes the serialized markup to path, replacing any existing file.
// Nothing is written when the document cannot be serialized completely.
func (p *Page) Save(path string) error {
	out, err := p.render()
	if err != nil {
		return fmt.Errorf("serialize %s: %w", p.Location(), err)
	}
	return os.WriteFile(path, []byte(out), 0600)
}

// Root returns the <html> element.
func (p *Page) Root() Element {
	for _, n := range p.doc.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return Element{node: c}
			}
		}
	}
	return Element{}
}

func (p *Page) find(match func(Element) bool) (Element, bool) {
	var found Element
	p.Root().walk(func(e Element) bool {
		if match(e) {
			found = e
			return false
		}
		return true
	})
	return found, !found.IsZero()
}

// ElementByID returns the first element in document order with the given id.
func (p *Page) ElementByID(id string) (Element, bool) {
	return p.find(func(e Element) bool {
		val, ok := e.attr("id")
		return ok && val == id
	})
}

// ElementByName returns the first element in document order whose name
// attribute equals name.
func (p *Page) ElementByName(name string) (Element, bool) {
	return p.find(func(e Element) bool {
		val, ok := e.attr("name")
		return ok && val == name
	})
}

// ElementsByTagName lists every element with the given tag in document order.
func (p *Page) ElementsByTagName(tag string) []Element {
	tag = strings.ToLower(tag)
	var out []Element
	p.Root().walk(func(e Element) bool {
		if e.Tag() == tag {
			out = append(out, e)
		}
		return true
	})
	return out
}

func (p *Page) Forms() []Element {
	return p.ElementsByTagName("form")
}

func (p *Page) FormByName(name string) (Element, bool) {
	for _, form := range p.Forms() {
		if form.Attr("name") == name {
			return form, true
		}
	}
	return Element{}, false
}

// Element wraps an element node of a parsed page.
type Element struct {
	node *html.Node
}

// Wrap returns the Element for n, or the zero Element if n is not an element.
func Wrap(n *html.Node) Element {
	if n == nil || n.Type != html.ElementNode {
		return Element{}
	}
	return Element{node: n}
}

func (e Element) IsZero() bool {
	return e.node == nil
}

func (e Element) Node() *html.Node {
	return e.node
}

func (e Element) Tag() string {
	if e.node == nil {
		return ""
	}
	return e.node.Data
}

func (e Element) Kind() Kind {
	if e.node == nil {
		return KindGeneric
	}
	return kindOf(e.node.Data, e.Attr("type"))
}

func (e Element) attr(name string) (string, bool) {
	if e.node == nil {
		return "", false
	}
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Attr returns the attribute value, or "" when the attribute is not defined.
func (e Element) Attr(name string) string {
	val, _ := e.attr(name)
	return val
}

func (e Element) HasAttr(name string) bool {
	_, ok := e.attr(name)
	return ok
}

// Text is the concatenated text content of all descendants.
func (e Element) Text() string {
	if e.node == nil {
		return ""
	}
	return e.Selection().Text()
}

// Children lists the element children in document order.
func (e Element) Children() []Element {
	if e.node == nil {
		return nil
	}
	var out []Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, Element{node: c})
		}
	}
	return out
}

func (e Element) Selection() *goquery.Selection {
	if e.node == nil {
		return &goquery.Selection{}
	}
	return goquery.NewDocumentFromNode(e.node).Selection
}

// HTML serializes the element and its subtree.
func (e Element) HTML() string {
	if e.node == nil {
		return ""
	}
	out, err := goquery.OuterHtml(e.Selection())
	if err != nil {
		return ""
	}
	return out
}

// walk visits e and its descendants in document order until visit returns
// false.
func (e Element) walk(visit func(Element) bool) bool {
	if e.node == nil {
		return true
	}
	if !visit(e) {
		return false
	}
	for _, child := range e.Children() {
		if !child.walk(visit) {
			return false
		}
	}
	return true
}
