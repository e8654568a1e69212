package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Attributes a live renderer stamps on every element before taking the snapshot
const (
	TopAttr     = "data-top"
	VisibleAttr = "data-visible"
	HiddenAttr  = "data-hidden"
)

// HTMLDocument is a Document over a parsed HTML snapshot
type HTMLDocument struct {
	doc        *goquery.Document
	text       string
	hasText    bool
	interactor Interactor

	order map[*html.Node]int
	texts map[*html.Node]string
}

// Parse reads an HTML page into a document without a live page behind it
func Parse(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return NewDocument(doc), nil
}

// NewDocument wraps an already parsed goquery document
func NewDocument(doc *goquery.Document) *HTMLDocument {
	return &HTMLDocument{
		doc:   doc,
		texts: make(map[*html.Node]string),
	}
}

// FromSnapshot builds a document from a renderer snapshot. A nil interactor gives a
// read-only document.
func FromSnapshot(s Snapshot, in Interactor) (*HTMLDocument, error) {
	d, err := Parse(strings.NewReader(s.HTML))
	if err != nil {
		return nil, err
	}
	d.text, d.hasText = s.Text, s.Text != ""
	d.interactor = in
	return d, nil
}

// Query returns the elements matching selector in document order
func (d *HTMLDocument) Query(selector string) ([]Node, error) {
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}
	return d.wrapAll(d.doc.FindMatcher(m)), nil
}

// Text returns the page text, preferring the innerText captured by the renderer
func (d *HTMLDocument) Text() (string, error) {
	if d.hasText {
		return d.text, nil
	}
	root := d.doc.Find("body")
	if root.Length() == 0 {
		root = d.doc.Selection
	}
	var b strings.Builder
	root.Each(func(_ int, s *goquery.Selection) {
		b.WriteString(d.textOf(s.Get(0)))
	})
	return b.String(), nil
}

// HTML serialises the current snapshot
func (d *HTMLDocument) HTML() (string, error) {
	return d.doc.Html()
}

func (d *HTMLDocument) reload() error {
	snap, err := d.interactor.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to refresh snapshot: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	d.doc = doc
	d.text, d.hasText = snap.Text, snap.Text != ""
	d.order = nil
	d.texts = make(map[*html.Node]string)
	return nil
}

func (d *HTMLDocument) wrap(s *goquery.Selection) Node {
	if s.Length() == 0 {
		return nil
	}
	return &element{doc: d, sel: s.First()}
}

func (d *HTMLDocument) wrapAll(s *goquery.Selection) []Node {
	nodes := make([]Node, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		nodes = append(nodes, &element{doc: d, sel: el})
	})
	return nodes
}

func (d *HTMLDocument) textOf(n *html.Node) string {
	if t, ok := d.texts[n]; ok {
		return t
	}
	var b strings.Builder
	writeText(&b, n)
	t := b.String()
	d.texts[n] = t
	return t
}

func (d *HTMLDocument) orderOf(n *html.Node) int {
	if d.order == nil {
		d.order = make(map[*html.Node]int)
		i := 0
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				d.order[n] = i
				i++
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		for _, root := range d.doc.Nodes {
			walk(root)
		}
	}
	return d.order[n]
}

func compile(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return m, nil
}

// element is a single element of an HTMLDocument
type element struct {
	doc *HTMLDocument
	sel *goquery.Selection
}

func (e *element) node() *html.Node {
	return e.sel.Get(0)
}

func (e *element) Tag() string {
	return goquery.NodeName(e.sel)
}

func (e *element) Text() string {
	return e.doc.textOf(e.node())
}

func (e *element) Next() Node {
	return e.doc.wrap(e.sel.Next())
}

func (e *element) Parent() Node {
	return e.doc.wrap(e.sel.Parent())
}

func (e *element) Closest(selector string) Node {
	m, err := compile(selector)
	if err != nil {
		return nil
	}
	return e.doc.wrap(e.sel.ClosestMatcher(m))
}

func (e *element) Find(selector string) ([]Node, error) {
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}
	return e.doc.wrapAll(e.sel.FindMatcher(m)), nil
}

func (e *element) Top() float64 {
	if v, ok := e.sel.Attr(TopAttr); ok {
		if top, err := strconv.ParseFloat(v, 64); err == nil {
			return top
		}
	}
	return float64(e.doc.orderOf(e.node()))
}

func (e *element) Visible() bool {
	if v, ok := e.sel.Attr(VisibleAttr); ok {
		return v != "0"
	}
	for n := e.node(); n != nil && n.Type == html.ElementNode; n = n.Parent {
		if hidden(n) {
			return false
		}
	}
	return true
}

func (e *element) Click() error {
	if e.doc.interactor == nil {
		return ErrNotInteractive
	}
	if err := e.doc.interactor.Click(cssPath(e.node())); err != nil {
		return err
	}
	return e.doc.reload()
}

// cssPath addresses n by nth-child steps from the root element
func cssPath(n *html.Node) string {
	var steps []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if cur.Data == "html" {
			steps = append(steps, "html")
			break
		}
		idx := 1
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		steps = append(steps, fmt.Sprintf("%s:nth-child(%d)", cur.Data, idx))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, " > ")
}
