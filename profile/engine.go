package profile

import (
	"log/slog"
	"regexp"
	"strings"

	"shikihoscraper/dom"
	"shikihoscraper/locator"
	"shikihoscraper/tokens"
)

// DefaultMaxIndustries is the number of industries kept when no limit is configured
const DefaultMaxIndustries = 3

// Labels printed on the profile page
const (
	labelFeature     = "特色"
	labelIndustries  = "所属業界"
	labelPeers       = tokens.PeerMarker
	labelThemes      = tokens.ThemeMarker
	labelThemesShort = "テーマ"
)

var businessLabels = []string{"連結事業", "単独事業", "連結(単独)事業", "連結・単独事業", "連結/単独事業"}

// Compiled once at package init and never mutated.
var (
	marketPattern     = regexp.MustCompile(`東証(?:プライム|スタンダード|グロース)`)
	segmentProfitTail = regexp.MustCompile(`[\s\p{Z}]*セグメント収益`)
	peerTail          = regexp.MustCompile(`[\s\p{Z}]*` + tokens.PeerMarker)
	themeLine         = regexp.MustCompile(tokens.ThemeMarker + `[\s\p{Z}]*[:：]?[\s\p{Z}]*([^\n]+)`)
)

// Engine turns a rendered profile page into a Record. It holds no per-page state;
// one Engine can serve any number of documents.
type Engine struct {
	maxIndustries int
	log           *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithMaxIndustries caps the industries list; n <= 0 keeps every industry
func WithMaxIndustries(n int) Option {
	return func(e *Engine) {
		e.maxIndustries = n
	}
}

// WithLogger sets the logger used for strategy tracing
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an extraction engine
func New(opts ...Option) *Engine {
	e := &Engine{
		maxIndustries: DefaultMaxIndustries,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads every field of the page. The returned record has no Code.
func (e *Engine) Extract(doc dom.Document) Record {
	return e.ExtractWith(doc, nil)
}

// ExtractWith is Extract with a caller-owned set of comparable-company names. When
// the set is empty the engine collects the names from the page itself.
func (e *Engine) ExtractWith(doc dom.Document, peers tokens.Set) Record {
	e.dismissOverlays(doc)

	st := state{peers: peers}
	if st.peers.Len() == 0 {
		st.peers = tokens.NewSet(cascade(e.log, "peers", doc, st, peerStrategies)...)
	}

	companyName := cascade(e.log, FieldCompanyName, doc, st, headingStrategies)
	market := guard(func() string { return e.market(doc) })
	feature := locator.Locate(doc, labelFeature).Text
	business := guard(func() string { return e.business(doc) })

	industries := cascade(e.log, FieldIndustries, doc, st, industryStrategies)
	industries = tokens.Cap(tokens.Without(industries, st.peers), e.maxIndustries)

	themes := cascade(e.log, FieldThemes, doc, st, themeStrategies)
	industries = tokens.WithoutKeepNonEmpty(industries, tokens.NewSet(themes...))

	return Record{
		CompanyName:         tokens.Normalize(companyName),
		Market:              tokens.Normalize(market),
		Feature:             tokens.Normalize(feature),
		BusinessComposition: tokens.Normalize(business),
		Industries:          tokens.Normalize(tokens.Join(industries)),
		Themes:              tokens.Normalize(tokens.Join(themes)),
	}
}

func (e *Engine) market(doc dom.Document) string {
	text, err := doc.Text()
	if err != nil {
		return ""
	}
	return marketPattern.FindString(text)
}

func (e *Engine) business(doc dom.Document) string {
	text := locator.Locate(doc, businessLabels...).Text
	if text == "" {
		return ""
	}
	return cutBefore(text, segmentProfitTail)
}

// cutBefore returns the part of s preceding the first match of re
func cutBefore(s string, re *regexp.Regexp) string {
	if loc := re.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

// overlay is a dismissable control; text, when set, must appear in the element's text
type overlay struct {
	css  string
	text string
}

var overlays = []overlay{
	{css: "#tpModal .pi_close"},
	{css: "button", text: "同意"},
	{css: "button", text: "OK"},
	{css: "[aria-label='close']"},
}

func (o overlay) find(doc dom.Document) dom.Node {
	nodes, err := doc.Query(o.css)
	if err != nil {
		return nil
	}
	for _, n := range nodes {
		if o.text == "" || strings.Contains(strings.ToLower(n.Text()), strings.ToLower(o.text)) {
			return n
		}
	}
	return nil
}

// dismissOverlays clicks the first visible known overlay control. Failures are ignored.
func (e *Engine) dismissOverlays(doc dom.Document) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("overlay dismissal aborted", "panic", r)
		}
	}()

	for _, o := range overlays {
		n := o.find(doc)
		if n == nil || !n.Visible() {
			continue
		}
		if err := n.Click(); err != nil {
			e.log.Debug("overlay dismissal failed", "selector", o.css, "error", err)
			continue
		}
		e.log.Debug("overlay dismissed", "selector", o.css)
		return
	}
}
