package profile

import (
	"log/slog"

	"shikihoscraper/dom"
	"shikihoscraper/locator"
	"shikihoscraper/tokens"
)

// state is the read-only context shared by the strategies of one extraction
type state struct {
	peers tokens.Set
}

// strategy is one step of a field cascade. An empty result passes to the next step.
type strategy[T string | []string] struct {
	name string
	run  func(dom.Document, state) T
}

// cascade returns the first non-empty strategy result, or the zero value when all
// strategies come up empty
func cascade[T string | []string](log *slog.Logger, field string, doc dom.Document, st state, steps []strategy[T]) T {
	for _, s := range steps {
		out := guard(func() T { return s.run(doc, st) })
		if len(out) > 0 {
			log.Debug("field extracted", "field", field, "strategy", s.name)
			return out
		}
	}
	log.Debug("no strategy matched", "field", field)
	var zero T
	return zero
}

// guard turns a panic inside fn into the zero value
func guard[T string | []string](fn func() T) (out T) {
	defer func() {
		if recover() != nil {
			var zero T
			out = zero
		}
	}()
	return fn()
}

var headingSelectors = []string{
	"h1",
	"header h1",
	"main h1",
	"[class*=company] h1",
	"[class*=Company] h1",
}

var headingStrategies = func() []strategy[string] {
	steps := make([]strategy[string], 0, len(headingSelectors))
	for _, sel := range headingSelectors {
		steps = append(steps, strategy[string]{
			name: sel,
			run: func(doc dom.Document, _ state) string {
				n := dom.First(doc.Query(sel))
				if n == nil || !n.Visible() {
					return ""
				}
				return tokens.Normalize(n.Text())
			},
		})
	}
	return steps
}()

var peerStrategies = []strategy[[]string]{
	{
		name: "bounded items",
		run: func(doc dom.Document, _ state) []string {
			return tokens.FilterPeers(locator.ItemsWithStop(doc, labelPeers, ""))
		},
	},
	{
		name: "label items and text",
		run: func(doc dom.Document, _ state) []string {
			res := locator.Locate(doc, labelPeers)
			return tokens.FilterPeers(append(res.Items, tokens.Split(res.Text)...))
		},
	},
}

var industryStrategies = []strategy[[]string]{
	{
		name: "bounded items",
		run: func(doc dom.Document, st state) []string {
			return tokens.Filter(locator.ItemsWithStop(doc, labelIndustries, labelPeers), st.peers)
		},
	},
	{
		name: "label items",
		run: func(doc dom.Document, st state) []string {
			return tokens.Filter(locator.Locate(doc, labelIndustries).Items, st.peers)
		},
	},
	{
		name: "definition text",
		run: func(doc dom.Document, st state) []string {
			return tokens.Filter(tokens.Split(locator.DefinitionText(doc, labelIndustries)), st.peers)
		},
	},
}

var themeStrategies = []strategy[[]string]{
	{
		name: "bounded items",
		run: func(doc dom.Document, st state) []string {
			return tokens.FilterThemes(locator.ItemsWithStop(doc, labelThemes, labelPeers), st.peers)
		},
	},
	{
		name: "definition text",
		run: func(doc dom.Document, st state) []string {
			return tokens.FilterThemes(tokens.Split(locator.DefinitionText(doc, labelThemes)), st.peers)
		},
	},
	{
		name: "label text",
		run: func(doc dom.Document, st state) []string {
			raw := locator.Locate(doc, labelThemes, labelThemesShort).Text
			return tokens.FilterThemes(tokens.Split(cutBefore(raw, peerTail)), st.peers)
		},
	},
	{
		name: "page text",
		run: func(doc dom.Document, st state) []string {
			text, err := doc.Text()
			if err != nil {
				return nil
			}
			m := themeLine.FindStringSubmatch(text)
			if m == nil {
				return nil
			}
			return tokens.FilterThemes(tokens.Split(cutBefore(m[1], peerTail)), st.peers)
		},
	},
}
