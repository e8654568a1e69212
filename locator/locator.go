// Package locator finds labelled values in a rendered document.
//
// A label is the fixed caption printed next to a value ("特色", "所属業界", ...).
// The locator finds the node carrying the caption and resolves the value node from
// the caption's structural role. Every operation is read-only and never fails: any
// lookup or evaluation problem gives the empty result.
package locator

import (
	"strings"

	"shikihoscraper/dom"
	"shikihoscraper/tokens"
)

const (
	// candidateSelector lists the nodes that may carry a label, scanned in document order
	candidateSelector = "dt,th,div,span,p,li,strong,b"
	// itemSelector picks linkable items inside a resolved value
	itemSelector = "a"
	// containerSelector is the sectioning ancestor used when a value has no text
	containerSelector = "section,article,div,dl,table,ul,ol"
	// containerItemSelector picks items inside that ancestor
	containerItemSelector = "a, .tag, li, span"
	// boundedItemSelector picks items inside a dd for ItemsWithStop
	boundedItemSelector = "a, .tag, .chip, li, span"
)

// Result is a located value
type Result struct {
	Text  string
	Items []string
}

// Empty reports whether nothing was found
func (r Result) Empty() bool {
	return r.Text == "" && len(r.Items) == 0
}

// Locate returns the value of the first label, in priority order, that matches a
// candidate node. A node matches when its whitespace-free text equals or starts with
// the whitespace-free label.
func Locate(doc dom.Document, labels ...string) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{}
		}
	}()

	candidates, err := doc.Query(candidateSelector)
	if err != nil {
		return Result{}
	}
	stripped := make([]string, len(candidates))
	for i, c := range candidates {
		stripped[i] = tokens.Strip(c.Text())
	}

	for _, label := range labels {
		want := tokens.Strip(label)
		for i, c := range candidates {
			if stripped[i] != "" && strings.HasPrefix(stripped[i], want) {
				return resolve(c)
			}
		}
	}
	return Result{}
}

// resolve reads the value belonging to a matched label node
func resolve(target dom.Node) Result {
	var value dom.Node
	switch target.Tag() {
	case "dt":
		if dd := target.Next(); dd != nil && dd.Tag() == "dd" {
			value = dd
		}
	case "th":
		td := target.Next()
		if td == nil || td.Tag() != "td" {
			td = nil
			if row := target.Parent(); row != nil {
				td = dom.First(row.Find("td"))
			}
		}
		value = td
	default:
		value = target.Next()
	}

	var res Result
	if value != nil {
		res.Text = tokens.Normalize(value.Text())
		res.Items = texts(value.Find(itemSelector))
	}

	if res.Text == "" {
		container := target.Closest(containerSelector)
		if container == nil {
			container = target.Parent()
		}
		if container != nil {
			if more := texts(container.Find(containerItemSelector)); len(more) > 0 {
				res.Items = more
				res.Text = strings.Join(more, " ")
			}
		}
	}
	return res
}

// ItemsWithStop collects the items of the dd that follows the dt labelled exactly
// label. Items at or below the first descendant whose text contains stop are
// skipped; without such a descendant nothing is cut.
func ItemsWithStop(doc dom.Document, label, stop string) (items []string) {
	defer func() {
		if recover() != nil {
			items = nil
		}
	}()

	dd := definition(doc, label)
	if dd == nil {
		return nil
	}

	var stopTop float64
	cut := false
	if stop != "" {
		all, err := dd.Find("*")
		if err != nil {
			return nil
		}
		for _, n := range all {
			if strings.Contains(tokens.Normalize(n.Text()), stop) {
				stopTop, cut = n.Top(), true
				break
			}
		}
	}

	nodes, err := dd.Find(boundedItemSelector)
	if err != nil {
		return nil
	}
	for _, n := range nodes {
		if cut && n.Top() >= stopTop {
			continue
		}
		if t := tokens.Normalize(n.Text()); t != "" {
			items = append(items, t)
		}
	}
	return items
}

// DefinitionText returns the text of the dd that follows the dt labelled exactly label
func DefinitionText(doc dom.Document, label string) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	if dd := definition(doc, label); dd != nil {
		return tokens.Normalize(dd.Text())
	}
	return ""
}

func definition(doc dom.Document, label string) dom.Node {
	dts, err := doc.Query("dt")
	if err != nil {
		return nil
	}
	for _, dt := range dts {
		if tokens.Normalize(dt.Text()) != label {
			continue
		}
		if dd := dt.Next(); dd != nil && dd.Tag() == "dd" {
			return dd
		}
		return nil
	}
	return nil
}

func texts(nodes []dom.Node, err error) []string {
	if err != nil {
		return nil
	}
	var out []string
	for _, n := range nodes {
		if t := tokens.Normalize(n.Text()); t != "" {
			out = append(out, t)
		}
	}
	return out
}
