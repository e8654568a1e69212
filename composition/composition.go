// Package composition parses the packed business composition notation, e.g.
// "半導体65(12)、電子部品20(5)【海外】40<25.3>", into ranked segments.
package composition

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/text/width"

	"shikihoscraper/tokens"
)

// TopN is the number of segments projected into derived columns
const TopN = 3

// Compiled once at package init and never mutated.
var (
	entryPattern    = regexp.MustCompile(`^[\s\p{Z}]*([^\p{Nd}]+?)(\p{Nd}+)\((\p{Nd}+)\)[\s\p{Z}]*$`)
	overseasPattern = regexp.MustCompile(`【海外】(\p{Nd}+)`)
	entrySeparator  = regexp.MustCompile(`[、,]`)
)

// Segment is one business line with its share of sales and of operating profit, in percent
type Segment struct {
	Name   string `json:"name"`
	Sales  int    `json:"sales"`
	Profit int    `json:"profit"`
}

// Summary is a parsed composition. Segments are ordered by Sales descending, ties
// in their original order. Overseas is 0 when the page gives no overseas ratio.
type Summary struct {
	Segments []Segment `json:"segments"`
	Overseas int       `json:"overseas"`
}

// Parse decodes a composition string. Malformed entries and the "other" entry are
// dropped; parsing itself never fails.
func Parse(text string) Summary {
	var s Summary
	text = strings.TrimSpace(text)
	if text == "" {
		return s
	}

	// anything after '<' is a fiscal period annotation
	text, _, _ = strings.Cut(text, "<")

	if m := overseasPattern.FindStringSubmatch(text); m != nil {
		s.Overseas, _ = atoi(m[1])
		text = overseasPattern.ReplaceAllString(text, "")
	}

	for _, part := range entrySeparator.Split(text, -1) {
		if seg, ok := parseEntry(part); ok {
			s.Segments = append(s.Segments, seg)
		}
	}

	slices.SortStableFunc(s.Segments, func(a, b Segment) int {
		return b.Sales - a.Sales
	})
	return s
}

func parseEntry(part string) (Segment, bool) {
	part = strings.TrimSpace(part)
	if part == "" {
		return Segment{}, false
	}
	m := entryPattern.FindStringSubmatch(part)
	if m == nil {
		return Segment{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == tokens.Other {
		return Segment{}, false
	}
	sales, err := atoi(m[2])
	if err != nil {
		return Segment{}, false
	}
	profit, err := atoi(m[3])
	if err != nil {
		return Segment{}, false
	}
	return Segment{Name: name, Sales: sales, Profit: profit}, true
}

// atoi accepts full-width digits as well as ASCII ones
func atoi(s string) (int, error) {
	return strconv.Atoi(width.Narrow.String(s))
}

// Top returns at most n leading segments
func (s Summary) Top(n int) []Segment {
	if len(s.Segments) <= n {
		return s.Segments
	}
	return s.Segments[:n]
}
