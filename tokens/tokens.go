// Package tokens provides the text normalisation and token filtering used by the extractors
package tokens

import (
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
)

// Other is the catch-all "other" token that never carries a category
const Other = "他"

// PeerMarker is the label of the comparable-companies list
const PeerMarker = "比較会社"

// ThemeMarker is the label of the market theme list
const ThemeMarker = "市場テーマ"

// Compiled once at package init and never mutated.
var (
	// whitespace also covers the ideographic space and other Unicode separators
	whitespace   = regexp.MustCompile(`[\s\v\p{Z}\x{85}\x{feff}]+`)
	delimiters   = regexp.MustCompile(`[、,\s\v\p{Z}\x{85}\x{feff}]+`)
	digit        = regexp.MustCompile(`\p{Nd}`)
	nativeScript = regexp.MustCompile(`[\x{3040}-\x{30ff}\x{3400}-\x{9fff}（）]`)
)

// structural labels that leak into item lists
var structural = NewSet(PeerMarker, ThemeMarker)

// Normalize collapses whitespace runs into a single space and trims the result
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Strip removes every whitespace character
func Strip(s string) string {
	return whitespace.ReplaceAllString(s, "")
}

// Split breaks a list value on commas (native and ASCII) and whitespace, dropping empty parts
func Split(s string) []string {
	parts := delimiters.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasDigit reports whether s contains a decimal digit of any script
func HasDigit(s string) bool {
	return digit.MatchString(s)
}

// IsNative reports whether s contains kana, CJK ideographs or full-width parentheses
func IsNative(s string) bool {
	return nativeScript.MatchString(s)
}

// Filter applies the category token rules in order: empty and Other, digits,
// structural labels, the caller's exclusion set, native-script dominance, dedupe.
func Filter(xs []string, exclude Set) []string {
	kept := make([]string, 0, len(xs))
	for _, x := range xs {
		switch {
		case x == "" || x == Other:
		case HasDigit(x):
		case structural.Has(x):
		case exclude.Has(x):
		default:
			kept = append(kept, x)
		}
	}
	return Dedupe(PreferNative(kept))
}

// FilterThemes is the looser rule set used for market themes: digits and anything
// mentioning the peer marker are dropped, then the exclusion set and Other.
func FilterThemes(xs []string, exclude Set) []string {
	kept := make([]string, 0, len(xs))
	for _, x := range Dedupe(xs) {
		switch {
		case x == "" || x == Other:
		case HasDigit(x):
		case strings.Contains(x, PeerMarker):
		case exclude.Has(x):
		default:
			kept = append(kept, x)
		}
	}
	return kept
}

// FilterPeers drops empty tokens, Other and structural labels, then dedupes.
// Company names keep their digits and Latin spelling.
func FilterPeers(xs []string) []string {
	kept := make([]string, 0, len(xs))
	for _, x := range xs {
		if x == "" || x == Other || structural.Has(x) {
			continue
		}
		kept = append(kept, x)
	}
	return Dedupe(kept)
}

// PreferNative keeps only native-script tokens when at least one is present
func PreferNative(xs []string) []string {
	if !slices.ContainsFunc(xs, IsNative) {
		return xs
	}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if IsNative(x) {
			out = append(out, x)
		}
	}
	return out
}

// Dedupe removes repeated tokens keeping the first occurrence
func Dedupe(xs []string) []string {
	seen := make(Set, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if seen.Has(x) {
			continue
		}
		seen.Add(x)
		out = append(out, x)
	}
	return out
}

// Without returns xs minus every token in drop, order preserved
func Without(xs []string, drop Set) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if !drop.Has(x) {
			out = append(out, x)
		}
	}
	return out
}

// WithoutKeepNonEmpty behaves like Without unless that would leave nothing,
// in which case xs is returned unchanged.
func WithoutKeepNonEmpty(xs []string, drop Set) []string {
	if drop.Len() == 0 || len(xs) == 0 {
		return xs
	}
	if out := Without(xs, drop); len(out) > 0 {
		return out
	}
	return xs
}

// Cap keeps the first n tokens; n <= 0 means no limit
func Cap(xs []string, n int) []string {
	if n <= 0 || len(xs) <= n {
		return xs
	}
	return slices.Clone(xs[:n])
}

// Join renders a token list the way record fields store it
func Join(xs []string) string {
	return strings.Join(xs, ",")
}
