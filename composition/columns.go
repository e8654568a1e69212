package composition

import (
	"fmt"
	"strconv"
)

// AnchorColumn is the record column the derived columns follow
const AnchorColumn = "themes"

// ColumnOverseas holds the overseas sales ratio
const ColumnOverseas = "overseas"

// ColumnNames lists the derived columns in output order: names, then sales, then
// profits for ranks 1..TopN, then the overseas ratio.
var ColumnNames = func() []string {
	names := make([]string, 0, 3*TopN+1)
	for _, prefix := range []string{"business", "business_sales", "business_profit"} {
		for i := 1; i <= TopN; i++ {
			names = append(names, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	return append(names, ColumnOverseas)
}()

// Columns renders the summary aligned with ColumnNames. Missing ranks are empty
// strings and a zero overseas ratio is empty, so "no data" never reads as 0.
func (s Summary) Columns() []string {
	top := s.Top(TopN)
	out := make([]string, len(ColumnNames))
	for i, seg := range top {
		out[i] = seg.Name
		out[TopN+i] = strconv.Itoa(seg.Sales)
		out[2*TopN+i] = strconv.Itoa(seg.Profit)
	}
	if s.Overseas != 0 {
		out[3*TopN] = strconv.Itoa(s.Overseas)
	}
	return out
}

// ColumnMap is Columns keyed by column name
func (s Summary) ColumnMap() map[string]string {
	values := s.Columns()
	m := make(map[string]string, len(values))
	for i, name := range ColumnNames {
		m[name] = values[i]
	}
	return m
}

// InsertAfter returns header with extra inserted right after the column named
// anchor. Without the anchor, extra is appended.
func InsertAfter(header []string, anchor string, extra []string) []string {
	out := make([]string, 0, len(header)+len(extra))
	inserted := false
	for _, name := range header {
		out = append(out, name)
		if name == anchor && !inserted {
			out = append(out, extra...)
			inserted = true
		}
	}
	if !inserted {
		out = append(out, extra...)
	}
	return out
}
