package dom

import (
	"errors"
	"strings"
	"testing"
)

const page = `<html><head><title>t</title><script>var x = "hidden";</script></head>
<body>
  <div id="wrap">
    <dl>
      <dt>特色</dt>
      <dd>半導体
          製造装置の大手</dd>
    </dl>
    <p style="display: none">secret</p>
    <span hidden>also secret</span>
    <ul><li><a href="#">AI</a></li><li><a href="#">EV</a></li></ul>
  </div>
</body></html>`

func mustParse(t *testing.T, src string) *HTMLDocument {
	t.Helper()
	doc, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestQueryAndNavigation(t *testing.T) {
	doc := mustParse(t, page)

	dt := First(doc.Query("dt"))
	if dt == nil {
		t.Fatal("expected a dt")
	}
	if dt.Tag() != "dt" {
		t.Errorf("Tag = %q", dt.Tag())
	}

	dd := dt.Next()
	if dd == nil || dd.Tag() != "dd" {
		t.Fatalf("Next should be dd, got %v", dd)
	}
	if got := strings.TrimSpace(dd.Text()); got != "半導体 製造装置の大手" {
		t.Errorf("dd text = %q", got)
	}
	if dd.Next() != nil {
		t.Error("dd has no next sibling")
	}
	if p := dt.Parent(); p == nil || p.Tag() != "dl" {
		t.Errorf("Parent = %v", p)
	}

	if c := dt.Closest("dl"); c == nil || c.Tag() != "dl" {
		t.Errorf("Closest(dl) = %v", c)
	}
	wrap := First(doc.Query("#wrap"))
	if c := wrap.Closest("div"); c == nil || c.Tag() != "div" {
		t.Error("Closest should include the node itself")
	}

	links, err := wrap.Find("a")
	if err != nil || len(links) != 2 {
		t.Fatalf("Find(a) = %d, %v", len(links), err)
	}
	if links[0].Top() >= links[1].Top() {
		t.Error("document order should give increasing Top")
	}
}

func TestInvalidSelector(t *testing.T) {
	doc := mustParse(t, page)
	if _, err := doc.Query("button:has-text('OK')"); err == nil {
		t.Error("expected an error for a non-CSS selector")
	}
}

func TestTextSkipsHiddenContent(t *testing.T) {
	doc := mustParse(t, page)
	text, err := doc.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	for _, unwanted := range []string{"secret", "var x"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("text should not contain %q: %q", unwanted, text)
		}
	}
	if !strings.Contains(text, "特色") || !strings.Contains(text, "AI") {
		t.Errorf("text missing visible content: %q", text)
	}

	lines := strings.Split(text, "\n")
	found := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "特色" {
			found = true
		}
	}
	if !found {
		t.Errorf("dt should be on its own line: %q", text)
	}
}

func TestVisible(t *testing.T) {
	doc := mustParse(t, `<body><div style="display:none"><b>x</b></div><i>y</i><u data-visible="0">z</u></body>`)
	if n := First(doc.Query("b")); n.Visible() {
		t.Error("child of display:none should be invisible")
	}
	if n := First(doc.Query("i")); !n.Visible() {
		t.Error("plain element should be visible")
	}
	if n := First(doc.Query("u")); n.Visible() {
		t.Error("data-visible=0 should be invisible")
	}
}

func TestTopAttribute(t *testing.T) {
	doc := mustParse(t, `<body><span data-top="120.5">a</span><span data-top="12">b</span></body>`)
	spans, _ := doc.Query("span")
	if spans[0].Top() != 120.5 || spans[1].Top() != 12 {
		t.Errorf("Top = %v, %v", spans[0].Top(), spans[1].Top())
	}
}

type fakeInteractor struct {
	clicked []string
	next    Snapshot
	err     error
}

func (f *fakeInteractor) Click(selector string) error {
	f.clicked = append(f.clicked, selector)
	return f.err
}

func (f *fakeInteractor) Snapshot() (Snapshot, error) {
	return f.next, nil
}

func TestClick(t *testing.T) {
	static := mustParse(t, `<body><button>OK</button></body>`)
	if err := First(static.Query("button")).Click(); !errors.Is(err, ErrNotInteractive) {
		t.Errorf("static Click err = %v", err)
	}

	in := &fakeInteractor{next: Snapshot{HTML: `<body><p>after</p></body>`, Text: "after"}}
	live, err := FromSnapshot(Snapshot{HTML: `<body><div></div><div><button>OK</button></div></body>`}, in)
	if err != nil {
		t.Fatal(err)
	}
	if err := First(live.Query("button")).Click(); err != nil {
		t.Fatalf("Click: %v", err)
	}
	want := "html > body:nth-child(2) > div:nth-child(2) > button:nth-child(1)"
	if len(in.clicked) != 1 || in.clicked[0] != want {
		t.Errorf("clicked %v, want %q", in.clicked, want)
	}
	if text, _ := live.Text(); text != "after" {
		t.Errorf("snapshot not refreshed, text = %q", text)
	}
	if n := First(live.Query("button")); n != nil {
		t.Error("old nodes should be gone after refresh")
	}

	in.err = errors.New("boom")
	live2, _ := FromSnapshot(Snapshot{HTML: `<body><button>OK</button></body>`}, in)
	if err := First(live2.Query("button")).Click(); err == nil {
		t.Error("expected click error")
	}
}
