package profile

import (
	"errors"
	"strings"
	"testing"

	"shikihoscraper/dom"
	"shikihoscraper/tokens"
)

const profilePage = `<html><body>
<div id="tpModal"><button class="pi_close">×</button></div>
<header><h1>
  東京エレクトロン
</h1></header>
<section>
<p>東証プライム 8035</p>
<dl>
  <dt>特色</dt>
  <dd>  半導体製造装置で
      国内首位 </dd>
  <dt>連結事業</dt>
  <dd>半導体製造装置82(24)、FPD製造装置18(10)【海外】85 セグメント収益は増加</dd>
  <dt>所属業界</dt>
  <dd>
    <a>半導体製造装置</a><a>電子部品</a><a>AI</a><a>半導体</a>
    <div>比較会社 <a>アドテスト</a><a>レーザーテク</a></div>
  </dd>
  <dt>市場テーマ</dt>
  <dd><a>半導体</a><a>生成AI</a></dd>
</dl>
</section>
</body></html>`

func parse(t *testing.T, src string) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestExtract(t *testing.T) {
	got := New().Extract(parse(t, profilePage))
	want := Record{
		CompanyName:         "東京エレクトロン",
		Market:              "東証プライム",
		Feature:             "半導体製造装置で 国内首位",
		BusinessComposition: "半導体製造装置82(24)、FPD製造装置18(10)【海外】85",
		Industries:          "半導体製造装置,電子部品",
		Themes:              "半導体,生成AI",
	}
	if got != want {
		t.Errorf("Extract =\n%+v\nwant\n%+v", got, want)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	doc := parse(t, profilePage)
	e := New()
	first := e.Extract(doc)
	if second := e.Extract(doc); first != second {
		t.Errorf("second run differs:\n%+v\n%+v", first, second)
	}
}

func TestIndustriesCap(t *testing.T) {
	page := `<dl><dt>所属業界</dt><dd><a>半導体</a><a>電子部品</a><a>自動車</a><a>化学</a><a>鉄鋼</a></dd></dl>`

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{name: "default cap", want: "半導体,電子部品,自動車"},
		{name: "custom cap", opts: []Option{WithMaxIndustries(2)}, want: "半導体,電子部品"},
		{name: "no cap", opts: []Option{WithMaxIndustries(0)}, want: "半導体,電子部品,自動車,化学,鉄鋼"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.opts...).Extract(parse(t, page))
			if got.Industries != tt.want {
				t.Errorf("Industries = %q, want %q", got.Industries, tt.want)
			}
		})
	}
}

func TestIndustriesKeptWhenAllOverlapThemes(t *testing.T) {
	page := `<dl><dt>所属業界</dt><dd><a>半導体</a></dd><dt>市場テーマ</dt><dd><a>半導体</a></dd></dl>`
	got := New().Extract(parse(t, page))
	if got.Industries != "半導体" || got.Themes != "半導体" {
		t.Errorf("got industries %q themes %q", got.Industries, got.Themes)
	}
}

func TestKnownPeersReplaceDerivation(t *testing.T) {
	page := `<dl><dt>所属業界</dt><dd><a>アドテスト</a><a>半導体</a></dd></dl>`
	got := New().ExtractWith(parse(t, page), tokens.NewSet("アドテスト"))
	if got.Industries != "半導体" {
		t.Errorf("Industries = %q", got.Industries)
	}
}

func TestLatinPeersExcluded(t *testing.T) {
	page := `<dl>
<dt>所属業界</dt><dd><a>EMS</a><a>SCREEN</a></dd>
<dt>市場テーマ</dt><dd><a>生成AI</a><a>SCREEN</a></dd>
<dt>比較会社</dt><dd><a>ソニーG</a><a>SCREEN</a></dd>
</dl>`
	got := New().Extract(parse(t, page))
	if got.Industries != "EMS" {
		t.Errorf("Industries = %q, want EMS", got.Industries)
	}
	if got.Themes != "生成AI" {
		t.Errorf("Themes = %q, want 生成AI", got.Themes)
	}
}

func TestPeersFromLabelItemsAndText(t *testing.T) {
	// peers outside a dl: one link plus a plain-text name
	page := `<dl><dt>市場テーマ</dt><dd><a>生成AI</a><a>SCREEN</a><a>TDK</a></dd></dl>
<table><tr><th>比較会社</th><td><a>ソニーG</a>、SCREEN</td></tr></table>`
	got := New().Extract(parse(t, page))
	if got.Themes != "生成AI,TDK" {
		t.Errorf("Themes = %q, want 生成AI,TDK", got.Themes)
	}
}

func TestThemesFromPageText(t *testing.T) {
	page := `<body><p>市場テーマ：EV、全固体電池 比較会社 トヨタ</p></body>`
	got := New().Extract(parse(t, page))
	if got.Themes != "EV,全固体電池" {
		t.Errorf("Themes = %q", got.Themes)
	}
}

func TestBusinessLabelSynonyms(t *testing.T) {
	page := `<table><tr><th>単独事業</th><td>小売100(4)</td></tr></table>`
	got := New().Extract(parse(t, page))
	if got.BusinessComposition != "小売100(4)" {
		t.Errorf("BusinessComposition = %q", got.BusinessComposition)
	}
}

func TestMissingFieldsAreEmpty(t *testing.T) {
	got := New().Extract(parse(t, `<body><p>メンテナンス中</p></body>`))
	if got != (Record{}) {
		t.Errorf("expected empty record, got %+v", got)
	}
}

type overlayInteractor struct {
	clicks int
}

func (o *overlayInteractor) Click(string) error {
	o.clicks++
	return nil
}

func (o *overlayInteractor) Snapshot() (dom.Snapshot, error) {
	return dom.Snapshot{HTML: `<body><h1>アドバンテスト</h1><p>東証プライム</p></body>`}, nil
}

func TestOverlayDismissedBeforeExtraction(t *testing.T) {
	in := &overlayInteractor{}
	doc, err := dom.FromSnapshot(dom.Snapshot{HTML: `<body><div class="consent"><button>同意する</button></div></body>`}, in)
	if err != nil {
		t.Fatal(err)
	}

	got := New().Extract(doc)
	if in.clicks != 1 {
		t.Errorf("clicks = %d, want 1", in.clicks)
	}
	if got.CompanyName != "アドバンテスト" || got.Market != "東証プライム" {
		t.Errorf("extraction should read the page after dismissal, got %+v", got)
	}
}

func TestInvisibleOverlayIgnored(t *testing.T) {
	in := &overlayInteractor{}
	doc, err := dom.FromSnapshot(dom.Snapshot{HTML: `<body><button style="display:none">OK</button><h1>X</h1></body>`}, in)
	if err != nil {
		t.Fatal(err)
	}
	New().Extract(doc)
	if in.clicks != 0 {
		t.Errorf("hidden control should not be clicked, clicks = %d", in.clicks)
	}
}

type failingDoc struct {
	panics bool
}

func (f failingDoc) Query(string) ([]dom.Node, error) {
	if f.panics {
		panic("evaluation failed")
	}
	return nil, errors.New("evaluation failed")
}

func (f failingDoc) Text() (string, error) {
	if f.panics {
		panic("evaluation failed")
	}
	return "", errors.New("evaluation failed")
}

func TestExtractNeverFails(t *testing.T) {
	for _, doc := range []failingDoc{{}, {panics: true}} {
		if got := New().Extract(doc); got != (Record{}) {
			t.Errorf("Extract = %+v", got)
		}
	}
}
