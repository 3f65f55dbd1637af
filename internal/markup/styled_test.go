package markup

import (
	"testing"

	"github.com/mirefly/docharbor/internal/doc"
)

func TestStyledHeadingsAndParagraphs(t *testing.T) {
	blocks, err := parseStyled(`<h2>Title</h2><p>body</p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %+v", blocks)
	}
	if blocks[0].Kind != doc.KindHeading || blocks[0].Level != 2 || blocks[0].Text != "Title" {
		t.Fatalf("unexpected heading: %+v", blocks[0])
	}
	if blocks[1].PlainText() != "body" {
		t.Fatalf("unexpected paragraph: %+v", blocks[1])
	}
}

func TestStyledNestedStylesAccumulate(t *testing.T) {
	blocks, err := parseStyled(`<p><b>bold <i>both</i></b></p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %+v", blocks)
	}
	var both bool
	for _, r := range blocks[0].Runs {
		if r.Text == "both" && r.Style.Bold && r.Style.Italic {
			both = true
		}
	}
	if !both {
		t.Fatalf("nested styles did not accumulate: %+v", blocks[0].Runs)
	}
}

func TestStyledStyleAttribute(t *testing.T) {
	blocks, err := parseStyled(`<p><span style="color: #ff0000; background-color: yellow; font-size: 16px">hot</span></p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || len(blocks[0].Runs) == 0 {
		t.Fatalf("expected styled paragraph, got %+v", blocks)
	}
	r := blocks[0].Runs[0]
	if r.Style.Color != "#ff0000" || r.Style.Background != "yellow" {
		t.Fatalf("unexpected colors: %+v", r.Style)
	}
	if r.Style.FontSize != 12 { // 16px at 96dpi is 12pt
		t.Fatalf("unexpected font size: %d", r.Style.FontSize)
	}
}

func TestStyledAlignment(t *testing.T) {
	blocks, err := parseStyled(`<p style="text-align: center">centered</p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Align != "center" {
		t.Fatalf("expected centered paragraph, got %+v", blocks)
	}
}

func TestStyledSingleChildCollapses(t *testing.T) {
	blocks, err := parseStyled(`<div><div><p>only</p></div></div>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected wrapper collapse to 1 block, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Kind != doc.KindParagraph || blocks[0].PlainText() != "only" {
		t.Fatalf("unexpected block: %+v", blocks[0])
	}
	if len(blocks[0].Children) != 0 {
		t.Fatalf("collapsed block still a container: %+v", blocks[0])
	}
}

func TestStyledListAndTable(t *testing.T) {
	blocks, err := parseStyled(`<ol><li>a</li><li>b</li></ol><table><tr><td>x</td><td colspan="2">y</td></tr></table>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected list and table, got %+v", blocks)
	}
	if blocks[0].ListKind != doc.ListNumbered || len(blocks[0].Items) != 2 {
		t.Fatalf("unexpected list: %+v", blocks[0])
	}
	cells := blocks[1].Rows[0].Cells
	if len(cells) != 2 || cells[1].ColSpan != 2 {
		t.Fatalf("unexpected cells: %+v", cells)
	}
}

func TestStyledImageAndCode(t *testing.T) {
	blocks, err := parseStyled(`<img src="https://x/a.png" alt="pic" width="300"><pre><code class="language-go">x := 1</code></pre>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected image and code, got %+v", blocks)
	}
	if blocks[0].Src != "https://x/a.png" || blocks[0].Width != 300 {
		t.Fatalf("unexpected image: %+v", blocks[0])
	}
	if blocks[1].Language != "go" || blocks[1].Text != "x := 1" {
		t.Fatalf("unexpected code: %+v", blocks[1])
	}
}

func TestStyledAnchorHref(t *testing.T) {
	blocks, err := parseStyled(`<p><a href="https://x/doc">read</a></p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || len(blocks[0].Runs) == 0 || blocks[0].Runs[0].Href != "https://x/doc" {
		t.Fatalf("expected link run, got %+v", blocks)
	}
}
