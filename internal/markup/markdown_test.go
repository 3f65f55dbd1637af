package markup

import (
	"testing"

	"github.com/mirefly/docharbor/internal/doc"
)

func TestMarkdownHeadingAndParagraph(t *testing.T) {
	blocks, err := parseMarkdown("# Hi\n\nplain body text\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Kind != doc.KindHeading || blocks[0].Level != 1 || blocks[0].Text != "Hi" {
		t.Fatalf("unexpected heading: %+v", blocks[0])
	}
	if blocks[1].Kind != doc.KindParagraph || blocks[1].Text != "plain body text" {
		t.Fatalf("unexpected paragraph: %+v", blocks[1])
	}
}

func TestMarkdownEmphasisRuns(t *testing.T) {
	blocks, err := parseMarkdown("some **bold** and *italic* and ~~gone~~\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || len(blocks[0].Runs) == 0 {
		t.Fatalf("expected styled paragraph, got %+v", blocks)
	}
	var bold, italic, strike bool
	for _, r := range blocks[0].Runs {
		if r.Style.Bold && r.Text == "bold" {
			bold = true
		}
		if r.Style.Italic && r.Text == "italic" {
			italic = true
		}
		if r.Style.Strikethrough && r.Text == "gone" {
			strike = true
		}
	}
	if !bold || !italic || !strike {
		t.Fatalf("missing styles (bold=%t italic=%t strike=%t): %+v", bold, italic, strike, blocks[0].Runs)
	}
}

func TestMarkdownLists(t *testing.T) {
	blocks, err := parseMarkdown("- one\n- two\n\n1. first\n2. second\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(blocks))
	}
	if blocks[0].ListKind != doc.ListBullet || len(blocks[0].Items) != 2 || blocks[0].Items[1] != "two" {
		t.Fatalf("unexpected bullet list: %+v", blocks[0])
	}
	if blocks[1].ListKind != doc.ListNumbered || blocks[1].Items[0] != "first" {
		t.Fatalf("unexpected numbered list: %+v", blocks[1])
	}
}

func TestMarkdownFencedCode(t *testing.T) {
	blocks, err := parseMarkdown("```go\nfmt.Println(1)\n```\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Kind != doc.KindCode {
		t.Fatalf("expected code block, got %+v", blocks)
	}
	if blocks[0].Language != "go" || blocks[0].Text != "fmt.Println(1)" {
		t.Fatalf("unexpected code block: %+v", blocks[0])
	}
}

func TestMarkdownTable(t *testing.T) {
	blocks, err := parseMarkdown("| a | b |\n| --- | --- |\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Kind != doc.KindTable {
		t.Fatalf("expected table, got %+v", blocks)
	}
	rows := blocks[0].Rows
	if len(rows) != 2 || rows[0].Cells[0].Text != "a" || rows[1].Cells[1].Text != "2" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMarkdownImage(t *testing.T) {
	blocks, err := parseMarkdown("![x](https://ex.com/a.png)\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Kind != doc.KindImage {
		t.Fatalf("expected standalone image, got %+v", blocks)
	}
	if blocks[0].Src != "https://ex.com/a.png" || blocks[0].Alt != "x" {
		t.Fatalf("unexpected image: %+v", blocks[0])
	}
}

func TestMarkdownImageInsideParagraph(t *testing.T) {
	blocks, err := parseMarkdown("see ![x](https://ex.com/a.png) here\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || len(blocks[0].Children) == 0 {
		t.Fatalf("expected container paragraph, got %+v", blocks)
	}
	var found bool
	doc.Walk(blocks, func(b *doc.Block) {
		if b.Kind == doc.KindImage && b.Src == "https://ex.com/a.png" {
			found = true
		}
	})
	if !found {
		t.Fatalf("image not reachable via walk: %+v", blocks)
	}
	// The container must not also carry leaf content.
	if blocks[0].Text != "" || len(blocks[0].Runs) != 0 {
		t.Fatalf("container block carries leaf content: %+v", blocks[0])
	}
}

func TestMarkdownFrontmatterStripped(t *testing.T) {
	blocks, err := parseMarkdown("---\ntitle: Doc\n---\n\n# Body\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Text != "Body" {
		t.Fatalf("frontmatter leaked into blocks: %+v", blocks)
	}
}

func TestMarkdownLinkRun(t *testing.T) {
	blocks, err := parseMarkdown("go to [docs](https://ex.com/docs) now\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %+v", blocks)
	}
	var href string
	for _, r := range blocks[0].Runs {
		if r.Href != "" {
			href = r.Href
		}
	}
	if href != "https://ex.com/docs" {
		t.Fatalf("expected link href, got %+v", blocks[0].Runs)
	}
}

func TestParseDeterministic(t *testing.T) {
	const body = "# T\n\na *b* c\n\n- x\n- y\n"
	first, err := Parse(body, "plain")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Parse(body, "plain")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("non-deterministic block count: %d vs %d", len(again), len(first))
		}
	}
}
