package markup

import (
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/mirefly/docharbor/internal/doc"
)

var mdEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))

// parseMarkdown converts plain structured markup into blocks by
// walking the goldmark AST. A YAML frontmatter block, if present, is
// stripped before parsing.
func parseMarkdown(content string) ([]doc.Block, error) {
	var meta map[string]any
	if rest, err := frontmatter.Parse(strings.NewReader(content), &meta); err == nil {
		content = string(rest)
	}
	src := []byte(content)
	root := mdEngine.Parser().Parse(text.NewReader(src))

	var blocks []doc.Block
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = append(blocks, mdBlock(n, src)...)
	}
	return blocks, nil
}

func mdBlock(n gast.Node, src []byte) []doc.Block {
	switch v := n.(type) {
	case *gast.Heading:
		return []doc.Block{doc.Heading(v.Level, nodeText(v, src))}
	case *gast.Paragraph, *gast.TextBlock:
		return mdParagraph(n, src)
	case *gast.List:
		return []doc.Block{mdList(v, src)}
	case *gast.FencedCodeBlock:
		return []doc.Block{doc.CodeBlock(blockLines(v, src), string(v.Language(src)))}
	case *gast.CodeBlock:
		return []doc.Block{doc.CodeBlock(blockLines(v, src), "")}
	case *east.Table:
		return []doc.Block{mdTable(v, src)}
	case *gast.Blockquote:
		var out []doc.Block
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, mdBlock(c, src)...)
		}
		return out
	case *gast.ThematicBreak, *gast.HTMLBlock:
		return nil
	default:
		if t := nodeText(n, src); strings.TrimSpace(t) != "" {
			return []doc.Block{doc.Paragraph(t)}
		}
		return nil
	}
}

// mdParagraph walks a paragraph's inline tree into styled runs,
// splitting embedded images out as sibling children so no block mixes
// leaf text with nested content.
func mdParagraph(n gast.Node, src []byte) []doc.Block {
	var (
		parts []doc.Block
		runs  []doc.Run
	)
	flush := func() {
		if len(runs) > 0 {
			parts = append(parts, runsParagraph(runs))
			runs = nil
		}
	}
	var walk func(n gast.Node, style doc.Style, href string)
	walk = func(n gast.Node, style doc.Style, href string) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *gast.Text:
				txt := string(v.Segment.Value(src))
				if txt != "" {
					runs = append(runs, doc.Run{Text: txt, Href: href, Style: style})
				}
				if v.SoftLineBreak() || v.HardLineBreak() {
					runs = append(runs, doc.Run{Text: " ", Style: style})
				}
			case *gast.String:
				runs = append(runs, doc.Run{Text: string(v.Value), Href: href, Style: style})
			case *gast.Emphasis:
				next := style
				if v.Level >= 2 {
					next.Bold = true
				} else {
					next.Italic = true
				}
				walk(v, next, href)
			case *east.Strikethrough:
				next := style
				next.Strikethrough = true
				walk(v, next, href)
			case *gast.CodeSpan:
				next := style
				next.FontFamily = "monospace"
				walk(v, next, href)
			case *gast.Link:
				walk(v, style, string(v.Destination))
			case *gast.AutoLink:
				u := string(v.URL(src))
				runs = append(runs, doc.Run{Text: u, Href: u, Style: style})
			case *gast.Image:
				flush()
				img := doc.Image(string(v.Destination))
				img.Alt = nodeText(v, src)
				parts = append(parts, img)
			default:
				walk(c, style, href)
			}
		}
	}
	walk(n, doc.Style{}, "")
	flush()

	if len(parts) == 1 {
		return parts
	}
	if len(parts) == 0 {
		return nil
	}
	return []doc.Block{{Kind: doc.KindParagraph, Children: parts}}
}

// runsParagraph collapses an all-plain run list to a plain-text
// paragraph, otherwise keeps the styled runs.
func runsParagraph(runs []doc.Run) doc.Block {
	plain := true
	for _, r := range runs {
		if !r.Style.IsZero() || r.Href != "" {
			plain = false
			break
		}
	}
	if plain {
		var sb strings.Builder
		for _, r := range runs {
			sb.WriteString(r.Text)
		}
		return doc.Paragraph(sb.String())
	}
	return doc.StyledParagraph(runs...)
}

func mdList(l *gast.List, src []byte) doc.Block {
	kind := doc.ListBullet
	if l.IsOrdered() {
		kind = doc.ListNumbered
	}
	var items []string
	for li := l.FirstChild(); li != nil; li = li.NextSibling() {
		items = append(items, strings.TrimSpace(nodeText(li, src)))
	}
	return doc.Block{Kind: doc.KindList, ListKind: kind, Items: items}
}

func mdTable(t *east.Table, src []byte) doc.Block {
	var rows []doc.TableRow
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []doc.TableCell
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, doc.TableCell{Text: nodeText(c, src)})
		}
		if len(cells) > 0 {
			rows = append(rows, doc.TableRow{Cells: cells})
		}
	}
	return doc.Block{Kind: doc.KindTable, Rows: rows}
}

// blockLines concatenates the raw source lines of a code block.
func blockLines(n gast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// nodeText flattens a node's inline content to plain text.
func nodeText(n gast.Node, src []byte) string {
	var sb strings.Builder
	var walk func(n gast.Node)
	walk = func(n gast.Node) {
		switch v := n.(type) {
		case *gast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *gast.String:
			sb.Write(v.Value)
		default:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
