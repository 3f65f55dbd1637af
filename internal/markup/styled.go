package markup

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mirefly/docharbor/internal/doc"
)

// parseStyled converts a styled-markup tag tree into blocks. Inline
// style tags and style attributes accumulate into run styles as the
// walk descends.
func parseStyled(content string) ([]doc.Block, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	body := findBody(root)
	if body == nil {
		return nil, nil
	}
	w := &styledWalker{}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		w.walkBlock(c, doc.Style{}, "")
	}
	w.flush("")
	return w.blocks, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

type styledWalker struct {
	blocks []doc.Block
	runs   []doc.Run
}

// flush closes the open run accumulation into a paragraph block.
func (w *styledWalker) flush(align string) {
	if len(w.runs) == 0 {
		return
	}
	if strings.TrimSpace(textOfRuns(w.runs)) == "" {
		w.runs = nil
		return
	}
	b := runsParagraph(w.runs)
	b.Align = align
	w.blocks = append(w.blocks, b)
	w.runs = nil
}

func textOfRuns(runs []doc.Run) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// walkBlock dispatches one block-level node. Inline nodes encountered
// at block level accumulate into the pending run list.
func (w *styledWalker) walkBlock(n *html.Node, style doc.Style, href string) {
	switch n.Type {
	case html.TextNode:
		if t := normalizeSpace(n.Data); t != "" {
			w.runs = append(w.runs, doc.Run{Text: t, Href: href, Style: style})
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
	default:
		return
	}

	style, blockAlign := applyNodeStyle(n, style)

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.flush("")
		level := int(n.Data[1] - '0')
		h := doc.Heading(level, w.inlineText(n, style, href))
		h.Align = blockAlign
		w.blocks = append(w.blocks, h)
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Blockquote, atom.Figure:
		w.flush("")
		inner := &styledWalker{}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inner.walkBlock(c, style, href)
		}
		inner.flush(blockAlign)
		w.blocks = append(w.blocks, collapseSingleChild(inner.blocks, blockAlign)...)
	case atom.Ul, atom.Ol:
		w.flush("")
		w.blocks = append(w.blocks, styledList(n, style))
	case atom.Table:
		w.flush("")
		if t, ok := styledTable(n); ok {
			w.blocks = append(w.blocks, t)
		}
	case atom.Pre:
		w.flush("")
		w.blocks = append(w.blocks, doc.CodeBlock(rawText(n), codeLanguage(n)))
	case atom.Img:
		w.flush("")
		if img, ok := styledImage(n); ok {
			w.blocks = append(w.blocks, img)
		}
	case atom.Br:
		w.runs = append(w.runs, doc.Run{Text: "\n", Style: style})
	case atom.Hr, atom.Script, atom.Style, atom.Head, atom.Title:
		// Ignored.
	case atom.A:
		link := attrValue(n, "href")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walkBlock(c, style, link)
		}
	default:
		// Inline containers (span, b, i, font, ...) descend with the
		// accumulated style.
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walkBlock(c, style, href)
		}
	}
}

// collapseSingleChild drops a wrapper that produced exactly one
// meaningful block, keeping its alignment if the child has none.
func collapseSingleChild(blocks []doc.Block, align string) []doc.Block {
	if len(blocks) == 1 {
		if align != "" && blocks[0].Align == "" {
			blocks[0].Align = align
		}
		return blocks
	}
	return blocks
}

// inlineText flattens an element's inline content into plain text,
// discarding nested styles (used for headings).
func (w *styledWalker) inlineText(n *html.Node, style doc.Style, href string) string {
	inner := &styledWalker{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inner.walkBlock(c, style, href)
	}
	var sb strings.Builder
	sb.WriteString(textOfRuns(inner.runs))
	for _, b := range inner.blocks {
		sb.WriteString(b.PlainText())
	}
	return strings.TrimSpace(sb.String())
}

func styledList(n *html.Node, style doc.Style) doc.Block {
	kind := doc.ListBullet
	if n.DataAtom == atom.Ol {
		kind = doc.ListNumbered
	}
	var items []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			inner := &styledWalker{}
			items = append(items, inner.inlineText(c, style, ""))
		}
	}
	return doc.Block{Kind: doc.KindList, ListKind: kind, Items: items}
}

func styledTable(n *html.Node) (doc.Block, bool) {
	var rows []doc.TableRow
	var walkRows func(n *html.Node)
	walkRows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				var cells []doc.TableCell
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type != html.ElementNode {
						continue
					}
					if td.DataAtom == atom.Td || td.DataAtom == atom.Th {
						cell := doc.TableCell{Text: strings.TrimSpace(rawText(td))}
						if v, err := strconv.Atoi(attrValue(td, "colspan")); err == nil && v > 1 {
							cell.ColSpan = v
						}
						if v, err := strconv.Atoi(attrValue(td, "rowspan")); err == nil && v > 1 {
							cell.RowSpan = v
						}
						cells = append(cells, cell)
					}
				}
				if len(cells) > 0 {
					rows = append(rows, doc.TableRow{Cells: cells})
				}
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walkRows(c)
			}
		}
	}
	walkRows(n)
	if len(rows) == 0 {
		return doc.Block{}, false
	}
	return doc.Block{Kind: doc.KindTable, Rows: rows}, true
}

func styledImage(n *html.Node) (doc.Block, bool) {
	src := attrValue(n, "src")
	if src == "" {
		return doc.Block{}, false
	}
	img := doc.Image(src)
	img.Alt = attrValue(n, "alt")
	if v, err := strconv.Atoi(attrValue(n, "width")); err == nil {
		img.Width = v
	}
	if v, err := strconv.Atoi(attrValue(n, "height")); err == nil {
		img.Height = v
	}
	return img, true
}

// codeLanguage pulls a language hint from pre/code class attributes
// ("language-go", "lang-go").
func codeLanguage(n *html.Node) string {
	classes := attrValue(n, "class")
	if inner := firstElement(n, atom.Code); inner != nil {
		if c := attrValue(inner, "class"); c != "" {
			classes = c
		}
	}
	for _, cls := range strings.Fields(classes) {
		for _, prefix := range []string{"language-", "lang-"} {
			if strings.HasPrefix(cls, prefix) {
				return strings.TrimPrefix(cls, prefix)
			}
		}
	}
	return ""
}

func firstElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// rawText concatenates all text beneath a node without whitespace
// normalization (code blocks need their layout kept).
func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Trim(sb.String(), "\n")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\n") || strings.HasPrefix(s, "\t") {
		out = " " + out
	}
	if len(s) > 0 {
		switch s[len(s)-1] {
		case ' ', '\n', '\t':
			out += " "
		}
	}
	return out
}

// applyNodeStyle folds a node's tag semantics and style attribute into
// the accumulated style, and extracts block-level alignment.
func applyNodeStyle(n *html.Node, style doc.Style) (doc.Style, string) {
	switch n.DataAtom {
	case atom.B, atom.Strong:
		style.Bold = true
	case atom.I, atom.Em:
		style.Italic = true
	case atom.U, atom.Ins:
		style.Underline = true
	case atom.S, atom.Del, atom.Strike:
		style.Strikethrough = true
	case atom.Code:
		style.FontFamily = "monospace"
	case atom.Font:
		if c := attrValue(n, "color"); c != "" {
			style.Color = c
		}
		if f := attrValue(n, "face"); f != "" {
			style.FontFamily = f
		}
	}
	align := attrValue(n, "align")
	for _, decl := range strings.Split(attrValue(n, "style"), ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		switch name {
		case "font-weight":
			if value == "bold" || value == "bolder" {
				style.Bold = true
			} else if v, err := strconv.Atoi(value); err == nil && v >= 600 {
				style.Bold = true
			}
		case "font-style":
			if value == "italic" || value == "oblique" {
				style.Italic = true
			}
		case "text-decoration", "text-decoration-line":
			if strings.Contains(value, "underline") {
				style.Underline = true
			}
			if strings.Contains(value, "line-through") {
				style.Strikethrough = true
			}
		case "color":
			style.Color = value
		case "background-color", "background":
			style.Background = value
		case "font-size":
			style.FontSize = parseFontSize(value)
		case "font-family":
			style.FontFamily = strings.Trim(strings.Split(value, ",")[0], `"' `)
		case "text-align":
			align = value
		}
	}
	switch align {
	case "left", "center", "right":
		return style, align
	}
	return style, ""
}

// parseFontSize converts a CSS font-size to points. Pixel values use
// the standard 96dpi/72pt ratio; bare numbers are taken as points.
func parseFontSize(value string) int {
	value = strings.TrimSpace(strings.ToLower(value))
	switch {
	case strings.HasSuffix(value, "px"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "px"), 64); err == nil {
			return int(f * 72 / 96)
		}
	case strings.HasSuffix(value, "pt"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "pt"), 64); err == nil {
			return int(f)
		}
	default:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return int(f)
		}
	}
	return 0
}
