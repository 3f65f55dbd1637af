package render

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/mirefly/docharbor/internal/doc"
)

// pageStyle is the fixed responsive stylesheet every exported page
// ships with.
const pageStyle = `
:root { color-scheme: light dark; }
* { box-sizing: border-box; }
body {
  max-width: 860px;
  margin: 0 auto;
  padding: 24px 16px;
  font-family: -apple-system, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
  line-height: 1.65;
  color: #24292f;
}
h1, h2, h3, h4, h5, h6 { line-height: 1.3; margin: 1.4em 0 0.6em; }
h1 { font-size: 1.9em; border-bottom: 1px solid #d0d7de; padding-bottom: 0.3em; }
h2 { font-size: 1.5em; }
p { margin: 0.8em 0; }
img { max-width: 100%; height: auto; }
pre {
  background: #f6f8fa;
  border-radius: 6px;
  padding: 14px;
  overflow-x: auto;
  font-size: 0.9em;
}
code { font-family: "SFMono-Regular", Consolas, Menlo, monospace; }
table { border-collapse: collapse; margin: 1em 0; width: 100%; }
th, td { border: 1px solid #d0d7de; padding: 6px 12px; text-align: left; }
th { background: #f6f8fa; }
ul, ol { padding-left: 1.8em; }
a { color: #0969da; }
.image-unavailable {
  border: 1px dashed #d0d7de;
  border-radius: 6px;
  padding: 20px;
  text-align: center;
  color: #57606a;
  font-style: italic;
}
@media (max-width: 600px) {
  body { padding: 12px 8px; }
  th, td { padding: 4px 6px; }
}
`

// HTMLRenderer renders the document model as a complete styled page.
type HTMLRenderer struct{}

// NewHTMLRenderer returns the web-page renderer.
func NewHTMLRenderer() *HTMLRenderer { return &HTMLRenderer{} }

// Render implements Renderer.
func (r *HTMLRenderer) Render(ctx context.Context, blocks []doc.Block, opts Options) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(opts.Title))
	sb.WriteString("<style>")
	sb.WriteString(pageStyle)
	sb.WriteString("</style>\n</head>\n<body>\n")
	for _, b := range blocks {
		writeBlock(&sb, b)
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String()), nil
}

func writeBlock(sb *strings.Builder, b doc.Block) {
	switch b.Kind {
	case doc.KindHeading:
		fmt.Fprintf(sb, "<h%d%s>%s</h%d>\n", b.Level, alignAttr(b.Align), html.EscapeString(b.Text), b.Level)
	case doc.KindParagraph:
		if len(b.Children) > 0 {
			for _, c := range b.Children {
				writeBlock(sb, c)
			}
			return
		}
		fmt.Fprintf(sb, "<p%s>", alignAttr(b.Align))
		if len(b.Runs) > 0 {
			for _, run := range b.Runs {
				writeRun(sb, run)
			}
		} else {
			sb.WriteString(html.EscapeString(b.Text))
		}
		sb.WriteString("</p>\n")
	case doc.KindList:
		tag := "ul"
		if b.ListKind == doc.ListNumbered {
			tag = "ol"
		}
		fmt.Fprintf(sb, "<%s>\n", tag)
		for _, item := range b.Items {
			fmt.Fprintf(sb, "<li>%s</li>\n", html.EscapeString(item))
		}
		fmt.Fprintf(sb, "</%s>\n", tag)
	case doc.KindTable:
		sb.WriteString("<table>\n")
		for i, row := range b.Rows {
			cellTag := "td"
			if i == 0 {
				cellTag = "th"
			}
			sb.WriteString("<tr>")
			for _, cell := range row.Cells {
				span := ""
				if cell.ColSpan > 1 {
					span = fmt.Sprintf(` colspan="%d"`, cell.ColSpan)
				}
				if cell.RowSpan > 1 {
					span += fmt.Sprintf(` rowspan="%d"`, cell.RowSpan)
				}
				fmt.Fprintf(sb, "<%s%s>%s</%s>", cellTag, span, html.EscapeString(cell.Text), cellTag)
			}
			sb.WriteString("</tr>\n")
		}
		sb.WriteString("</table>\n")
	case doc.KindImage:
		if b.Src == doc.FailedImageSrc {
			alt := b.Alt
			if alt == "" {
				alt = "image"
			}
			fmt.Fprintf(sb, "<div class=\"image-unavailable\">%s could not be loaded</div>\n", html.EscapeString(alt))
			return
		}
		var attrs strings.Builder
		if b.Alt != "" {
			fmt.Fprintf(&attrs, ` alt="%s"`, html.EscapeString(b.Alt))
		}
		if b.Width > 0 {
			fmt.Fprintf(&attrs, ` width="%d"`, b.Width)
		}
		if b.Height > 0 {
			fmt.Fprintf(&attrs, ` height="%d"`, b.Height)
		}
		fmt.Fprintf(sb, "<img src=\"%s\"%s>\n", html.EscapeString(b.Src), attrs.String())
	case doc.KindCode:
		lang := ""
		if b.Language != "" {
			lang = fmt.Sprintf(` class="language-%s"`, html.EscapeString(b.Language))
		}
		fmt.Fprintf(sb, "<pre><code%s>%s</code></pre>\n", lang, html.EscapeString(b.Text))
	}
}

func writeRun(sb *strings.Builder, run doc.Run) {
	text := html.EscapeString(run.Text)
	if css := runCSS(run.Style); css != "" {
		text = fmt.Sprintf(`<span style="%s">%s</span>`, css, text)
	}
	if run.Href != "" {
		text = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(run.Href), text)
	}
	sb.WriteString(text)
}

// runCSS maps the inline style set onto CSS declarations.
func runCSS(s doc.Style) string {
	var parts []string
	if s.Bold {
		parts = append(parts, "font-weight: bold")
	}
	if s.Italic {
		parts = append(parts, "font-style: italic")
	}
	decorations := ""
	if s.Underline {
		decorations = "underline"
	}
	if s.Strikethrough {
		if decorations != "" {
			decorations += " "
		}
		decorations += "line-through"
	}
	if decorations != "" {
		parts = append(parts, "text-decoration: "+decorations)
	}
	if s.Color != "" {
		parts = append(parts, "color: #"+NormalizeColor(s.Color))
	}
	if s.Background != "" {
		parts = append(parts, "background-color: #"+NormalizeColor(s.Background))
	}
	if s.FontSize > 0 {
		parts = append(parts, "font-size: "+strconv.Itoa(s.FontSize)+"pt")
	}
	if s.FontFamily != "" {
		parts = append(parts, "font-family: "+s.FontFamily)
	}
	return strings.Join(parts, "; ")
}

func alignAttr(align string) string {
	if align == "" {
		return ""
	}
	return fmt.Sprintf(` style="text-align: %s"`, align)
}
