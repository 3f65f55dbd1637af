package doc

import "strings"

// FailedImageSrc marks an image whose bytes could not be fetched.
// Renderers substitute a visible placeholder instead of silently
// dropping the block.
const FailedImageSrc = "about:invalid#image-unavailable"

// BlockKind identifies the variant of a Block.
type BlockKind string

const (
	KindHeading   BlockKind = "heading"
	KindParagraph BlockKind = "paragraph"
	KindList      BlockKind = "list"
	KindTable     BlockKind = "table"
	KindImage     BlockKind = "image"
	KindCode      BlockKind = "code"
)

// ListKind distinguishes bullet from numbered lists.
type ListKind string

const (
	ListBullet   ListKind = "bullet"
	ListNumbered ListKind = "numbered"
)

// Style is the inline style set carried by a Run.
type Style struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Color         string `json:"color,omitempty"`
	Background    string `json:"background,omitempty"`
	FontSize      int    `json:"font_size,omitempty"`
	FontFamily    string `json:"font_family,omitempty"`
}

// IsZero reports whether no style attribute is set.
func (s Style) IsZero() bool {
	return s == Style{}
}

// Run is a span of text with a uniform style inside a paragraph. Href
// is set when the span is a link (anchors in styled markup, file and
// link cards in the rich dialect).
type Run struct {
	Text  string `json:"text"`
	Href  string `json:"href,omitempty"`
	Style Style  `json:"style,omitempty"`
}

// TableCell is one cell of a table row.
type TableCell struct {
	Text    string `json:"text"`
	ColSpan int    `json:"col_span,omitempty"`
	RowSpan int    `json:"row_span,omitempty"`
}

// TableRow is an ordered list of cells.
type TableRow struct {
	Cells []TableCell `json:"cells"`
}

// Block is one element of the format-neutral document model. Exactly
// one of Text/Runs or Children is populated; a block never acts as
// both a leaf and a container.
type Block struct {
	Kind BlockKind `json:"kind"`

	// Heading
	Level int `json:"level,omitempty"`

	// Heading, CodeBlock and plain paragraphs
	Text string `json:"text,omitempty"`

	// Styled paragraph content
	Runs []Run `json:"runs,omitempty"`

	// Paragraph children (e.g. an image nested in a paragraph)
	Children []Block `json:"children,omitempty"`

	// Block-level alignment: "", "left", "center", "right"
	Align string `json:"align,omitempty"`

	// List
	ListKind ListKind `json:"list_kind,omitempty"`
	Items    []string `json:"items,omitempty"`

	// Table
	Rows []TableRow `json:"rows,omitempty"`

	// Image
	Src    string `json:"src,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// CodeBlock
	Language string `json:"language,omitempty"`
}

// Heading builds a heading block, clamping level into [1,6].
func Heading(level int, text string) Block {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return Block{Kind: KindHeading, Level: level, Text: text}
}

// Paragraph builds a plain-text paragraph block.
func Paragraph(text string) Block {
	return Block{Kind: KindParagraph, Text: text}
}

// StyledParagraph builds a paragraph block from runs.
func StyledParagraph(runs ...Run) Block {
	return Block{Kind: KindParagraph, Runs: runs}
}

// Image builds an image block.
func Image(src string) Block {
	return Block{Kind: KindImage, Src: src}
}

// CodeBlock builds a fenced-code block.
func CodeBlock(code, language string) Block {
	return Block{Kind: KindCode, Text: code, Language: language}
}

// Walk visits every block in document order, descending into
// paragraph children. The visitor receives a pointer so callers such
// as the image embedder can mutate blocks in place.
func Walk(blocks []Block, visit func(*Block)) {
	for i := range blocks {
		visit(&blocks[i])
		if len(blocks[i].Children) > 0 {
			Walk(blocks[i].Children, visit)
		}
	}
}

// PlainText flattens a block into its unstyled text content.
func (b Block) PlainText() string {
	if b.Text != "" {
		return b.Text
	}
	if len(b.Runs) > 0 {
		var sb strings.Builder
		for _, r := range b.Runs {
			sb.WriteString(r.Text)
		}
		return sb.String()
	}
	if len(b.Items) > 0 {
		return strings.Join(b.Items, "\n")
	}
	var parts []string
	for _, c := range b.Children {
		if t := c.PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
