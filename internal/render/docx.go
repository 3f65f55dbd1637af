package render

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mirefly/docharbor/internal/doc"
)

// DocxRenderer renders the document model as an OOXML word-processing
// package. The container is a plain zip with a fixed part layout, the
// same structure the import side reads.
type DocxRenderer struct{}

// NewDocxRenderer returns the word-document renderer.
func NewDocxRenderer() *DocxRenderer { return &DocxRenderer{} }

// emuPerPixel converts CSS pixels to English Metric Units at 96dpi.
const emuPerPixel = 9525

type docxMedia struct {
	name  string
	relID string
	data  []byte
}

type docxLink struct {
	relID string
	url   string
}

type docxBuilder struct {
	body    strings.Builder
	media   []docxMedia
	links   []docxLink
	nextRel int
}

// Render implements Renderer.
func (r *DocxRenderer) Render(ctx context.Context, blocks []doc.Block, opts Options) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	b := &docxBuilder{nextRel: 1}
	for _, block := range blocks {
		b.writeBlock(block)
	}
	return b.finish()
}

func (b *docxBuilder) relID() string {
	id := fmt.Sprintf("rId%d", b.nextRel+10) // 1..10 reserved for static parts
	b.nextRel++
	return id
}

func (b *docxBuilder) writeBlock(block doc.Block) {
	switch block.Kind {
	case doc.KindHeading:
		b.writeHeading(block)
	case doc.KindParagraph:
		if len(block.Children) > 0 {
			for _, c := range block.Children {
				b.writeBlock(c)
			}
			return
		}
		b.writeParagraph(block)
	case doc.KindList:
		b.writeList(block)
	case doc.KindTable:
		b.writeTable(block)
	case doc.KindImage:
		b.writeImage(block)
	case doc.KindCode:
		b.writeCode(block)
	}
}

func (b *docxBuilder) writeHeading(block doc.Block) {
	fmt.Fprintf(&b.body, `<w:p><w:pPr><w:pStyle w:val="Heading%d"/>%s</w:pPr>`, block.Level, alignXML(block.Align))
	b.writeRunXML(doc.Run{Text: block.Text})
	b.body.WriteString(`</w:p>`)
}

func (b *docxBuilder) writeParagraph(block doc.Block) {
	fmt.Fprintf(&b.body, `<w:p><w:pPr>%s</w:pPr>`, alignXML(block.Align))
	if len(block.Runs) > 0 {
		for _, run := range block.Runs {
			b.writeRunXML(run)
		}
	} else {
		b.writeRunXML(doc.Run{Text: block.Text})
	}
	b.body.WriteString(`</w:p>`)
}

func (b *docxBuilder) writeList(block doc.Block) {
	for i, item := range block.Items {
		prefix := "• "
		if block.ListKind == doc.ListNumbered {
			prefix = fmt.Sprintf("%d. ", i+1)
		}
		b.body.WriteString(`<w:p><w:pPr><w:ind w:left="360"/></w:pPr>`)
		b.writeRunXML(doc.Run{Text: prefix + item})
		b.body.WriteString(`</w:p>`)
	}
}

// writeTable emits a table with a uniform single-pixel border on
// every cell.
func (b *docxBuilder) writeTable(block doc.Block) {
	b.body.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
	for _, edge := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(&b.body, `<w:%s w:val="single" w:sz="6" w:space="0" w:color="D0D7DE"/>`, edge)
	}
	b.body.WriteString(`</w:tblBorders></w:tblPr>`)
	for i, row := range block.Rows {
		b.body.WriteString(`<w:tr>`)
		for _, cell := range row.Cells {
			b.body.WriteString(`<w:tc><w:tcPr>`)
			if cell.ColSpan > 1 {
				fmt.Fprintf(&b.body, `<w:gridSpan w:val="%d"/>`, cell.ColSpan)
			}
			b.body.WriteString(`</w:tcPr><w:p>`)
			run := doc.Run{Text: cell.Text}
			if i == 0 {
				run.Style.Bold = true // header row
			}
			b.writeRunXML(run)
			b.body.WriteString(`</w:p></w:tc>`)
		}
		b.body.WriteString(`</w:tr>`)
	}
	b.body.WriteString(`</w:tbl>`)
}

// writeImage emits an image as a standalone paragraph; the format
// cannot mix a drawing with styled text in one paragraph. Sources
// that never became inline data degrade to a placeholder line.
func (b *docxBuilder) writeImage(block doc.Block) {
	data, ext, ok := decodeDataURI(block.Src)
	if !ok {
		label := block.Alt
		if label == "" {
			label = "image"
		}
		b.body.WriteString(`<w:p>`)
		b.writeRunXML(doc.Run{Text: "[" + label + " unavailable]", Style: doc.Style{Italic: true}})
		b.body.WriteString(`</w:p>`)
		return
	}
	relID := b.relID()
	name := fmt.Sprintf("image%d.%s", len(b.media)+1, ext)
	b.media = append(b.media, docxMedia{name: name, relID: relID, data: data})

	w, h := block.Width, block.Height
	if w <= 0 {
		w = 480
	}
	if h <= 0 {
		h = w * 3 / 4
	}
	cx, cy := w*emuPerPixel, h*emuPerPixel
	id := len(b.media)
	fmt.Fprintf(&b.body,
		`<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
			`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="%s"/>`+
			`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
			`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
			`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
			`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
			`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
			`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		cx, cy, id, name, id, name, relID, cx, cy)
}

func (b *docxBuilder) writeCode(block doc.Block) {
	for _, line := range strings.Split(block.Text, "\n") {
		b.body.WriteString(`<w:p><w:pPr><w:shd w:val="clear" w:color="auto" w:fill="F6F8FA"/></w:pPr>`)
		b.writeRunXML(doc.Run{Text: line, Style: doc.Style{FontFamily: "Consolas"}})
		b.body.WriteString(`</w:p>`)
	}
}

// writeRunXML emits one run. Links become real hyperlink elements
// with an external relationship.
func (b *docxBuilder) writeRunXML(run doc.Run) {
	openTag, closeTag := "", ""
	if run.Href != "" {
		relID := b.relID()
		b.links = append(b.links, docxLink{relID: relID, url: run.Href})
		openTag = fmt.Sprintf(`<w:hyperlink r:id="%s">`, relID)
		closeTag = `</w:hyperlink>`
		run.Style.Underline = true
		if run.Style.Color == "" {
			run.Style.Color = "#0969DA"
		}
	}
	b.body.WriteString(openTag)
	b.body.WriteString(`<w:r>`)
	if props := runProps(run.Style); props != "" {
		fmt.Fprintf(&b.body, `<w:rPr>%s</w:rPr>`, props)
	}
	fmt.Fprintf(&b.body, `<w:t xml:space="preserve">%s</w:t></w:r>`, xmlEscape(run.Text))
	b.body.WriteString(closeTag)
}

// runProps maps the style set to run properties. Font sizes use the
// format's native half-point unit.
func runProps(s doc.Style) string {
	var sb strings.Builder
	if s.FontFamily != "" {
		family := xmlEscape(s.FontFamily)
		fmt.Fprintf(&sb, `<w:rFonts w:ascii="%s" w:hAnsi="%s"/>`, family, family)
	}
	if s.Bold {
		sb.WriteString(`<w:b/>`)
	}
	if s.Italic {
		sb.WriteString(`<w:i/>`)
	}
	if s.Strikethrough {
		sb.WriteString(`<w:strike/>`)
	}
	if s.Underline {
		sb.WriteString(`<w:u w:val="single"/>`)
	}
	if s.Color != "" {
		fmt.Fprintf(&sb, `<w:color w:val="%s"/>`, NormalizeColor(s.Color))
	}
	if s.Background != "" {
		fmt.Fprintf(&sb, `<w:shd w:val="clear" w:color="auto" w:fill="%s"/>`, NormalizeColor(s.Background))
	}
	if s.FontSize > 0 {
		fmt.Fprintf(&sb, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, s.FontSize*2, s.FontSize*2)
	}
	return sb.String()
}

// decodeDataURI splits an inline data reference into bytes and a file
// extension for the media part.
func decodeDataURI(src string) ([]byte, string, bool) {
	if !strings.HasPrefix(src, "data:") {
		return nil, "", false
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	ext := "png"
	switch strings.TrimSuffix(meta, ";base64") {
	case "image/jpeg", "image/jpg":
		ext = "jpeg"
	case "image/gif":
		ext = "gif"
	case "image/bmp":
		ext = "bmp"
	case "image/webp":
		ext = "webp"
	case "image/svg+xml":
		// The format has no universal SVG support; skip to placeholder.
		return nil, "", false
	}
	return data, ext, true
}

func alignXML(align string) string {
	switch align {
	case "center":
		return `<w:jc w:val="center"/>`
	case "right":
		return `<w:jc w:val="right"/>`
	case "left":
		return `<w:jc w:val="left"/>`
	}
	return ""
}

func xmlEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&apos;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// finish assembles the OOXML package.
func (b *docxBuilder) finish() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", b.contentTypes()},
		{"_rels/.rels", rootRels},
		{"word/document.xml", b.documentXML()},
		{"word/_rels/document.xml.rels", b.documentRels()},
		{"word/styles.xml", stylesXML},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			return nil, fmt.Errorf("write part %s: %w", p.name, err)
		}
	}
	for _, m := range b.media {
		w, err := zw.Create("word/media/" + m.name)
		if err != nil {
			return nil, fmt.Errorf("create media %s: %w", m.name, err)
		}
		if _, err := w.Write(m.data); err != nil {
			return nil, fmt.Errorf("write media %s: %w", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *docxBuilder) contentTypes() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Default Extension="gif" ContentType="image/gif"/>
<Default Extension="bmp" ContentType="image/bmp"/>
<Default Extension="webp" ContentType="image/webp"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`
}

func (b *docxBuilder) documentXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<w:body>` + b.body.String() + `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr></w:body>
</w:document>`
}

func (b *docxBuilder) documentRels() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	for _, m := range b.media {
		fmt.Fprintf(&sb, "\n"+`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`, m.relID, m.name)
	}
	for _, l := range b.links {
		fmt.Fprintf(&sb, "\n"+`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="%s" TargetMode="External"/>`, l.relID, xmlEscape(l.url))
	}
	sb.WriteString("\n</Relationships>")
	return sb.String()
}

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="0"/><w:spacing w:before="360" w:after="160"/></w:pPr><w:rPr><w:b/><w:sz w:val="40"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="1"/><w:spacing w:before="320" w:after="140"/></w:pPr><w:rPr><w:b/><w:sz w:val="34"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="2"/><w:spacing w:before="280" w:after="120"/></w:pPr><w:rPr><w:b/><w:sz w:val="30"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="3"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading5"><w:name w:val="heading 5"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="4"/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading6"><w:name w:val="heading 6"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="5"/></w:pPr><w:rPr><w:b/><w:sz w:val="22"/></w:rPr></w:style>
</w:styles>`
