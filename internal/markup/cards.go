package markup

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/mirefly/docharbor/internal/doc"
)

// cardTagRe matches one self-describing card tag. The name attribute
// declares the card type and the value attribute carries the encoded
// JSON payload. Both self-closing and paired forms occur in the wild.
var cardTagRe = regexp.MustCompile(`(?s)<card\b[^>]*?>(?:.*?</card>)?|<card\b[^>]*?/>`)

// Anchored on preceding whitespace so attributes like data-name or
// data-value never masquerade as the real ones.
var (
	cardNameRe  = regexp.MustCompile(`(?:^|\s)name="([^"]*)"`)
	cardValueRe = regexp.MustCompile(`(?:^|\s)value="([^"]*)"`)
)

// parseRich splits rich-dialect content into card tags and the styled
// markup between them, in document order.
func parseRich(content string) ([]doc.Block, error) {
	var blocks []doc.Block
	last := 0
	for _, loc := range cardTagRe.FindAllStringIndex(content, -1) {
		if between := content[last:loc[0]]; strings.TrimSpace(between) != "" {
			bs, err := parseStyled(between)
			if err == nil {
				blocks = append(blocks, bs...)
			}
		}
		if b, ok := parseCard(content[loc[0]:loc[1]]); ok {
			blocks = append(blocks, b)
		}
		last = loc[1]
	}
	if rest := content[last:]; strings.TrimSpace(rest) != "" {
		bs, err := parseStyled(rest)
		if err == nil {
			blocks = append(blocks, bs...)
		}
	}
	return blocks, nil
}

// parseCard converts one card tag into a block. Unknown card types,
// unparsable payloads, and payloads missing a required field yield
// (zero, false) so the surrounding parse keeps going.
func parseCard(tag string) (doc.Block, bool) {
	name := firstSubmatch(cardNameRe, tag)
	value := firstSubmatch(cardValueRe, tag)
	if name == "" || value == "" {
		return doc.Block{}, false
	}
	payload, ok := decodeCardPayload(value)
	if !ok {
		return doc.Block{}, false
	}
	switch name {
	case "image":
		return imageCard(payload)
	case "code", "codeblock":
		return codeCard(payload)
	case "table":
		return tableCard(payload)
	case "file", "attachment":
		return fileCard(payload)
	case "video":
		return videoCard(payload)
	case "link", "bookmarklink":
		return linkCard(payload)
	default:
		return doc.Block{}, false
	}
}

// decodeCardPayload applies HTML entity decoding, then percent
// decoding, then JSON parsing. The order matters: producers may
// double-encode, entity-escaping an already percent-encoded payload.
func decodeCardPayload(value string) (map[string]any, bool) {
	s := html.UnescapeString(value)
	if decoded, err := url.QueryUnescape(s); err == nil {
		s = decoded
	}
	s = strings.TrimPrefix(s, "data:")
	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// lookupString walks the payload in precedence order and returns the
// first non-empty string match. Keys may be dotted paths ("data.src").
func lookupString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		cur := any(payload)
		ok := true
		for _, part := range strings.Split(key, ".") {
			m, isMap := cur.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			cur, ok = m[part]
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		if s, isStr := cur.(string); isStr && s != "" {
			return s
		}
	}
	return ""
}

func lookupInt(payload map[string]any, keys ...string) int {
	for _, key := range keys {
		if v, ok := payload[key]; ok {
			switch n := v.(type) {
			case float64:
				return int(n)
			case string:
				var i int
				if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
					return i
				}
			}
		}
	}
	return 0
}

func imageCard(payload map[string]any) (doc.Block, bool) {
	src := lookupString(payload, "src", "data.src", "url")
	if src == "" {
		return doc.Block{}, false
	}
	b := doc.Image(src)
	b.Width = lookupInt(payload, "width", "originWidth")
	b.Height = lookupInt(payload, "height", "originHeight")
	b.Alt = lookupString(payload, "alt", "name", "title")
	return b, true
}

func codeCard(payload map[string]any) (doc.Block, bool) {
	code := lookupString(payload, "code", "data.code", "content")
	if code == "" {
		return doc.Block{}, false
	}
	return doc.CodeBlock(code, lookupString(payload, "mode", "language", "lang")), true
}

// tableCard accepts rows either as an array of arrays or as an array
// of {"cells": [...]} objects. The first row is the header.
func tableCard(payload map[string]any) (doc.Block, bool) {
	rawRows, ok := payload["rows"].([]any)
	if !ok || len(rawRows) == 0 {
		return doc.Block{}, false
	}
	var rows []doc.TableRow
	for _, rr := range rawRows {
		var cells []doc.TableCell
		switch row := rr.(type) {
		case []any:
			for _, c := range row {
				cells = append(cells, doc.TableCell{Text: stringify(c)})
			}
		case map[string]any:
			inner, ok := row["cells"].([]any)
			if !ok {
				continue
			}
			for _, c := range inner {
				cells = append(cells, doc.TableCell{Text: stringify(c)})
			}
		}
		if len(cells) > 0 {
			rows = append(rows, doc.TableRow{Cells: cells})
		}
	}
	if len(rows) == 0 {
		return doc.Block{}, false
	}
	return doc.Block{Kind: doc.KindTable, Rows: rows}, true
}

func fileCard(payload map[string]any) (doc.Block, bool) {
	name := lookupString(payload, "name", "title")
	fileURL := lookupString(payload, "url", "src")
	if name == "" || fileURL == "" {
		return doc.Block{}, false
	}
	label := name
	if size := lookupInt(payload, "size"); size > 0 {
		label = fmt.Sprintf("%s (%s)", name, formatFileSize(int64(size)))
	}
	return doc.StyledParagraph(doc.Run{Text: label, Href: fileURL}), true
}

func videoCard(payload map[string]any) (doc.Block, bool) {
	videoURL := lookupString(payload, "url", "src")
	if videoURL == "" {
		return doc.Block{}, false
	}
	title := lookupString(payload, "title", "name")
	if title == "" {
		title = videoURL
	}
	b := doc.StyledParagraph(doc.Run{Text: title, Href: videoURL})
	if poster := lookupString(payload, "poster", "coverUrl"); poster != "" {
		b = doc.Block{Kind: doc.KindParagraph, Children: []doc.Block{
			doc.StyledParagraph(doc.Run{Text: title, Href: videoURL}),
			doc.Image(poster),
		}}
	}
	return b, true
}

func linkCard(payload map[string]any) (doc.Block, bool) {
	linkURL := lookupString(payload, "url", "src")
	if linkURL == "" {
		return doc.Block{}, false
	}
	title := lookupString(payload, "title", "name")
	if title == "" {
		title = linkURL
	}
	runs := []doc.Run{{Text: title, Href: linkURL}}
	if desc := lookupString(payload, "description", "detail"); desc != "" {
		runs = append(runs, doc.Run{Text: " - " + desc})
	}
	return doc.StyledParagraph(runs...), true
}

var fileSizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// formatFileSize renders a byte count as "{value:.2f} {unit}".
func formatFileSize(size int64) string {
	v := float64(size)
	unit := 0
	for v >= 1024 && unit < len(fileSizeUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, fileSizeUnits[unit])
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case bool:
		return fmt.Sprintf("%t", s)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
