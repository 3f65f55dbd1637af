// Package markup converts raw content bodies into the format-neutral
// document model. Three surface syntaxes are handled: plain structured
// markup (markdown), styled markup (an HTML tag tree with inline style
// attributes), and the rich card dialect where self-describing tags
// carry a JSON payload.
package markup

import (
	"fmt"

	"github.com/mirefly/docharbor/internal/doc"
	"github.com/mirefly/docharbor/internal/source"
)

// Parse converts one content body into document-model blocks. Content
// errors inside the body (bad card JSON, stray tags) degrade to
// dropped fragments; only an unusable format is an error.
func Parse(content string, format source.ContentFormat) ([]doc.Block, error) {
	switch format {
	case source.FormatPlainMarkup, "":
		return parseMarkdown(content)
	case source.FormatStyledMarkup:
		return parseStyled(content)
	case source.FormatRichCardMarkup:
		return parseRich(content)
	default:
		return nil, fmt.Errorf("unsupported content format %q", format)
	}
}
