package source

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// NodeKind classifies a table-of-contents entry.
type NodeKind string

const (
	NodeContainer    NodeKind = "container"
	NodeDocument     NodeKind = "document"
	NodeExternalLink NodeKind = "external_link"
)

// TocNode is one entry of the remote table-of-contents tree.
type TocNode struct {
	UUID       string   `json:"uuid"`
	Kind       NodeKind `json:"kind"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug,omitempty"`
	ParentUUID string   `json:"parent_uuid,omitempty"`

	// Depth is derived locally by walking ParentUUID chains; 0 at root.
	Depth int `json:"depth"`
}

// ContentFormat declares which surface syntax a raw document body uses.
type ContentFormat string

const (
	FormatPlainMarkup    ContentFormat = "plain"
	FormatRichCardMarkup ContentFormat = "rich"
	FormatStyledMarkup   ContentFormat = "styled"
)

// Author identifies the remote document author.
type Author struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// RawDocument is the remote record for one document node. Depending on
// the format the source may supply BodyRich, BodyMarkup, or both.
type RawDocument struct {
	ID         string        `json:"id"`
	Slug       string        `json:"slug"`
	Title      string        `json:"title"`
	Format     ContentFormat `json:"format"`
	BodyRich   string        `json:"body_rich,omitempty"`
	BodyMarkup string        `json:"body_markup,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Author     Author        `json:"author"`
}

// Body returns the content to parse. When the source supplies two
// parallel bodies the rich body wins; the markup body is the fallback.
func (d *RawDocument) Body() (string, ContentFormat) {
	if d.BodyRich != "" {
		format := d.Format
		if format == "" {
			format = FormatRichCardMarkup
		}
		return d.BodyRich, format
	}
	return d.BodyMarkup, FormatPlainMarkup
}

// Config identifies one remote knowledge-base source and how to reach
// it. Persisted in the store's config namespace.
type Config struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	Token   string `json:"token" yaml:"token"`
	// Namespace is the remote repo/book identifier, e.g. "team/handbook".
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Validate checks the fields required to reach the remote source.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Namespace, validation.Required),
	)
}

// ResolveDepths fills in Depth for every node by walking ParentUUID
// chains to the root. A ParentUUID that does not resolve within the
// same fetch marks the node as root-level. Cycles terminate at the
// node count.
func ResolveDepths(nodes []TocNode) {
	byUUID := make(map[string]*TocNode, len(nodes))
	for i := range nodes {
		byUUID[nodes[i].UUID] = &nodes[i]
	}
	for i := range nodes {
		depth := 0
		parent := nodes[i].ParentUUID
		for parent != "" && depth < len(nodes) {
			p, ok := byUUID[parent]
			if !ok {
				// Orphaned link: the chain ends here and the node
				// keeps whatever depth it accumulated.
				break
			}
			depth++
			parent = p.ParentUUID
		}
		nodes[i].Depth = depth
	}
}
