// Package assets localizes externally-hosted media: every unique URL
// referenced by a document is downloaded once, stored under the
// (source, document, filename) triple, and the content reference is
// rewritten to the local address.
package assets

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mirefly/docharbor/internal/source"
	"github.com/mirefly/docharbor/internal/store"
)

// binaryExtensions are the attachment types an anchor href is allowed
// to pull in. Plain document links stay remote.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".bmp": true, ".ico": true,
	".pdf": true, ".zip": true, ".docx": true, ".xlsx": true, ".pptx": true,
	".mp4": true, ".mp3": true, ".mov": true,
}

var (
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\(\s*(https?://[^)\s]+)`)
	cardValueRe  = regexp.MustCompile(`(?:^|\s)value="([^"]*)"`)
	payloadURLRe = regexp.MustCompile(`"(?:src|url)"\s*:\s*"(https?://[^"]+)"`)
)

// Resolver downloads embedded media through the store.
type Resolver struct {
	store   *store.Store
	client  *http.Client
	log     *slog.Logger
	maxSize int64
}

// NewResolver builds a Resolver. A nil client gets a bounded default.
func NewResolver(st *store.Store, client *http.Client, log *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: st, client: client, log: log, maxSize: 64 << 20}
}

// Resolve finds remote media references in content, downloads each
// unique URL once, and rewrites every occurrence (literal and
// percent-encoded) to the stored asset's local address. A failed
// download leaves that reference untouched; the document still
// exports with a live remote link.
func (r *Resolver) Resolve(ctx context.Context, content string, format source.ContentFormat, sourceID, docID string) string {
	urls := r.extract(content, format)
	for _, remote := range urls {
		filename := FileNameForURL(remote)
		data, err := r.download(ctx, remote)
		if err != nil {
			r.log.Warn("asset download failed, keeping remote link",
				"url", remote, "doc", docID, "error", err)
			continue
		}
		if err := r.store.PutAsset(sourceID, docID, filename, data); err != nil {
			r.log.Warn("asset store failed, keeping remote link",
				"url", remote, "doc", docID, "error", err)
			continue
		}
		local := LocalAddress(sourceID, docID, filename)
		content = strings.ReplaceAll(content, remote, local)
		// The rich dialect embeds URLs inside percent-encoded JSON
		// attributes, so the encoded spelling must be rewritten too.
		encoded := url.QueryEscape(remote)
		if encoded != remote {
			content = strings.ReplaceAll(content, encoded, url.QueryEscape(local))
		}
	}
	return content
}

// extract returns the unique remote media URLs for the given format,
// in first-occurrence order.
func (r *Resolver) extract(content string, format source.ContentFormat) []string {
	var found []string
	switch format {
	case source.FormatPlainMarkup, "":
		for _, m := range mdImageRe.FindAllStringSubmatch(content, -1) {
			found = append(found, m[1])
		}
	case source.FormatStyledMarkup:
		found = extractStyled(content)
	case source.FormatRichCardMarkup:
		found = append(found, extractStyled(content)...)
		found = append(found, extractCardPayloads(content)...)
	}
	seen := make(map[string]bool, len(found))
	var unique []string
	for _, u := range found {
		u = strings.TrimRight(u, `"')`)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		unique = append(unique, u)
	}
	return unique
}

// extractStyled pulls img sources and binary-extension anchor targets
// out of a styled-markup body.
func extractStyled(content string) []string {
	docq, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var found []string
	docq.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && strings.HasPrefix(src, "http") {
			found = append(found, src)
		}
	})
	docq.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return
		}
		if u, err := url.Parse(href); err == nil {
			if binaryExtensions[strings.ToLower(path.Ext(u.Path))] {
				found = append(found, href)
			}
		}
	})
	return found
}

// extractCardPayloads decodes card value attributes far enough to see
// src/url fields inside the embedded JSON.
func extractCardPayloads(content string) []string {
	var found []string
	for _, m := range cardValueRe.FindAllStringSubmatch(content, -1) {
		decoded := m[1]
		if u, err := url.QueryUnescape(decoded); err == nil {
			decoded = u
		}
		for _, pm := range payloadURLRe.FindAllStringSubmatch(decoded, -1) {
			found = append(found, pm[1])
		}
	}
	return found
}

func (r *Resolver) download(ctx context.Context, remote string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// LocalAddress is the store-relative address written into content in
// place of a remote URL.
func LocalAddress(sourceID, docID, filename string) string {
	return path.Join("assets", sourceID, docID, filename)
}

// IsLocalAddress reports whether a reference points into the asset
// namespace rather than at a remote host.
func IsLocalAddress(ref string) bool {
	return strings.HasPrefix(ref, "assets/")
}

// FileNameForURL derives a stored filename from a URL's last path
// segment, URL-decoded. URLs without a usable segment fall back to a
// hash-derived name so every asset still gets a stable address.
func FileNameForURL(remote string) string {
	u, err := url.Parse(remote)
	if err == nil {
		segment := path.Base(u.Path)
		if decoded, derr := url.PathUnescape(segment); derr == nil {
			segment = decoded
		}
		if segment != "" && segment != "." && segment != "/" {
			return segment
		}
	}
	sum := sha1.Sum([]byte(remote))
	return fmt.Sprintf("asset-%x", sum[:8])
}
