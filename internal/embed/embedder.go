// Package embed turns every image block's external source into inline
// base64 data so rendered artifacts are viewable without network
// access.
package embed

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/mirefly/docharbor/internal/assets"
	"github.com/mirefly/docharbor/internal/doc"
	"github.com/mirefly/docharbor/internal/store"
)

const (
	// DefaultConcurrency bounds simultaneous downloads per document.
	DefaultConcurrency = 5

	defaultTimeout = 30 * time.Second

	// Images above this size still embed, but get logged.
	sizeWarnThreshold = 8 << 20
)

// Embedder resolves image blocks to inline data, local cache first,
// then the network through an optional proxy.
type Embedder struct {
	store       *store.Store
	client      *http.Client
	log         *slog.Logger
	concurrency int

	// proxyPrefix, when set, wraps remote fetches to sidestep
	// cross-origin restrictions: prefix + query-escaped target URL.
	proxyPrefix string
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithConcurrency sets the worker-pool size.
func WithConcurrency(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProxy routes remote fetches through a proxying downloader.
func WithProxy(prefix string) Option {
	return func(e *Embedder) { e.proxyPrefix = prefix }
}

// WithHTTPClient overrides the download client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedder) { e.client = c }
}

// NewEmbedder builds an Embedder over the given store.
func NewEmbedder(st *store.Store, log *slog.Logger, opts ...Option) *Embedder {
	if log == nil {
		log = slog.Default()
	}
	e := &Embedder{
		store:       st,
		client:      &http.Client{Timeout: defaultTimeout},
		log:         log,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedImages resolves every image block in blocks to inline data,
// mutating the blocks in place. Downloads run on a bounded worker
// pool; each outcome is recorded in the returned map keyed by the
// original source reference, so completion order never matters.
// Failed images get doc.FailedImageSrc instead of data.
func (e *Embedder) EmbedImages(ctx context.Context, blocks []doc.Block, sourceID, docID string) map[string]error {
	pending := e.collect(blocks)
	if len(pending) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		inline  = make(map[string]string, len(pending))
		outcome = make(map[string]error, len(pending))
		wg      sync.WaitGroup
		sem     = make(chan struct{}, e.concurrency)
	)
	for _, src := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(src string) {
			defer wg.Done()
			defer func() { <-sem }()
			data, mimeType, err := e.fetch(ctx, src, sourceID, docID)
			mu.Lock()
			defer mu.Unlock()
			outcome[src] = err
			if err != nil {
				e.log.Warn("image embed failed", "src", src, "doc", docID, "error", err)
				inline[src] = doc.FailedImageSrc
				return
			}
			if len(data) > sizeWarnThreshold {
				e.log.Warn("embedding oversized image", "src", src, "bytes", len(data))
			}
			inline[src] = fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
		}(src)
	}
	wg.Wait()

	doc.Walk(blocks, func(b *doc.Block) {
		if b.Kind != doc.KindImage {
			return
		}
		if replacement, ok := inline[b.Src]; ok {
			b.Src = replacement
		}
	})
	return outcome
}

// collect gathers the unique image sources that need embedding.
// Already-inline data and schemes other than http(s) or the local
// asset namespace are skipped.
func (e *Embedder) collect(blocks []doc.Block) []string {
	seen := make(map[string]bool)
	var pending []string
	doc.Walk(blocks, func(b *doc.Block) {
		if b.Kind != doc.KindImage || b.Src == "" || seen[b.Src] {
			return
		}
		if !embeddable(b.Src) {
			return
		}
		seen[b.Src] = true
		pending = append(pending, b.Src)
	})
	return pending
}

func embeddable(src string) bool {
	if strings.HasPrefix(src, "data:") {
		return false
	}
	if assets.IsLocalAddress(src) {
		return true
	}
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// fetch returns the image bytes and MIME type for one source,
// preferring the local asset cache over the network.
func (e *Embedder) fetch(ctx context.Context, src, sourceID, docID string) ([]byte, string, error) {
	filename := assets.FileNameForURL(src)
	if assets.IsLocalAddress(src) {
		filename = path.Base(src)
	}
	if data, err := e.store.GetAsset(sourceID, docID, filename); err == nil {
		return data, mimeForFilename(filename, ""), nil
	}
	if assets.IsLocalAddress(src) {
		return nil, "", fmt.Errorf("local asset missing: %s", src)
	}

	target := src
	if e.proxyPrefix != "" {
		target = e.proxyPrefix + url.QueryEscape(src)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return data, mimeForFilename(filename, resp.Header.Get("Content-Type")), nil
}

// mimeForFilename prefers the declared content type and falls back to
// the filename extension.
func mimeForFilename(filename, declared string) string {
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") && !strings.HasPrefix(declared, "text/plain") {
		if i := strings.Index(declared, ";"); i >= 0 {
			declared = declared[:i]
		}
		return strings.TrimSpace(declared)
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); t != "" {
		return t
	}
	return "image/png"
}
