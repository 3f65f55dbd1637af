// Package export drives the end-to-end pipeline for one source: walk
// the remote table of contents, pull each document, resolve its
// assets, parse it, embed images, render every requested format, and
// persist the results. Individual document failures are tallied and
// reported; only credential problems and a failed TOC fetch abort the
// whole run.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mirefly/docharbor/internal/assets"
	"github.com/mirefly/docharbor/internal/doc"
	"github.com/mirefly/docharbor/internal/embed"
	"github.com/mirefly/docharbor/internal/markup"
	"github.com/mirefly/docharbor/internal/render"
	"github.com/mirefly/docharbor/internal/source"
	"github.com/mirefly/docharbor/internal/store"
)

// maxFailureSamples bounds the failure-reason list carried in the
// summary; the full stream still reaches the progress sink.
const maxFailureSamples = 10

// DocumentRecord is the persisted structured form of one exported
// document: the parsed model plus remote metadata. Image sources in
// Blocks are local asset addresses, not inline data, so the record
// stays compact and byte-stable across re-exports.
type DocumentRecord struct {
	ID        string        `json:"id"`
	SourceID  string        `json:"source_id"`
	Slug      string        `json:"slug,omitempty"`
	Title     string        `json:"title"`
	Author    source.Author `json:"author"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Blocks    []doc.Block   `json:"blocks"`
}

// Summary is the final tally returned to the caller.
type Summary struct {
	Containers     int      `json:"containers"`
	Succeeded      int      `json:"succeeded"`
	Failed         int      `json:"failed"`
	FailureReasons []string `json:"failure_reasons,omitempty"`
}

func (s *Summary) recordFailure(reason string) {
	s.Failed++
	if len(s.FailureReasons) < maxFailureSamples {
		s.FailureReasons = append(s.FailureReasons, reason)
	}
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	store    *store.Store
	client   *source.Client
	resolver *assets.Resolver
	embedder *embed.Embedder
	log      *slog.Logger

	formats       []render.Format
	renderTimeout time.Duration
	now           func() time.Time

	// forFormat is swappable for tests.
	forFormat func(render.Format) (render.Renderer, error)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithFormats selects which renderers run; default is HTML and DOCX.
// PDF is opt-in because it needs an external converter binary.
func WithFormats(formats ...render.Format) OrchestratorOption {
	return func(o *Orchestrator) { o.formats = formats }
}

// WithRenderTimeout bounds each renderer invocation.
func WithRenderTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.renderTimeout = d }
}

// WithEmbedder overrides the image embedder (used in tests to pin the
// HTTP client and concurrency).
func WithEmbedder(e *embed.Embedder) OrchestratorOption {
	return func(o *Orchestrator) { o.embedder = e }
}

// WithResolver overrides the asset resolver.
func WithResolver(r *assets.Resolver) OrchestratorOption {
	return func(o *Orchestrator) { o.resolver = r }
}

// New builds an Orchestrator over the given store and remote client.
func New(st *store.Store, client *source.Client, log *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		store:         st,
		client:        client,
		resolver:      assets.NewResolver(st, nil, log),
		embedder:      embed.NewEmbedder(st, log),
		log:           log,
		formats:       []render.Format{render.FormatHTML, render.FormatDOCX},
		renderTimeout: 2 * time.Minute,
		now:           time.Now,
		forFormat:     render.ForFormat,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Export runs the full pipeline for one source. The returned error is
// non-nil only for run-aborting conditions: invalid config, storage
// bootstrap failure, a failed TOC fetch, or rejected credentials.
// Per-document failures land in the summary instead.
func (o *Orchestrator) Export(ctx context.Context, cfg source.Config, sink ProgressSink) (*Summary, error) {
	if sink == nil {
		sink = NopSink()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("source config: %w", err)
	}
	if err := o.store.Init(); err != nil {
		return nil, err
	}

	sink.Publish(Event{Message: fmt.Sprintf("Fetching table of contents for %s", cfg.Name), Level: LevelInfo})
	toc, err := o.client.FetchTOC(ctx, cfg)
	if err != nil {
		sink.Publish(Event{Message: "Table of contents fetch failed: " + err.Error(), Level: LevelError})
		return nil, fmt.Errorf("fetch toc: %w", err)
	}

	catalog, err := LoadCatalog(o.store)
	if err != nil {
		return nil, err
	}

	// Parents before children: containers at depth d precede their
	// depth d+1 members after a stable sort.
	sort.SliceStable(toc, func(i, j int) bool { return toc[i].Depth < toc[j].Depth })

	summary := &Summary{}
	for _, node := range toc {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		switch node.Kind {
		case source.NodeContainer:
			o.exportContainer(catalog, cfg, node)
			summary.Containers++
			if err := catalog.Save(o.store); err != nil {
				return summary, err
			}
			sink.Publish(Event{Message: "Folder " + node.Title, Level: LevelInfo})
		case source.NodeDocument:
			if err := o.exportDocument(ctx, catalog, cfg, node, sink); err != nil {
				if isAbort(err) {
					sink.Publish(Event{Message: "Export aborted: " + err.Error(), Level: LevelError})
					return summary, err
				}
				summary.recordFailure(fmt.Sprintf("%s: %v", node.Title, err))
				sink.Publish(Event{Message: fmt.Sprintf("Failed %s: %v", node.Title, err), Level: LevelError})
				continue
			}
			summary.Succeeded++
			// Persist the catalog while the document's entry is fresh:
			// an abort later in the run must not lose completed work.
			if err := catalog.Save(o.store); err != nil {
				return summary, err
			}
			sink.Publish(Event{Message: "Exported " + node.Title, Level: LevelSuccess})
		default:
			// External links carry no exportable content.
			o.log.Debug("skipping node", "kind", node.Kind, "title", node.Title)
		}
	}

	sink.Publish(Event{
		Message: fmt.Sprintf("Done: %d succeeded, %d failed", summary.Succeeded, summary.Failed),
		Level:   LevelInfo,
	})
	return summary, nil
}

// isAbort reports whether a document-level error must stop the whole
// run. Credential rejections will fail every remaining document the
// same way, so continuing is pointless.
func isAbort(err error) bool {
	var authErr *source.AuthError
	var forbiddenErr *source.ForbiddenError
	return errors.As(err, &authErr) || errors.As(err, &forbiddenErr)
}

func (o *Orchestrator) exportContainer(catalog *Catalog, cfg source.Config, node source.TocNode) {
	catalog.Upsert(CatalogEntry{
		SourceID: cfg.ID,
		RemoteID: node.UUID,
		Title:    node.Title,
		Kind:     source.NodeContainer,
		ParentID: node.ParentUUID,
		SyncedAt: o.now(),
	})
}

// exportDocument walks one document through every pipeline stage.
func (o *Orchestrator) exportDocument(ctx context.Context, catalog *Catalog, cfg source.Config, node source.TocNode, sink ProgressSink) error {
	idOrSlug := node.Slug
	if idOrSlug == "" {
		idOrSlug = node.UUID
	}
	raw, err := o.client.FetchDocument(ctx, cfg, idOrSlug)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	body, format := raw.Body()
	resolved := o.resolver.Resolve(ctx, body, format, cfg.ID, raw.ID)

	blocks, err := markup.Parse(resolved, format)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	// Snapshot the model before embedding: the persisted record keeps
	// local asset addresses, while the renderers get inline data.
	record := DocumentRecord{
		ID:        raw.ID,
		SourceID:  cfg.ID,
		Slug:      raw.Slug,
		Title:     raw.Title,
		Author:    raw.Author,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		Blocks:    cloneBlocks(blocks),
	}

	outcomes := o.embedder.EmbedImages(ctx, blocks, cfg.ID, raw.ID)
	for src, err := range outcomes {
		if err != nil {
			o.log.Warn("image embed failed", "doc", raw.ID, "src", src, "error", err)
		}
	}

	statuses := make(map[string]FormatStatus, len(o.formats))
	opts := render.Options{Title: raw.Title, Author: raw.Author.Name, Timeout: o.renderTimeout}
	for _, f := range o.formats {
		renderer, err := o.forFormat(f)
		if err != nil {
			statuses[string(f)] = StatusSkipped
			continue
		}
		data, err := render.WithTimeout(ctx, renderer, blocks, opts)
		if err != nil {
			statuses[string(f)] = StatusFailed
			sink.Publish(Event{
				Message: fmt.Sprintf("%s render failed for %s: %v", f, raw.Title, err),
				Level:   LevelError,
			})
			continue
		}
		if err := o.store.PutSidecar(raw.ID, string(f), data); err != nil {
			statuses[string(f)] = StatusFailed
			continue
		}
		statuses[string(f)] = StatusGenerated
	}

	if err := o.store.PutDocument(raw.ID, record); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	catalog.Upsert(CatalogEntry{
		SourceID:   cfg.ID,
		RemoteID:   node.UUID,
		RemoteSlug: raw.Slug,
		Title:      raw.Title,
		Kind:       source.NodeDocument,
		ParentID:   node.ParentUUID,
		Formats:    statuses,
		SyncedAt:   o.now(),
	})
	return nil
}

// cloneBlocks deep-copies a model through its JSON form so embedding
// cannot reach into the persisted snapshot.
func cloneBlocks(blocks []doc.Block) []doc.Block {
	b, err := json.Marshal(blocks)
	if err != nil {
		return blocks
	}
	var out []doc.Block
	if err := json.Unmarshal(b, &out); err != nil {
		return blocks
	}
	return out
}
