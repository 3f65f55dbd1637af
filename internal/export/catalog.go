package export

import (
	"time"

	"github.com/google/uuid"

	"github.com/mirefly/docharbor/internal/source"
	"github.com/mirefly/docharbor/internal/store"
)

// catalogKey is the reserved document-namespace key the catalog record
// lives under. Document ids are remote UUIDs, so the name cannot
// collide.
const catalogKey = "catalog"

// FormatStatus records the outcome of one renderer for one document.
type FormatStatus string

const (
	StatusGenerated FormatStatus = "generated"
	StatusSkipped   FormatStatus = "skipped"
	StatusFailed    FormatStatus = "failed"
)

// CatalogEntry ties a local document id to its remote origin. Entries
// are created on first successful parse, updated on every re-export,
// and never deleted by the engine.
type CatalogEntry struct {
	LocalID    string                  `json:"local_id"`
	SourceID   string                  `json:"source_id"`
	RemoteID   string                  `json:"remote_id"`
	RemoteSlug string                  `json:"remote_slug,omitempty"`
	Title      string                  `json:"title"`
	Kind       source.NodeKind         `json:"kind"`
	ParentID   string                  `json:"parent_id,omitempty"`
	Formats    map[string]FormatStatus `json:"formats,omitempty"`
	SyncedAt   time.Time               `json:"synced_at"`
}

// Catalog is the persisted bookkeeping record for all exported nodes.
type Catalog struct {
	Entries []CatalogEntry `json:"entries"`
}

// LoadCatalog reads the catalog from the store. A missing or
// unrecoverable record yields an empty catalog.
func LoadCatalog(st *store.Store) (*Catalog, error) {
	var c Catalog
	if err := st.GetDocument(catalogKey, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the catalog back through the store's atomic path.
func (c *Catalog) Save(st *store.Store) error {
	return st.PutDocument(catalogKey, c)
}

// Lookup finds the entry for a remote node within one source.
func (c *Catalog) Lookup(sourceID, remoteID string) *CatalogEntry {
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.SourceID == sourceID && e.RemoteID == remoteID {
			return e
		}
	}
	return nil
}

// Upsert records an export outcome. The (sourceID, remoteID) pair is
// the stable identity: a re-export updates the existing entry in
// place and keeps its local id, so repeated runs never duplicate
// entries.
func (c *Catalog) Upsert(entry CatalogEntry) *CatalogEntry {
	if existing := c.Lookup(entry.SourceID, entry.RemoteID); existing != nil {
		entry.LocalID = existing.LocalID
		*existing = entry
		return existing
	}
	if entry.LocalID == "" {
		entry.LocalID = uuid.NewString()
	}
	c.Entries = append(c.Entries, entry)
	return &c.Entries[len(c.Entries)-1]
}
