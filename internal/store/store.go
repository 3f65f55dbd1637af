package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates the requested key has no stored value.
var ErrNotFound = errors.New("store: not found")

const (
	dirConfigs   = "configs"
	dirDocuments = "documents"
	dirAssets    = "assets"
	dirLocks     = "locks"
)

// Store is a directory-addressed key-value store with per-path
// locking and a .bak-based crash-safety protocol. It is the only
// component that touches on-disk bytes.
type Store struct {
	root  string
	locks *lockManager
}

// New returns a Store rooted at dir. Call Init before first use.
func New(dir string) *Store {
	return &Store{root: dir, locks: newLockManager()}
}

// Root returns the data directory the store was created with.
func (s *Store) Root() string { return s.root }

// Init creates the namespace directories. It is idempotent and safe
// to call concurrently from multiple goroutines at process start.
func (s *Store) Init() error {
	for _, d := range []string{dirConfigs, dirDocuments, dirAssets, dirLocks} {
		if err := os.MkdirAll(filepath.Join(s.root, d), 0o755); err != nil {
			return fmt.Errorf("init store dir %s: %w", d, err)
		}
	}
	return nil
}

// ConfigPath returns the path of a named configuration blob.
func (s *Store) ConfigPath(name string) string {
	return filepath.Join(s.root, dirConfigs, sanitize(name)+".json")
}

// DocumentPath returns the path of a document record. ext selects the
// sidecar ("json", "html", "pdf", "docx").
func (s *Store) DocumentPath(docID, ext string) string {
	return filepath.Join(s.root, dirDocuments, sanitize(docID)+"."+ext)
}

// AssetPath returns the path of a binary asset addressed by the
// (sourceID, docID, filename) triple.
func (s *Store) AssetPath(sourceID, docID, filename string) string {
	return filepath.Join(s.root, dirAssets, sanitize(sourceID), sanitize(docID), sanitize(filename))
}

// PutConfig persists a named configuration blob as indented JSON.
func (s *Store) PutConfig(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config %s: %w", name, err)
	}
	return s.put(s.ConfigPath(name), b)
}

// GetConfig reads a named configuration blob into v. A missing or
// unrecoverable file leaves v untouched and returns nil so callers see
// an empty config rather than an error.
func (s *Store) GetConfig(name string, v any) error {
	return s.getJSON(s.ConfigPath(name), v)
}

// DeleteConfig removes a named configuration blob. Deleting a missing
// config is not an error.
func (s *Store) DeleteConfig(name string) error {
	return s.Delete(s.ConfigPath(name))
}

// ListConfigs returns the names of all stored configuration blobs.
func (s *Store) ListConfigs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, dirConfigs))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list configs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

// PutDocument persists a document record as indented JSON.
func (s *Store) PutDocument(docID string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", docID, err)
	}
	return s.put(s.DocumentPath(docID, "json"), b)
}

// GetDocument reads a document record into v with the same empty-on-
// missing semantics as GetConfig.
func (s *Store) GetDocument(docID string, v any) error {
	return s.getJSON(s.DocumentPath(docID, "json"), v)
}

// PutSidecar writes a rendered artifact (html, pdf, docx) next to the
// document record.
func (s *Store) PutSidecar(docID, ext string, data []byte) error {
	return s.put(s.DocumentPath(docID, ext), data)
}

// PutAsset stores a binary asset. Re-saving the same triple overwrites
// the previous bytes (last write wins).
func (s *Store) PutAsset(sourceID, docID, filename string, data []byte) error {
	return s.put(s.AssetPath(sourceID, docID, filename), data)
}

// GetAsset reads a binary asset. Missing assets return ErrNotFound.
func (s *Store) GetAsset(sourceID, docID, filename string) ([]byte, error) {
	b, err := os.ReadFile(s.AssetPath(sourceID, docID, filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return b, nil
}

// Exists reports whether a file exists at the given store path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes the file at path. Deleting a missing file is not an
// error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// put serializes all writers to a path behind its lock, keeps a .bak
// of the previous content for the duration of the write, and renames
// a temp file into place so readers never observe a torn write. On
// failure the .bak is left behind for the recovery path in getJSON.
func (s *Store) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	unlock, err := s.locks.acquire(s.lockPath(path))
	if err != nil {
		return err
	}
	defer unlock()

	bak := path + ".bak"
	hadPrev := false
	if prev, err := os.ReadFile(path); err == nil {
		hadPrev = true
		if err := os.WriteFile(bak, prev, 0o644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	if hadPrev {
		_ = os.Remove(bak)
	}
	return nil
}

// getJSON reads and decodes a JSON file. A decode failure triggers a
// one-time restore from the .bak sibling; without a backup the caller
// gets the zero value back instead of an error.
func (s *Store) getJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if json.Unmarshal(b, v) == nil {
		return nil
	}
	// Corrupt primary: try the backup once.
	bak, bakErr := os.ReadFile(path + ".bak")
	if bakErr != nil {
		return nil
	}
	if err := json.Unmarshal(bak, v); err != nil {
		return nil
	}
	// Backup decoded: promote it over the corrupt primary.
	_ = os.WriteFile(path, bak, 0o644)
	return nil
}

func (s *Store) lockPath(target string) string {
	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		rel = filepath.Base(target)
	}
	name := strings.NewReplacer(string(filepath.Separator), "_", ":", "_").Replace(rel)
	return filepath.Join(s.root, dirLocks, name+".lock")
}

// sanitize strips path separators and parent references from a key
// segment so keys cannot escape their namespace directory.
func sanitize(segment string) string {
	segment = strings.ReplaceAll(segment, "..", "")
	segment = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, segment)
	if segment == "" {
		segment = "_"
	}
	return segment
}
