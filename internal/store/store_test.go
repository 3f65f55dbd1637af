package store_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mirefly/docharbor/internal/store"
)

func TestInitCreatesNamespaces(t *testing.T) {
	root := t.TempDir()
	s := store.New(root)
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, d := range []string{"configs", "documents", "assets", "locks"} {
		if _, err := os.Stat(filepath.Join(root, d)); err != nil {
			t.Fatalf("namespace %s missing: %v", d, err)
		}
	}
}

func TestInitConcurrent(t *testing.T) {
	root := t.TempDir()
	s := store.New(root)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Init()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent init: %v", err)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	in := map[string]string{"token": "abc", "base_url": "https://kb.example.com"}
	if err := s.PutConfig("primary", in); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out map[string]string
	if err := s.GetConfig("primary", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out["token"] != "abc" || out["base_url"] != "https://kb.example.com" {
		t.Fatalf("unexpected config: %v", out)
	}
}

func TestGetMissingConfigIsEmpty(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	out := map[string]string{}
	if err := s.GetConfig("nothing", &out); err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty config, got %v", out)
	}
}

func TestCorruptRecordRestoresFromBackup(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.PutDocument("d1", map[string]string{"title": "original"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	path := s.DocumentPath("d1", "json")

	// Simulate a crash mid-write: valid .bak, corrupt primary.
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(path+".bak", good, 0o644); err != nil {
		t.Fatalf("seed bak: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	var out map[string]string
	if err := s.GetDocument("d1", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out["title"] != "original" {
		t.Fatalf("expected backup content, got %v", out)
	}
	// The primary must have been healed from the backup.
	healed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read healed: %v", err)
	}
	if string(healed) != string(good) {
		t.Fatalf("primary not restored from backup")
	}
}

func TestCorruptRecordWithoutBackupIsEmpty(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	path := s.DocumentPath("d2", "json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("###"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := map[string]string{}
	if err := s.GetDocument("d2", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}

func TestBackupRemovedAfterSuccessfulWrite(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.PutDocument("d3", map[string]int{"v": 1}); err != nil {
		t.Fatalf("put 1: %v", err)
	}
	if err := s.PutDocument("d3", map[string]int{"v": 2}); err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if _, err := os.Stat(s.DocumentPath("d3", "json") + ".bak"); !os.IsNotExist(err) {
		t.Fatalf("expected .bak cleaned up, stat err=%v", err)
	}
}

func TestAssetRoundTripAndNotFound(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	data := []byte{0x89, 'P', 'N', 'G'}
	if err := s.PutAsset("src1", "doc1", "a.png", data); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	got, err := s.GetAsset("src1", "doc1", "a.png")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("asset bytes mismatch")
	}
	if _, err := s.GetAsset("src1", "doc1", "missing.png"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	path := s.ConfigPath("gone")
	if err := s.Delete(path); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := s.PutConfig("gone", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatalf("delete again: %v", err)
	}
}

func TestConcurrentWritesSamePathSerialized(t *testing.T) {
	s := store.New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.PutDocument("race", map[string]int{"n": n})
		}(i)
	}
	wg.Wait()
	var out map[string]int
	if err := s.GetDocument("race", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := out["n"]; !ok {
		t.Fatalf("expected a winning write, got %v", out)
	}
}
