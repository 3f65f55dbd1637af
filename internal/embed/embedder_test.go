package embed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mirefly/docharbor/internal/assets"
	"github.com/mirefly/docharbor/internal/doc"
	"github.com/mirefly/docharbor/internal/embed"
	"github.com/mirefly/docharbor/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return st
}

func TestEmbedFromLocalCache(t *testing.T) {
	st := newStore(t)
	if err := st.PutAsset("s1", "d1", "a.png", []byte{1, 2, 3}); err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	blocks := []doc.Block{doc.Image(assets.LocalAddress("s1", "d1", "a.png"))}
	e := embed.NewEmbedder(st, nil)
	outcome := e.EmbedImages(context.Background(), blocks, "s1", "d1")
	if err := outcome[assets.LocalAddress("s1", "d1", "a.png")]; err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !strings.HasPrefix(blocks[0].Src, "data:image/png;base64,") {
		t.Fatalf("expected inline data, got %q", blocks[0].Src)
	}
}

func TestEmbedRemoteFetchOnCacheMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	st := newStore(t)
	blocks := []doc.Block{doc.Image(srv.URL + "/pic.jpg")}
	e := embed.NewEmbedder(st, nil)
	e.EmbedImages(context.Background(), blocks, "s1", "d1")
	if !strings.HasPrefix(blocks[0].Src, "data:image/jpeg;base64,") {
		t.Fatalf("expected inline jpeg, got %q", blocks[0].Src)
	}
}

func TestEmbedFailureLeavesMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	st := newStore(t)
	src := srv.URL + "/missing.png"
	blocks := []doc.Block{doc.Image(src)}
	e := embed.NewEmbedder(st, nil)
	outcome := e.EmbedImages(context.Background(), blocks, "s1", "d1")
	if outcome[src] == nil {
		t.Fatal("expected an error outcome for the failed image")
	}
	if blocks[0].Src != doc.FailedImageSrc {
		t.Fatalf("expected failure marker, got %q", blocks[0].Src)
	}
}

func TestEmbedSkipsInlineAndForeignSchemes(t *testing.T) {
	st := newStore(t)
	blocks := []doc.Block{
		doc.Image("data:image/png;base64,AAAA"),
		doc.Image("file:///etc/passwd"),
	}
	e := embed.NewEmbedder(st, nil)
	outcome := e.EmbedImages(context.Background(), blocks, "s1", "d1")
	if len(outcome) != 0 {
		t.Fatalf("expected nothing to embed, got %v", outcome)
	}
	if blocks[0].Src != "data:image/png;base64,AAAA" || blocks[1].Src != "file:///etc/passwd" {
		t.Fatalf("skipped blocks must be untouched: %+v", blocks)
	}
}

func TestEmbedNestedImages(t *testing.T) {
	st := newStore(t)
	if err := st.PutAsset("s1", "d1", "n.png", []byte("n")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	blocks := []doc.Block{{
		Kind: doc.KindParagraph,
		Children: []doc.Block{
			doc.Paragraph("text"),
			doc.Image(assets.LocalAddress("s1", "d1", "n.png")),
		},
	}}
	e := embed.NewEmbedder(st, nil)
	e.EmbedImages(context.Background(), blocks, "s1", "d1")
	if !strings.HasPrefix(blocks[0].Children[1].Src, "data:") {
		t.Fatalf("nested image not embedded: %+v", blocks[0].Children[1])
	}
}

func TestEmbedBoundedConcurrency(t *testing.T) {
	const limit = 5
	var inflight, peak, total int32
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inflight, 1)
		mu.Lock()
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		atomic.AddInt32(&total, 1)
		defer atomic.AddInt32(&inflight, -1)
		if strings.HasSuffix(r.URL.Path, "7.png") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	var blocks []doc.Block
	srcs := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		src := srv.URL + "/img-" + string(rune('a'+i)) + "-" + strings.Repeat("7", i%2) + ".png"
		srcs = append(srcs, src)
		blocks = append(blocks, doc.Image(src))
	}

	st := newStore(t)
	e := embed.NewEmbedder(st, nil, embed.WithConcurrency(limit))
	outcome := e.EmbedImages(context.Background(), blocks, "s1", "d1")

	if len(outcome) != 20 {
		t.Fatalf("expected 20 results, got %d", len(outcome))
	}
	for _, src := range srcs {
		if _, ok := outcome[src]; !ok {
			t.Fatalf("missing outcome for %s", src)
		}
	}
	mu.Lock()
	p := peak
	mu.Unlock()
	if p > limit {
		t.Fatalf("concurrency exceeded: peak=%d limit=%d", p, limit)
	}
}
