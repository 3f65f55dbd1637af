package assets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mirefly/docharbor/internal/assets"
	"github.com/mirefly/docharbor/internal/source"
	"github.com/mirefly/docharbor/internal/store"
)

func newResolver(t *testing.T) (*assets.Resolver, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return assets.NewResolver(st, nil, nil), st
}

func TestResolveMarkdownImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	r, st := newResolver(t)
	content := "# Hi\n\n![x](" + srv.URL + "/a.png)"
	out := r.Resolve(context.Background(), content, source.FormatPlainMarkup, "s1", "d1")

	local := assets.LocalAddress("s1", "d1", "a.png")
	if !strings.Contains(out, "![x]("+local+")") {
		t.Fatalf("reference not rewritten: %q", out)
	}
	data, err := st.GetAsset("s1", "d1", "a.png")
	if err != nil || string(data) != "pngbytes" {
		t.Fatalf("asset not stored: %v %q", err, data)
	}
}

func TestResolveDedupesRepeatedURL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	r, _ := newResolver(t)
	u := srv.URL + "/same.png"
	content := "![a](" + u + ")\n\n![b](" + u + ")"
	out := r.Resolve(context.Background(), content, source.FormatPlainMarkup, "s1", "d1")

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 download, got %d", calls)
	}
	local := assets.LocalAddress("s1", "d1", "same.png")
	if strings.Count(out, local) != 2 {
		t.Fatalf("both occurrences should point at the local address: %q", out)
	}
}

func TestResolveFailureKeepsRemoteLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, _ := newResolver(t)
	content := "![x](" + srv.URL + "/gone.png)"
	out := r.Resolve(context.Background(), content, source.FormatPlainMarkup, "s1", "d1")
	if out != content {
		t.Fatalf("failed download must leave content unmodified: %q", out)
	}
}

func TestResolveStyledAnchorsAndImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bin"))
	}))
	defer srv.Close()

	r, _ := newResolver(t)
	content := `<p><img src="` + srv.URL + `/pic.png"></p>` +
		`<p><a href="` + srv.URL + `/sheet.xlsx">sheet</a></p>` +
		`<p><a href="` + srv.URL + `/page">page link</a></p>`
	out := r.Resolve(context.Background(), content, source.FormatStyledMarkup, "s1", "d1")

	if !strings.Contains(out, assets.LocalAddress("s1", "d1", "pic.png")) {
		t.Fatalf("img src not rewritten: %q", out)
	}
	if !strings.Contains(out, assets.LocalAddress("s1", "d1", "sheet.xlsx")) {
		t.Fatalf("binary anchor not rewritten: %q", out)
	}
	if !strings.Contains(out, srv.URL+"/page") {
		t.Fatalf("plain document link must stay remote: %q", out)
	}
}

func TestResolveRewritesEncodedCardPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	r, _ := newResolver(t)
	remote := srv.URL + "/card.png"
	payload := url.QueryEscape(`{"src":"` + remote + `"}`)
	content := `<card name="image" value="data:` + payload + `"></card>`
	out := r.Resolve(context.Background(), content, source.FormatRichCardMarkup, "s1", "d1")

	encodedLocal := url.QueryEscape(assets.LocalAddress("s1", "d1", "card.png"))
	if !strings.Contains(out, encodedLocal) {
		t.Fatalf("percent-encoded occurrence not rewritten: %q", out)
	}
}

func TestFileNameForURL(t *testing.T) {
	cases := map[string]string{
		"https://x/a/b/photo.png":      "photo.png",
		"https://x/a%20b/my%20pic.jpg": "my pic.jpg",
		"https://x/download?id=9":      "download",
	}
	for in, want := range cases {
		if got := assets.FileNameForURL(in); got != want {
			t.Errorf("FileNameForURL(%q) = %q, want %q", in, got, want)
		}
	}
	if got := assets.FileNameForURL("https://x/"); !strings.HasPrefix(got, "asset-") {
		t.Errorf("expected hash fallback, got %q", got)
	}
}
