package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirefly/docharbor/internal/source"
)

func testConfig(baseURL string) source.Config {
	return source.Config{
		ID:        "src1",
		Name:      "Test KB",
		BaseURL:   baseURL,
		Token:     "tok",
		Namespace: "team/handbook",
	}
}

func TestFetchTOCResolvesDepths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/team/handbook/toc" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"uuid":"c1","kind":"container","title":"Guide"},
			{"uuid":"d1","kind":"document","title":"Intro","slug":"intro","parent_uuid":"c1"},
			{"uuid":"d2","kind":"document","title":"Deep","slug":"deep","parent_uuid":"d1"},
			{"uuid":"dx","kind":"document","title":"Orphan","slug":"orphan","parent_uuid":"nope"}
		]}`))
	}))
	defer srv.Close()

	c := source.NewClient(5*time.Second, 1, 0, 0)
	nodes, err := c.FetchTOC(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("fetch toc: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	depths := map[string]int{}
	for _, n := range nodes {
		depths[n.UUID] = n.Depth
	}
	if depths["c1"] != 0 || depths["d1"] != 1 || depths["d2"] != 2 {
		t.Fatalf("unexpected depths: %v", depths)
	}
	if depths["dx"] != 0 {
		t.Fatalf("orphan should be root-level, got depth %d", depths["dx"])
	}
}

func TestFetchDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"42","slug":"intro","title":"Intro","format":"plain","body_markup":"# Hi"}}`))
	}))
	defer srv.Close()

	c := source.NewClient(5*time.Second, 1, 0, 0)
	d, err := c.FetchDocument(context.Background(), testConfig(srv.URL), "intro")
	if err != nil {
		t.Fatalf("fetch document: %v", err)
	}
	if d.ID != "42" || d.Title != "Intro" {
		t.Fatalf("unexpected document: %+v", d)
	}
	body, format := d.Body()
	if body != "# Hi" || format != source.FormatPlainMarkup {
		t.Fatalf("unexpected body %q format %q", body, format)
	}
}

func TestBodyPrefersRich(t *testing.T) {
	d := &source.RawDocument{
		Format:     source.FormatRichCardMarkup,
		BodyRich:   "<p>rich</p>",
		BodyMarkup: "# markup",
	}
	body, format := d.Body()
	if body != "<p>rich</p>" || format != source.FormatRichCardMarkup {
		t.Fatalf("expected rich body preferred, got %q / %q", body, format)
	}
}

func TestRetryOn500ThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := source.NewClient(5*time.Second, 3, time.Millisecond, 10*time.Millisecond)
	if _, err := c.FetchTOC(context.Background(), testConfig(srv.URL)); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad token","code":"invalid_token"}}`))
	}))
	defer srv.Close()

	c := source.NewClient(5*time.Second, 3, time.Millisecond, 10*time.Millisecond)
	_, err := c.FetchTOC(context.Background(), testConfig(srv.URL))
	var authErr *source.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("auth errors must not be retried, got %d attempts", n)
	}
}

func TestRateLimitRetriedWithRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := source.NewClient(5*time.Second, 2, time.Millisecond, 10*time.Millisecond)
	if _, err := c.FetchTOC(context.Background(), testConfig(srv.URL)); err != nil {
		t.Fatalf("expected success after 429 retry, got %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	c := source.NewClient(time.Second, 1, 0, 0)
	_, err := c.FetchTOC(context.Background(), source.Config{ID: "x"})
	if err == nil {
		t.Fatal("expected validation error for missing base_url")
	}
}
