package static

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/rulecrawl/pkg/render"
)

// readTestdata reads a file from the testdata directory
func readTestdata(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to read testdata %s: %v", filename, err)
	}
	return string(data)
}

func parseContact(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseDocument("https://acme.example/contact/", readTestdata(t, "contact.html"))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	return doc
}

// --- Document Tests ---

func TestDocument_QueryStructural_GroupInDocumentOrder(t *testing.T) {
	doc := parseContact(t)

	els, err := doc.QueryStructural("h1, .business-name")
	if err != nil {
		t.Fatalf("QueryStructural() error = %v", err)
	}

	if len(els) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(els))
	}
	if els[0].Text != "Acme Corp" || els[1].Text != "Acme Widgets" {
		t.Errorf("unexpected elements: %+v", els)
	}
}

func TestDocument_QueryStructural_AttributeFallback(t *testing.T) {
	doc := parseContact(t)

	els, err := doc.QueryStructural("img")
	if err != nil {
		t.Fatalf("QueryStructural() error = %v", err)
	}

	if len(els) != 1 || els[0].Value() != "/logo.png" {
		t.Errorf("expected src fallback, got %+v", els)
	}
}

func TestDocument_QueryStructural_InvalidSelector(t *testing.T) {
	doc := parseContact(t)

	_, err := doc.QueryStructural("h1[")
	if !errors.Is(err, render.ErrInvalidExpression) {
		t.Errorf("expected ErrInvalidExpression, got %v", err)
	}
}

func TestDocument_QueryTreePath_Elements(t *testing.T) {
	doc := parseContact(t)

	els, err := doc.QueryTreePath("//nav/a")
	if err != nil {
		t.Fatalf("QueryTreePath() error = %v", err)
	}

	if len(els) != 6 {
		t.Fatalf("expected 6 anchors, got %d", len(els))
	}
	if els[0].Text != "About" || els[0].Href != "/about" {
		t.Errorf("unexpected first anchor: %+v", els[0])
	}
}

func TestDocument_QueryTreePath_Attribute(t *testing.T) {
	doc := parseContact(t)

	els, err := doc.QueryTreePath("//img/@src")
	if err != nil {
		t.Fatalf("QueryTreePath() error = %v", err)
	}

	if len(els) != 1 || els[0].Value() != "/logo.png" {
		t.Errorf("unexpected attribute result: %+v", els)
	}
}

func TestDocument_QueryTreePath_Invalid(t *testing.T) {
	doc := parseContact(t)

	_, err := doc.QueryTreePath("//a[")
	if !errors.Is(err, render.ErrInvalidExpression) {
		t.Errorf("expected ErrInvalidExpression, got %v", err)
	}
}

func TestDocument_Links_Resolved(t *testing.T) {
	doc := parseContact(t)

	links := doc.Links()
	want := []string{
		"https://acme.example/about",
		"https://acme.example/contact/products/list",
		"https://acme.example/contact/#top",
		"mailto:sales@acme.example",
		"https://other.example/page",
		"https://acme.example/contact/",
	}

	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestDocument_Links_BaseHref(t *testing.T) {
	doc, err := ParseDocument("https://a.example/x/y", `<html><head><base href="https://cdn.example/root/"></head><body><a href="page">p</a></body></html>`)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	links := doc.Links()
	if len(links) != 1 || links[0] != "https://cdn.example/root/page" {
		t.Errorf("unexpected links: %v", links)
	}
}

// --- Provider Tests ---

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	page := readTestdata(t, "contact.html")

	mux := http.NewServeMux()
	mux.HandleFunc("/contact/", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != render.DefaultUserAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/contact/", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body><h1>Not Found</h1></body></html>"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func openSession(t *testing.T, p *Provider) render.Session {
	t.Helper()
	s, err := p.OpenSession(context.Background(), render.SessionOptions{})
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProvider_Navigate_Captures(t *testing.T) {
	srv := newServer(t)
	p := New(DefaultConfig())
	s := openSession(t, p)
	ctx := context.Background()

	if err := s.Navigate(ctx, srv.URL+"/contact/", render.NavigateOptions{Wait: render.WaitNetworkIdle}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	dom, err := s.DOMSnapshot(ctx)
	if err != nil || dom == "" {
		t.Fatalf("DOMSnapshot() = %d bytes, %v", len(dom), err)
	}
	raw, _ := s.RawSource(ctx)
	if raw != dom {
		t.Error("static raw source should equal DOM")
	}

	els, err := s.QueryStructural(ctx, "h1")
	if err != nil || len(els) != 1 {
		t.Fatalf("QueryStructural() = %v, %v", els, err)
	}

	links, err := s.ExtractLinks(ctx)
	if err != nil {
		t.Fatalf("ExtractLinks() error = %v", err)
	}
	if len(links) == 0 || links[0] != srv.URL+"/about" {
		t.Errorf("unexpected links: %v", links)
	}
}

func TestProvider_Navigate_FollowsRedirect(t *testing.T) {
	srv := newServer(t)
	s := openSession(t, New(DefaultConfig()))
	ctx := context.Background()

	if err := s.Navigate(ctx, srv.URL+"/old", render.NavigateOptions{}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	final, err := s.FinalURL(ctx)
	if err != nil {
		t.Fatalf("FinalURL() error = %v", err)
	}
	if final != srv.URL+"/contact/" {
		t.Errorf("FinalURL() = %q, want %q", final, srv.URL+"/contact/")
	}
}

func TestProvider_Navigate_ErrorStatusStillLoads(t *testing.T) {
	srv := newServer(t)
	s := openSession(t, New(DefaultConfig()))
	ctx := context.Background()

	if err := s.Navigate(ctx, srv.URL+"/missing", render.NavigateOptions{}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	els, _ := s.QueryStructural(ctx, "h1")
	if len(els) != 1 || els[0].Text != "Not Found" {
		t.Errorf("unexpected elements: %+v", els)
	}
}

func TestProvider_Navigate_Unreachable(t *testing.T) {
	srv := newServer(t)
	addr := srv.URL
	srv.Close()

	s := openSession(t, New(DefaultConfig()))
	err := s.Navigate(context.Background(), addr+"/contact/", render.NavigateOptions{})
	if !errors.Is(err, render.ErrNavigation) {
		t.Errorf("expected ErrNavigation, got %v", err)
	}
}

func TestProvider_EvaluateScript_Unsupported(t *testing.T) {
	s := openSession(t, New(DefaultConfig()))

	_, err := s.EvaluateScript(context.Background(), "document.title")
	if !errors.Is(err, render.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProvider_QueryBeforeNavigate(t *testing.T) {
	s := openSession(t, New(DefaultConfig()))

	if _, err := s.DOMSnapshot(context.Background()); err == nil {
		t.Error("expected error before navigation")
	}
}

func TestProvider_OpenSession_AfterClose(t *testing.T) {
	p := New(DefaultConfig())
	_ = p.Close()

	_, err := p.OpenSession(context.Background(), render.SessionOptions{})
	if !errors.Is(err, render.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestProvider_Name(t *testing.T) {
	if New(Config{}).Name() != "static" {
		t.Error("unexpected provider name")
	}
}
