package crawler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

const samplePage = `<html><head><title>出貨 SOP</title></head><body>
<nav>首頁 | 關於</nav>
<main>
  <h1>出貨流程</h1>
  <p>1. 登入系統並開啟出貨單頁面，確認訂單編號與客戶資料正確無誤。</p>
  <p>2. 列印出貨單並交由倉庫人員撿貨。</p>
  <img src="/img/ship.png"><img src="data:image/png;base64,AAAA">
</main>
<footer>copyright</footer>
</body></html>`

func TestParseHTMLExtractsMainContent(t *testing.T) {
	page, err := ParseHTML("https://wiki.example.com/sop/ship", samplePage)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if page.Title != "出貨 SOP" {
		t.Fatalf("unexpected title %q", page.Title)
	}
	if !strings.Contains(page.Content, "列印出貨單") {
		t.Fatalf("main text missing: %q", page.Content)
	}
	if strings.Contains(page.Content, "copyright") || strings.Contains(page.Content, "首頁") {
		t.Fatalf("navigation chrome leaked: %q", page.Content)
	}
	if len(page.ImageURLs) != 1 || page.ImageURLs[0] != "https://wiki.example.com/img/ship.png" {
		t.Fatalf("unexpected images %v", page.ImageURLs)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"example.com/a#frag":   "https://example.com/a",
		"http://example.com/x": "http://example.com/x",
	}
	for in, want := range cases {
		got, err := normalizeURL(in)
		if err != nil || got != want {
			t.Errorf("normalizeURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "ftp://example.com/file", "https://"} {
		if _, err := normalizeURL(bad); err == nil {
			t.Errorf("normalizeURL(%q) should fail", bad)
		}
	}
}

func TestFetchPageDecodesBrotli(t *testing.T) {
	var compressed bytes.Buffer
	w := brotli.NewWriter(&compressed)
	w.Write([]byte(samplePage))
	w.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	page, err := FetchPage(context.Background(), FetchConfig{URL: srv.URL + "/sop"})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !strings.Contains(page.Content, "出貨流程") {
		t.Fatalf("unexpected content %q", page.Content)
	}
}

func TestFetchPageRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	if _, err := FetchPage(context.Background(), FetchConfig{URL: srv.URL}); err == nil {
		t.Fatalf("expected an error for non-HTML content")
	}
}

func TestFetchPageEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>   </body></html>"))
	}))
	defer srv.Close()

	_, err := FetchPage(context.Background(), FetchConfig{URL: srv.URL})
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}
