// Package crawler imports a single web page as plain text so it can be
// structured into SOP sections.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sop-assistant/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var httpTransport = &http.Transport{
	Proxy:              http.ProxyFromEnvironment,
	DisableCompression: false,
}

// ErrNoContent is returned when a page yields no readable text.
var ErrNoContent = errors.New("page has no readable content")

// FetchConfig describes one page import.
type FetchConfig struct {
	URL     string
	Timeout time.Duration
	// Optional JS rendering for single-page apps
	RenderJS         bool
	RenderTimeout    time.Duration
	WaitSelector     string
	NetworkIdleAfter time.Duration
}

// Page is the readable content of one fetched page.
type Page struct {
	URL       string
	Title     string
	Content   string
	ImageURLs []string
}

// normalizeURL defaults the scheme to https and rejects anything that is
// not an absolute http(s) URL.
func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host")
	}
	u.Fragment = ""
	return u.String(), nil
}

// FetchPage downloads and extracts one page.
func FetchPage(ctx context.Context, cfg FetchConfig) (*Page, error) {
	pageURL, err := normalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var html string
	if cfg.RenderJS {
		timeout := cfg.RenderTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		html, err = renderPageHTML(ctx, pageURL, timeout, cfg.WaitSelector, cfg.NetworkIdleAfter)
		if err != nil {
			logger.Warn("JS rendering failed, falling back to static fetch", "url", pageURL, "error", err)
		}
	}
	if html == "" {
		html, err = fetchStatic(ctx, pageURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
	}

	page, err := ParseHTML(pageURL, html)
	if err != nil {
		return nil, err
	}
	if page.Content == "" {
		return nil, ErrNoContent
	}
	return page, nil
}

// fetchStatic retrieves the page with colly, decoding brotli bodies and
// non-UTF-8 charsets.
func fetchStatic(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	c := colly.NewCollector(colly.StdlibContext(ctx), colly.MaxDepth(1))
	c.WithTransport(httpTransport)
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.UserAgent = userAgent

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
		r.Headers.Set("Accept-Encoding", "gzip, br")
	})

	var (
		body     string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			fetchErr = fmt.Errorf("unsupported content type %q", contentType)
			return
		}
		decoded, err := decodeBody(r.Body, r.Headers.Get("Content-Encoding"), contentType)
		if err != nil {
			fetchErr = err
			return
		}
		body = decoded
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("fetch %s: status %d: %w", pageURL, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fetchErr
	}
	return body, nil
}

// decodeBody undoes brotli, which the standard transport leaves alone,
// then converts the declared or sniffed charset to UTF-8.
func decodeBody(raw []byte, contentEncoding, contentType string) (string, error) {
	var reader io.Reader = bytes.NewReader(raw)
	if strings.Contains(contentEncoding, "br") {
		decompressed, err := io.ReadAll(brotli.NewReader(reader))
		if err != nil {
			return "", fmt.Errorf("decode brotli body: %w", err)
		}
		raw = decompressed
		reader = bytes.NewReader(raw)
	}

	utf8Reader, err := charset.NewReader(reader, contentType)
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil || len(decoded) == 0 {
		return string(raw), nil
	}
	return string(decoded), nil
}

// ParseHTML extracts title, main text and absolute image URLs.
func ParseHTML(pageURL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	page := &Page{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	seen := map[string]bool{}
	doc.Find("main img, article img, body img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		if !seen[src] {
			seen[src] = true
			page.ImageURLs = append(page.ImageURLs, src)
		}
	})

	page.Content = extractMainContentFromSelection(doc.Selection)
	return page, nil
}

// renderPageHTML launches a headless browser, waits for readiness and network idle, then returns HTML
func renderPageHTML(parent context.Context, urlStr string, timeout time.Duration, waitSelector string, networkIdleAfter time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	readyCtx, cancelReady := context.WithTimeout(browserCtx, 10*time.Second)
	defer cancelReady()
	_ = chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))

	if waitSelector != "" {
		selCtx, cancelSel := context.WithTimeout(browserCtx, 15*time.Second)
		defer cancelSel()
		_ = chromedp.Run(selCtx, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}

	if networkIdleAfter > 0 {
		idleCap := networkIdleAfter
		if idleCap > 5*time.Second {
			idleCap = 5 * time.Second
		}
		idleCtx, cancelIdle := context.WithTimeout(browserCtx, idleCap+time.Second)
		defer cancelIdle()
		_ = chromedp.Run(idleCtx, waitForNetworkIdle(idleCap))
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// waitForNetworkIdle waits until no network requests are in flight for the given duration
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) { setTimeout(resolve, waitMs); return; }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}

// extractMainContentFromSelection keeps the first substantial semantic
// container and drops navigation chrome.
func extractMainContentFromSelection(selection *goquery.Selection) string {
	doc := selection.Clone()
	doc.Find("script, style, noscript, nav, footer, header, aside, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link").Remove()

	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".main-content",
		".content",
		"#content",
		"body",
	}

	var content strings.Builder
	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len([]rune(text)) > 40 {
				content.WriteString(text)
				content.WriteString("\n\n")
			}
		})
		if content.Len() > 0 {
			break
		}
	}
	if content.Len() == 0 {
		content.WriteString(doc.Find("body").Text())
	}

	lines := strings.Split(content.String(), "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
