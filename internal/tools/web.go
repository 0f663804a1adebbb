package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSearchURL  = "https://html.duckduckgo.com/html/"
	fetchTimeout      = 15 * time.Second
	fetchMaxLines     = 200
	defaultMaxResults = 5
)

// HTTPStatusError is returned for non-2xx responses from web backends.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// Kind implements the error-kind contract used in tool results.
func (e *HTTPStatusError) Kind() string { return "HTTPStatusError" }

// WebTools implements web_search and fetch_page.
type WebTools struct {
	client      *http.Client
	searchURL   string
	userAgent   string
	maxBodySize int64
}

// WebOption configures WebTools.
type WebOption func(*WebTools)

// WithSearchURL points web_search at a different DuckDuckGo HTML endpoint.
func WithSearchURL(u string) WebOption {
	return func(w *WebTools) {
		w.searchURL = u
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) WebOption {
	return func(w *WebTools) {
		w.client = c
	}
}

// NewWebTools creates the web tools with a 15s timeout client that follows
// redirects.
func NewWebTools(opts ...WebOption) *WebTools {
	w := &WebTools{
		client:      &http.Client{Timeout: fetchTimeout},
		searchURL:   defaultSearchURL,
		userAgent:   "Mozilla/5.0 (compatible; VoxaOS/1.0)",
		maxBodySize: 10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type searchResult struct {
	Title string
	Href  string
	Body  string
}

// Search queries DuckDuckGo's HTML endpoint.
func (w *WebTools) Search(ctx context.Context, args Args) (string, error) {
	query, err := args.RequireString("query")
	if err != nil {
		return "", err
	}
	maxResults, err := args.Int("max_results", defaultMaxResults)
	if err != nil {
		return "", err
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	doc, err := w.get(ctx, w.searchURL+"?"+url.Values{"q": {query}}.Encode())
	if err != nil {
		return "", err
	}

	var results []searchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, searchResult{
			Title: title,
			Href:  unwrapRedirect(href),
			Body:  strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < maxResults
	})

	if len(results) == 0 {
		return "No results found.", nil
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("**%s**\n%s\n%s\n", r.Title, r.Href, r.Body))
	}
	return strings.Join(lines, "\n"), nil
}

// unwrapRedirect extracts the target of DuckDuckGo's "/l/?uddg=" links.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// Fetch downloads a page and returns its readable text, one line per text
// node, capped at 200 lines.
func (w *WebTools) Fetch(ctx context.Context, args Args) (string, error) {
	pageURL, err := args.RequireString("url")
	if err != nil {
		return "", err
	}

	doc, err := w.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var lines []string
	collectText(doc.Selection, &lines)
	if len(lines) > fetchMaxLines {
		lines = lines[:fetchMaxLines]
	}
	return strings.Join(lines, "\n"), nil
}

// collectText walks the tree in document order, keeping non-empty lines of
// every text node.
func collectText(s *goquery.Selection, lines *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			for _, line := range strings.Split(c.Text(), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					*lines = append(*lines, line)
				}
			}
		case "#comment", "script", "style", "noscript", "template":
		default:
			collectText(c, lines)
		}
	})
}

func (w *WebTools) get(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: target, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, w.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}
