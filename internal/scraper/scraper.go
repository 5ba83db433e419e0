// Package scraper fetches an article URL and extracts its readable text.
// Short or empty extractions are valid results; the ingestion pipeline
// decides whether they are substantive enough to keep.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

// Document is a scraped article. Identity is the URL.
type Document struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

var reSpaces = regexp.MustCompile(`\s+`)

type Fetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

func NewFetcher(timeout time.Duration, maxChars int, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 60_000
	}
	if userAgent == "" {
		userAgent = "newsrag/1.0"
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxChars:  maxChars,
	}
}

// Fetch downloads link and runs readability extraction. A page that parses
// to nothing yields a Document with empty Text, not an error.
func (f *Fetcher) Fetch(ctx context.Context, link string) (Document, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return Document{}, fmt.Errorf("empty url")
	}
	parsed, err := nurl.Parse(link)
	if err != nil {
		return Document{}, fmt.Errorf("parse url %q: %w", link, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Document{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", link, err)
	}

	article, err := readability.FromReader(strings.NewReader(string(html)), parsed)
	if err != nil {
		// Non-article or unparseable page: a skip signal, not a failure.
		return Document{URL: link}, nil
	}

	text := strings.TrimSpace(reSpaces.ReplaceAllString(article.TextContent, " "))
	if len(text) > f.maxChars {
		cut := f.maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return Document{
		URL:   link,
		Title: strings.TrimSpace(article.Title),
		Text:  text,
	}, nil
}
