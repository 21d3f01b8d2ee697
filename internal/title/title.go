// CLAUDE:SUMMARY Page title resolution for URL clips: guarded fetch, bounded body read, <title> extraction.
// Package title resolves the page title of captured URLs so the history
// shows something better than a bare address. Fetches are bounded in time
// and size and refuse private-network targets.
package title

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxBody      = 100 << 10
	maxTitleLen  = 100
	fetchTimeout = 5 * time.Second
	userAgent    = "clipkeeper/1.0"
)

// Fetcher resolves page titles over HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger

	// allowPrivate disables the private-address guard, for tests that
	// point at a local server.
	allowPrivate bool
}

func NewFetcher(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Fetch returns the page title for rawURL, or "" when the page has none.
// Only the first 100 KiB of the response are considered; titles sit near
// the top of any real page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if !f.allowPrivate {
		if err := validateURL(rawURL); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("title: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("title: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("title: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	title, err := extractTitle(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("title: parse %s: %w", rawURL, err)
	}
	return title, nil
}

// extractTitle parses HTML and returns the cleaned <title> text. Truncated
// input is fine; the parser recovers whatever structure is there.
func extractTitle(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	return clean(findTitle(doc)), nil
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

// clean collapses whitespace and caps the title at 100 runes.
func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen])
	}
	return s
}
