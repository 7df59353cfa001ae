// Package scraper resolves school street addresses by scraping the public
// school unit detail pages, memoizing every outcome in a durable cache.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/UnknownOlympus/skolmap/internal/cache"
	"golang.org/x/net/html"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// addressLabel is the exact visible-text token preceding the street address
// on the detail page.
const addressLabel = "Adress"

// minAddressLen rejects near-empty lines that follow the label by accident.
const minAddressLen = 3

// addressPattern is the fallback extraction used when the structural line
// scan finds nothing; it guards against minor layout drift on the source page.
var addressPattern = regexp.MustCompile(`Adress:?\s*([^\n]+)`)

// Resolver extracts street addresses for school unit codes. Results, positive
// and negative, are written through to the address cache so a key is looked
// up over the network at most once across runs.
type Resolver struct {
	client    HTTPClient
	baseURL   string
	userAgent string
	cache     *cache.Store[string]
	log       *slog.Logger
}

// NewResolver creates an address resolver against the given detail-page base
// URL, with a bounded request timeout.
func NewResolver(baseURL string, store *cache.Store[string], log *slog.Logger) *Resolver {
	const timeout = 10
	return &Resolver{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL:   baseURL,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		cache:     store,
		log:       log,
	}
}

// NewResolverWithClient creates a resolver with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewResolverWithClient(client HTTPClient, baseURL string, store *cache.Store[string], log *slog.Logger) *Resolver {
	return &Resolver{
		client:    client,
		baseURL:   baseURL,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		cache:     store,
		log:       log,
	}
}

// Resolve returns the street address for a school unit code, or nil when none
// could be found. The second return value reports whether the answer came
// from the cache; a cache hit, cached failures included, issues no network
// call. Whatever the outcome of a fresh lookup, it is cached before
// returning, so a failing key is never retried in a later run.
func (r *Resolver) Resolve(ctx context.Context, id string) (*string, bool) {
	if addr, ok := r.cache.Lookup(id); ok {
		return addr, true
	}

	addr := r.fetch(ctx, id)
	r.cache.Put(id, addr)

	return addr, false
}

// fetch retrieves the detail page and extracts the address from its visible
// text. Transport errors, non-200 responses and parse misses all yield nil;
// per-row failures are soft.
func (r *Resolver) fetch(ctx context.Context, id string) *string {
	reqURL := fmt.Sprintf("%s?schoolUnitID=%s", r.baseURL, url.QueryEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		r.log.DebugContext(ctx, "Failed to build detail page request", "id", id, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.DebugContext(ctx, "Detail page request failed", "id", id, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.DebugContext(ctx, "Detail page returned non-OK status", "id", id, "status", resp.StatusCode)
		return nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		r.log.DebugContext(ctx, "Failed to parse detail page", "id", id, "error", err)
		return nil
	}

	text := visibleText(doc)

	if addr := extractAddress(text); addr != nil {
		r.log.DebugContext(ctx, "Extracted address", "id", id, "address", *addr)
		return addr
	}

	r.log.DebugContext(ctx, "No address found on detail page", "id", id)
	return nil
}

// extractAddress scans the visible text line by line for the exact label
// token and takes the following line as the address, if long enough. When
// the scan finds nothing it falls back to a single pattern search over the
// full text.
func extractAddress(text string) *string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == addressLabel && i+1 < len(lines) {
			candidate := strings.TrimSpace(lines[i+1])
			if len(candidate) > minAddressLen {
				return &candidate
			}
		}
	}

	if match := addressPattern.FindStringSubmatch(text); match != nil {
		candidate := strings.TrimSpace(match[1])
		if candidate != "" {
			return &candidate
		}
	}

	return nil
}

// visibleText collects the text nodes of the document, one per line, skipping
// script and style subtrees.
func visibleText(doc *html.Node) string {
	var builder strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
			builder.WriteByte('\n')
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return builder.String()
}
