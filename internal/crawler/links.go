package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// LinkFilter decides which discovered links a crawl may follow.
type LinkFilter struct {
	SameHostOnly bool           // Only follow links on the page's host
	URLPattern   *regexp.Regexp // Regex pattern for URLs to match
}

// NewLinkFilter creates a link filter.
func NewLinkFilter(sameHostOnly bool, urlPattern string) (*LinkFilter, error) {
	lf := &LinkFilter{
		SameHostOnly: sameHostOnly,
	}

	if urlPattern != "" {
		pattern, err := regexp.Compile(urlPattern)
		if err != nil {
			return nil, err
		}
		lf.URLPattern = pattern
	}

	return lf, nil
}

// Filter returns the links found on pageURL that may be followed, in the
// order found and without duplicates. Only absolute http and https links
// are kept. Fragments are removed, and a link that then points back at
// pageURL is dropped.
func (lf *LinkFilter) Filter(pageURL string, links []string) []string {
	page := normalizeURL(pageURL)

	var out []string
	seen := make(map[string]bool)

	for _, raw := range links {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		linkURL, err := url.Parse(raw)
		if err != nil || !linkURL.IsAbs() || linkURL.Host == "" {
			continue
		}

		// Drops mailto:, tel:, javascript: and the like
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			continue
		}

		// Remove fragment
		hadFragment := linkURL.Fragment != "" || strings.Contains(raw, "#")
		linkURL.Fragment = ""
		linkURL.RawFragment = ""
		fullURL := linkURL.String()

		key := normalizeURL(fullURL)
		if hadFragment && key == page {
			continue
		}

		if lf.SameHostOnly && !IsSameHost(pageURL, fullURL) {
			continue
		}

		// Check URL pattern if specified
		if lf.URLPattern != nil && !lf.URLPattern.MatchString(fullURL) {
			continue
		}

		// Deduplicate
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, fullURL)
	}

	return out
}
