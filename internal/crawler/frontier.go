// Package crawler handles breadth-first crawling from a seed URL.
package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// Frontier holds the crawl state: a FIFO queue of pending URLs, and the set
// of URLs already dispatched. Both are keyed by normalized URL, so a URL is
// never queued twice and never queued once visited.
type Frontier struct {
	mu      sync.Mutex
	queue   []queueItem
	queued  map[string]bool
	visited map[string]bool
}

type queueItem struct {
	URL string
	Key string
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:   make([]queueItem, 0),
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
}

// Push appends a URL unless it is empty, already queued or already visited.
func (f *Frontier) Push(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := urlKey(rawURL)
	if f.queued[key] || f.visited[key] {
		return false
	}

	f.queued[key] = true
	f.queue = append(f.queue, queueItem{URL: rawURL, Key: key})
	return true
}

// Pop removes and returns the URL at the head of the queue.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}

	item := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.queued, item.Key)
	return item.URL, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// MarkVisited records a URL as visited. It returns false when the URL was
// already visited, so check and insert happen atomically.
func (f *Frontier) MarkVisited(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := urlKey(rawURL)
	if f.visited[key] {
		return false
	}
	f.visited[key] = true
	return true
}

// IsVisited checks if a URL has been visited.
func (f *Frontier) IsVisited(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[urlKey(rawURL)]
}

// Visited returns the number of visited URLs.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// urlKey is the identity of a URL in the frontier. Unparseable URLs are
// keyed by their raw text.
func urlKey(rawURL string) string {
	if key := normalizeURL(rawURL); key != "" {
		return key
	}
	return rawURL
}

// normalizeURL normalizes a URL for comparison.
func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	// Remove fragment
	parsed.Fragment = ""
	parsed.RawFragment = ""

	// Remove trailing slash from path (unless it's just "/")
	if len(parsed.Path) > 1 && parsed.Path[len(parsed.Path)-1] == '/' {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
		parsed.RawPath = ""
	}

	// Hosts are case-insensitive.
	parsed.Host = strings.ToLower(parsed.Host)

	return parsed.String()
}

// IsSameHost checks if two URLs are on the same host.
func IsSameHost(url1, url2 string) bool {
	parsed1, err := url.Parse(url1)
	if err != nil {
		return false
	}
	parsed2, err := url.Parse(url2)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed1.Host, parsed2.Host)
}
