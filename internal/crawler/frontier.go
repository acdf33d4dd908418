// Package crawler discovers listing URLs by walking paginated search
// results and drives extraction over them.
package crawler

import (
	"net/url"
	"sync"
)

// Frontier is an insertion-ordered set of listing URLs for one base URL.
// It only grows, and once frozen it rejects further additions.
type Frontier struct {
	mu     sync.Mutex
	urls   []string
	seen   map[string]bool
	frozen bool
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		urls: make([]string, 0),
		seen: make(map[string]bool),
	}
}

// Add inserts rawURL and reports whether it was new. Invalid URLs and
// additions to a frozen frontier are refused.
func (f *Frontier) Add(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.frozen {
		return false
	}

	normalized := normalizeURL(rawURL)
	if normalized == "" || f.seen[normalized] {
		return false
	}

	f.seen[normalized] = true
	f.urls = append(f.urls, normalized)
	return true
}

// Contains reports whether rawURL is already a member.
func (f *Frontier) Contains(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[normalizeURL(rawURL)]
}

// Len returns the number of URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

// URLs returns the members in encounter order.
func (f *Frontier) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// Freeze stops the frontier from growing.
func (f *Frontier) Freeze() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frozen = true
}

// normalizeURL drops the fragment so in-page anchors of one listing
// compare equal.
func normalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parsed.Fragment = ""
	return parsed.String()
}
