package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var productIDPattern = regexp.MustCompile(`/prd/(\d+)`)

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// SearchURL builds the search listing URL for term on the shop at base
func SearchURL(base, term string) string {
	return strings.TrimRight(base, "/") + "/search/?q=" + url.QueryEscape(term)
}

// IsProductLink reports whether href points at a product detail page
func IsProductLink(href string) bool {
	return strings.Contains(href, "/prd/")
}

// ProductID extracts the numeric product id from a product URL, or 0
func ProductID(href string) int64 {
	m := productIDPattern.FindStringSubmatch(href)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// StripQuery drops the query string and fragment from a URL
func StripQuery(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// Unique removes duplicate links, keeping first-seen order
func Unique(links []string) []string {
	seen := make(map[string]bool, len(links))
	result := make([]string, 0, len(links))

	for _, link := range links {
		if !seen[link] {
			seen[link] = true
			result = append(result, link)
		}
	}

	return result
}

// FirstPathSegment returns the first non-empty path segment of a URL
func FirstPathSegment(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			return part
		}
	}
	return ""
}
