// Package domain turns URLs into the host keys usage is aggregated under.
package domain

import (
	"net/url"
	"strings"
)

// Of returns the canonical domain key for a URL: the lowercased host with a
// leading "www." removed. If the URL cannot be parsed, or has no host, the
// input is returned unchanged.
func Of(rawURL string) string {
	host, ok := hostOf(rawURL)
	if !ok {
		return rawURL
	}
	return host
}

// DisplayName returns a short, human-friendly site name for a URL.
//
//	DisplayName("https://gemini.google.com/app") == "gemini"
//	DisplayName("https://www.google.com/search") == "google"
//	DisplayName("http://localhost:3000")         == "localhost"
//
// The name is a display heuristic only and is not unique.
func DisplayName(rawURL string) string {
	host, ok := hostOf(rawURL)
	if !ok {
		return rawURL
	}
	if first, _, found := strings.Cut(host, "."); found {
		return first
	}
	return host
}

// IsWebURL reports whether the URL uses the http or https scheme.
func IsWebURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}

// Normalize turns a user-entered list item ("www.GitHub.com", "https://figma.com/files")
// into a domain key.
func Normalize(entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}
	candidate := entry
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}
	if host, ok := hostOf(candidate); ok {
		return host
	}
	return strings.ToLower(entry)
}

func hostOf(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return strings.TrimPrefix(host, "www."), true
}
