package domain

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of URLs a Classifier remembers.
const DefaultCacheSize = 4096

// Info is the classification of a single URL.
type Info struct {
	Domain      string
	DisplayName string
	Web         bool
}

// Classifier memoizes URL classification. History snapshots repeat the same
// URLs on every report, so parsing each one once pays off. A nil *Classifier
// is valid and classifies without caching.
type Classifier struct {
	cache *lru.Cache[string, Info]
}

// NewClassifier creates a classifier holding up to size entries.
func NewClassifier(size int) (*Classifier, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Info](size)
	if err != nil {
		return nil, fmt.Errorf("create classifier cache: %w", err)
	}
	return &Classifier{cache: cache}, nil
}

// Classify returns the domain key, display name and web-ness of a URL.
func (c *Classifier) Classify(rawURL string) Info {
	if c == nil {
		return classify(rawURL)
	}
	if info, ok := c.cache.Get(rawURL); ok {
		return info
	}
	info := classify(rawURL)
	c.cache.Add(rawURL, info)
	return info
}

// Of is the cached equivalent of the package-level Of.
func (c *Classifier) Of(rawURL string) string {
	return c.Classify(rawURL).Domain
}

// DisplayName is the cached equivalent of the package-level DisplayName.
func (c *Classifier) DisplayName(rawURL string) string {
	return c.Classify(rawURL).DisplayName
}

// Len returns the number of cached URLs.
func (c *Classifier) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

func classify(rawURL string) Info {
	return Info{
		Domain:      Of(rawURL),
		DisplayName: DisplayName(rawURL),
		Web:         IsWebURL(rawURL),
	}
}
