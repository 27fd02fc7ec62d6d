package domain

import "testing"

func TestOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.google.com/search?q=go", "google.com"},
		{"https://gemini.google.com/app", "gemini.google.com"},
		{"http://WWW.Example.COM:8080/path", "example.com"},
		{"http://localhost:3000/", "localhost"},
		{"https://[::1]:8443/", "::1"},
		{"not a url", "not a url"},
		{"", ""},
		{"example.com", "example.com"},
		{"chrome://extensions", "extensions"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Of(tt.in); got != tt.want {
				t.Errorf("Of(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOfIdempotentOnHosts(t *testing.T) {
	for _, u := range []string{"https://www.github.com/x", "https://docs.go.dev/"} {
		d := Of(u)
		if again := Of("https://" + d); again != d {
			t.Errorf("Of(Of(%q)) = %q, want %q", u, again, d)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://gemini.google.com/app", "gemini"},
		{"https://www.google.com/search", "google"},
		{"http://localhost:3000", "localhost"},
		{"%%bad", "%%bad"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DisplayName(tt.in); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsWebURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":      true,
		"HTTP://example.com/a":     true,
		"chrome://newtab":          false,
		"file:///tmp/a.html":       false,
		"about:blank":              false,
		"":                         false,
		"chrome-extension://abc/x": false,
		"https://":                 false,
	}

	for in, want := range tests {
		if got := IsWebURL(in); got != want {
			t.Errorf("IsWebURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"github.com", "github.com"},
		{"  www.GitHub.com ", "github.com"},
		{"https://figma.com/files/recent", "figma.com"},
		{"localhost:3000", "localhost"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s := NewSet("www.github.com", "https://figma.com/x", "")
	if len(s) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(s), s.Slice())
	}
	if !s.Contains("github.com") || !s.Contains("figma.com") {
		t.Errorf("missing expected entries: %v", s.Slice())
	}

	s.Add("Docs.Google.com")
	s.Remove("www.figma.com")

	want := []string{"docs.google.com", "github.com"}
	got := s.Slice()
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	var empty Set
	if empty.Contains("github.com") {
		t.Error("nil set should contain nothing")
	}
}

func TestClassifierMatchesUncached(t *testing.T) {
	c, err := NewClassifier(2)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	urls := []string{
		"https://www.youtube.com/watch?v=1",
		"https://gemini.google.com/app",
		"chrome://settings",
		"https://www.youtube.com/watch?v=1",
		"garbage",
	}
	for _, u := range urls {
		info := c.Classify(u)
		if info.Domain != Of(u) || info.DisplayName != DisplayName(u) || info.Web != IsWebURL(u) {
			t.Errorf("Classify(%q) = %+v, disagrees with uncached functions", u, info)
		}
	}
	if c.Len() > 2 {
		t.Errorf("cache exceeded its size: %d", c.Len())
	}

	var nilClassifier *Classifier
	if got := nilClassifier.Of("https://www.go.dev"); got != "go.dev" {
		t.Errorf("nil classifier Of = %q", got)
	}
}
