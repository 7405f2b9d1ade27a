// Package source queries search engines and platforms for candidate pages.
package source

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/exposure/internal/model"
)

// Hit is one search result. Body is set when the source already returns the
// full content and the page need not be fetched.
type Hit struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Body    string `json:"-"`
	Source  string `json:"source"`
}

// Source is a search capability. Implementations hold no shared mutable state.
type Source interface {
	Name() string
	Search(ctx context.Context, query model.Query) ([]Hit, error)
}

// PageFetcher retrieves raw response bodies for search endpoints
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (string, error)
}

// NormalizeURL reduces a result URL to scheme://host/path for deduplication.
// It returns "" for non-http URLs.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	return strings.ToLower(u.Scheme) + "://" + host + path
}

// scopedElsewhere reports whether the query is site-scoped to a domain the
// platform does not serve
func scopedElsewhere(q model.Query, domain string) bool {
	return q.EngineHint != "" && q.EngineHint != domain && !strings.HasSuffix(q.EngineHint, "."+domain)
}

// withQuery returns base with q and extra parameters set
func withQuery(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	values := u.Query()
	for k, v := range params {
		values[k] = v
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
