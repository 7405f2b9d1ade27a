package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/rotisserie/eris"
)

// GitHub searches the public users API
type GitHub struct {
	baseURL string
	fetcher PageFetcher
}

// NewGitHub creates a GitHub users source
func NewGitHub(cfg model.SourceConfig, fetcher PageFetcher) *GitHub {
	return &GitHub{baseURL: cfg.BaseURL, fetcher: fetcher}
}

func (g *GitHub) Name() string { return "github" }

// Search returns profile pages; their bodies are fetched like any other hit
func (g *GitHub) Search(ctx context.Context, q model.Query) ([]Hit, error) {
	if scopedElsewhere(q, "github.com") {
		return nil, nil
	}

	apiURL, err := withQuery(g.baseURL, url.Values{"q": {stripSite(q.Text)}, "per_page": {"10"}})
	if err != nil {
		return nil, eris.Wrap(err, "github: build URL")
	}
	body, err := g.fetcher.Get(ctx, apiURL)
	if err != nil {
		return nil, eris.Wrap(err, "github search")
	}

	var resp gh.UsersSearchResult
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, eris.Wrap(err, "github: decode response")
	}

	hits := make([]Hit, 0, len(resp.Users))
	for _, user := range resp.Users {
		if user.GetHTMLURL() == "" {
			continue
		}
		hits = append(hits, Hit{URL: user.GetHTMLURL(), Title: user.GetLogin(), Source: g.Name()})
	}
	return hits, nil
}

// Reddit searches posts through the public JSON listing
type Reddit struct {
	baseURL string
	fetcher PageFetcher
}

// NewReddit creates a Reddit source
func NewReddit(cfg model.SourceConfig, fetcher PageFetcher) *Reddit {
	return &Reddit{baseURL: cfg.BaseURL, fetcher: fetcher}
}

func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Permalink string `json:"permalink"`
				Selftext  string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search returns posts with their text as the body, so no page fetch is needed
func (r *Reddit) Search(ctx context.Context, q model.Query) ([]Hit, error) {
	if scopedElsewhere(q, "reddit.com") {
		return nil, nil
	}

	listURL, err := withQuery(r.baseURL, url.Values{"q": {stripSite(q.Text)}, "sort": {"relevance"}, "t": {"all"}})
	if err != nil {
		return nil, eris.Wrap(err, "reddit: build URL")
	}
	body, err := r.fetcher.Get(ctx, listURL)
	if err != nil {
		return nil, eris.Wrap(err, "reddit search")
	}

	var listing redditListing
	if err := json.Unmarshal([]byte(body), &listing); err != nil {
		return nil, eris.Wrap(err, "reddit: decode response")
	}

	var hits []Hit
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Permalink == "" || post.Title == "" {
			continue
		}
		hits = append(hits, Hit{
			URL:     "https://www.reddit.com" + post.Permalink,
			Title:   post.Title,
			Snippet: truncate(post.Selftext, 200),
			Body:    post.Title + "\n" + post.Selftext,
			Source:  r.Name(),
		})
	}
	return hits, nil
}

// stripSite removes site: qualifiers, which platform APIs do not understand
func stripSite(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if !strings.HasPrefix(strings.ToLower(f), "site:") {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
