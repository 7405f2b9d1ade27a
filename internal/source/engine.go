package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/exposure/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// engine is an HTML search engine paged by a query parameter
type engine struct {
	name    string
	baseURL string
	pages   int
	fetcher PageFetcher
	params  func(text string, page int) url.Values
	parse   func(doc *html.Node, base *url.URL) []Hit
}

func (e *engine) Name() string {
	return e.name
}

// Search fetches up to pages result pages. A failure on the first page is an
// error; later failures end paging with the hits collected so far.
func (e *engine) Search(ctx context.Context, q model.Query) ([]Hit, error) {
	base, err := url.Parse(e.baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse base URL", e.name)
	}

	var hits []Hit
	for page := 0; page < max(e.pages, 1); page++ {
		pageURL, err := withQuery(e.baseURL, e.params(q.Text, page))
		if err != nil {
			return nil, eris.Wrapf(err, "%s: build URL", e.name)
		}

		body, err := e.fetcher.Get(ctx, pageURL)
		if err != nil {
			if page == 0 {
				return nil, eris.Wrapf(err, "%s search", e.name)
			}
			zap.L().Warn("search paging stopped", zap.String("source", e.name), zap.Int("page", page+1), zap.Error(err))
			break
		}

		doc, err := html.Parse(strings.NewReader(body))
		if err != nil {
			return hits, eris.Wrapf(err, "%s: parse results", e.name)
		}

		parsed := e.parse(doc, base)
		if len(parsed) == 0 {
			break
		}
		for i := range parsed {
			parsed[i].Source = e.name
		}
		hits = append(hits, parsed...)
	}
	return hits, nil
}

// NewBing creates a Bing HTML search source
func NewBing(cfg model.SourceConfig, pages int, fetcher PageFetcher) Source {
	return &engine{
		name:    "bing",
		baseURL: cfg.BaseURL,
		pages:   pages,
		fetcher: fetcher,
		params: func(text string, page int) url.Values {
			return url.Values{"q": {text}, "first": {strconv.Itoa(page*10 + 1)}}
		},
		parse: parseBing,
	}
}

// NewGoogle creates a Google HTML search source
func NewGoogle(cfg model.SourceConfig, pages int, fetcher PageFetcher) Source {
	return &engine{
		name:    "google",
		baseURL: cfg.BaseURL,
		pages:   pages,
		fetcher: fetcher,
		params: func(text string, page int) url.Values {
			return url.Values{"q": {text}, "start": {strconv.Itoa(page * 10)}, "hl": {"en"}}
		},
		parse: parseGoogle,
	}
}

// NewDuckDuckGo creates a DuckDuckGo HTML search source. The HTML endpoint
// only serves one page without form state, so pages is ignored.
func NewDuckDuckGo(cfg model.SourceConfig, fetcher PageFetcher) Source {
	return &engine{
		name:    "duckduckgo",
		baseURL: cfg.BaseURL,
		pages:   1,
		fetcher: fetcher,
		params: func(text string, _ int) url.Values {
			return url.Values{"q": {text}, "kl": {"us-en"}}
		},
		parse: parseDuckDuckGo,
	}
}

func parseBing(doc *html.Node, base *url.URL) []Hit {
	var hits []Hit
	for _, li := range findAll(doc, byTagClass("li", "b_algo")) {
		h2 := find(li, byTag("h2"))
		if h2 == nil {
			continue
		}
		a := find(h2, byTag("a"))
		if a == nil {
			continue
		}
		link := resolveURL(base, attr(a, "href"))
		if link == "" {
			continue
		}

		var snippet string
		if caption := find(li, byTagClass("div", "b_caption")); caption != nil {
			snippet = textOf(find(caption, byTag("p")))
		}
		hits = append(hits, Hit{URL: link, Title: textOf(a), Snippet: snippet})
	}
	return hits
}

func parseGoogle(doc *html.Node, base *url.URL) []Hit {
	var hits []Hit
	for _, g := range findAll(doc, byTagClass("div", "g")) {
		a := find(g, func(n *html.Node) bool { return isElement(n, "a") && attr(n, "href") != "" })
		if a == nil {
			continue
		}
		href := attr(a, "href")
		if strings.HasPrefix(href, "/url?") {
			href = unwrapRedirect(href, "q")
		}
		link := resolveURL(base, href)
		if link == "" || sameHost(link, base) {
			continue
		}

		title := textOf(find(g, byTag("h3")))
		if title == "" {
			continue
		}
		hits = append(hits, Hit{URL: link, Title: title, Snippet: textOf(find(g, byClass("VwiC3b")))})
	}
	return hits
}

func parseDuckDuckGo(doc *html.Node, base *url.URL) []Hit {
	var hits []Hit
	results := findAll(doc, func(n *html.Node) bool {
		return isElement(n, "div") && (hasClass(n, "result") || hasClass(n, "results_links_deep"))
	})
	for _, div := range results {
		if hasClass(div, "result--ad") {
			continue
		}
		a := find(div, byTagClass("a", "result__a"))
		if a == nil {
			continue
		}
		link := resolveURL(base, unwrapRedirect(attr(a, "href"), "uddg"))
		if link == "" || sameHost(link, base) {
			continue
		}
		hits = append(hits, Hit{URL: link, Title: textOf(a), Snippet: textOf(find(div, byClass("result__snippet")))})
	}
	return hits
}

// sameHost reports whether link points back into the engine itself
func sameHost(link string, base *url.URL) bool {
	u, err := url.Parse(link)
	return err == nil && strings.EqualFold(u.Host, base.Host)
}
