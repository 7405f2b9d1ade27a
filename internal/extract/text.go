package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/exposure/internal/model"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

var (
	htmlHint   = regexp.MustCompile(`(?i)<(?:!doctype|html|head|body|div|p|span|a|table|li|br)\b`)
	tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)
)

// blockElements break text runs so context windows do not glue unrelated words
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "address": true,
	"title": true, "dd": true, "dt": true, "blockquote": true, "pre": true,
}

// PageText converts a fetched body into scannable text.
// Non-HTML bodies are returned as-is. Bodies that cannot be parsed cleanly
// fall back to tag-stripped raw text and report ErrParsePartial.
func PageText(body string) (string, error) {
	var partial error
	if !utf8.ValidString(body) {
		body = strings.ToValidUTF8(body, " ")
		partial = eris.Wrap(model.ErrParsePartial, "invalid utf-8 replaced")
	}

	if !htmlHint.MatchString(body) {
		return body, partial
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return stripTags(body), eris.Wrap(model.ErrParsePartial, err.Error())
	}

	text := visibleText(doc)

	// A body cut off inside a tag loses its tail in the parser; scan the raw tail too
	if open, closeIdx := strings.LastIndexByte(body, '<'), strings.LastIndexByte(body, '>'); open > closeIdx {
		text += "\n" + body[open+1:]
		partial = eris.Wrap(model.ErrParsePartial, "truncated markup")
	}

	return text, partial
}

// visibleText extracts text nodes from HTML, skipping scripts/styles.
// mailto: and tel: link targets are appended since they often carry contact data
// that is not part of the visible text.
func visibleText(n *html.Node) string {
	var buf strings.Builder
	var links []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template", "svg":
				return
			case "a":
				if target := contactLink(attr(n, "href")); target != "" {
					links = append(links, target)
				}
			}
			if blockElements[n.Data] {
				buf.WriteString("\n")
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)

	if len(links) > 0 {
		buf.WriteString("\n")
		buf.WriteString(strings.Join(links, "\n"))
	}
	return buf.String()
}

// contactLink returns the address of a mailto: or tel: href
func contactLink(href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)

	var rest string
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		rest = href[len("mailto:"):]
	case strings.HasPrefix(lower, "tel:"):
		rest = href[len("tel:"):]
	default:
		return ""
	}

	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	return strings.TrimSpace(rest)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// stripTags is the raw-text fallback for markup the parser rejects
func stripTags(body string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(body, " "))
}
