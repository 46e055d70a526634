// Package extract pulls article text and metadata out of web pages and
// scores each article with the detect heuristics.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MinContentChars is how much text a candidate container needs before it is
// accepted outright.
const MinContentChars = 200

// contentSelectors are tried in order.
var contentSelectors = []string{
	"article",
	"[itemprop=articleBody]",
	"main",
	".post-content",
	".entry-content",
	".article-body",
	"#content",
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true, "footer": true,
	"aside": true, "form": true, "noscript": true, "iframe": true, "svg": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "tr": true, "ul": true, "ol": true, "main": true,
}

var (
	multiSpace   = regexp.MustCompile(`[ \t\f\r\x{00a0}]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// ErrNoContent means the page had no readable text at all.
var ErrNoContent = errors.New("no readable content")

type Article struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Byline    string `json:"byline,omitempty"`
	Published string `json:"published,omitempty"`
	Selector  string `json:"selector"`
	Text      string `json:"text"`
	WordCount int    `json:"wordCount"`
}

// ExtractFromHTML parses page and picks the article body: the first
// candidate container with at least MinContentChars of text, else the
// longest candidate, else body.
func ExtractFromHTML(url, page string) (Article, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return Article{}, fmt.Errorf("parse %s: %w", url, err)
	}
	a := Article{URL: url}
	a.Title = firstNonEmpty(
		metaContent(doc, "property", "og:title"),
		textOf(find(doc, "h1")),
		textOf(find(doc, "title")),
	)
	a.Byline = firstNonEmpty(metaContent(doc, "name", "author"), metaContent(doc, "property", "article:author"))
	a.Published = metaContent(doc, "property", "article:published_time")

	var longest string
	var longestSel string
	for _, sel := range contentSelectors {
		n := find(doc, sel)
		if n == nil {
			continue
		}
		text := textOf(n)
		chars := utf8.RuneCountInString(text)
		if chars >= MinContentChars {
			a.Text, a.Selector = text, sel
			break
		}
		if chars > utf8.RuneCountInString(longest) {
			longest, longestSel = text, sel
		}
	}
	if a.Text == "" && longest != "" {
		a.Text, a.Selector = longest, longestSel
	}
	if a.Text == "" {
		a.Text, a.Selector = textOf(find(doc, "body")), "body"
	}
	if a.Text == "" {
		return a, fmt.Errorf("%s: %w", url, ErrNoContent)
	}
	a.WordCount = len(strings.Fields(a.Text))
	return a, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// matcher supports the selector forms used above: tag, .class, #id and
// [attr=value].
func matcher(sel string) func(*html.Node) bool {
	switch {
	case strings.HasPrefix(sel, "."):
		class := sel[1:]
		return func(n *html.Node) bool {
			for _, c := range strings.Fields(getAttr(n, "class")) {
				if c == class {
					return true
				}
			}
			return false
		}
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		return func(n *html.Node) bool { return getAttr(n, "id") == id }
	case strings.HasPrefix(sel, "[") && strings.HasSuffix(sel, "]"):
		key, val, _ := strings.Cut(sel[1:len(sel)-1], "=")
		val = strings.Trim(val, `"'`)
		return func(n *html.Node) bool {
			for _, attr := range n.Attr {
				if attr.Key == key && attr.Val == val {
					return true
				}
			}
			return false
		}
	default:
		return func(n *html.Node) bool { return n.Data == sel }
	}
}

// find returns the first element matching sel in document order.
func find(root *html.Node, sel string) *html.Node {
	match := matcher(sel)
	var walk func(*html.Node) *html.Node
	walk = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(root)
}

func metaContent(doc *html.Node, attr, name string) string {
	var out string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" && strings.EqualFold(getAttr(n, attr), name) {
			out = getAttr(n, "content")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return strings.TrimSpace(out)
}

// textOf renders the readable text under n, one line per block element,
// skipping page chrome.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(n)
	return clean(sb.String())
}

func clean(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return multiNewline.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
