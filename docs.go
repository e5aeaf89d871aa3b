package main

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// docsDomains are hosts known to serve documentation sites built on Sphinx,
// GitBook, Docusaurus, and friends.
var docsDomains = []string{
	"docs.nvda.net.cn",
	"docs.pytorch.org",
	"docs.huggingface.co",
	"tensorflow.org",
	"keras.io",
	"docs.rs",
	"readthedocs.io",
	"docs.scipy.org",
	"docs.djangoproject.com",
	"docs.oracle.com",
	"developer.mozilla.org",
}

// docsContentSelectors are tried in order to find the main content container.
var docsContentSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	".document",
	".content",
	".post-content",
	".markdown-body",
	".md",
	"div.document",
	"div.body",
	`div[role="main"]`,
}

// docsNavSelectors locate the sidebar or table of contents that links to the
// other pages of a section.
var docsNavSelectors = []string{
	".sidebar a",
	".nav-list a",
	".toc a",
	".table-of-contents a",
	"nav a",
	`[role="navigation"] a`,
	".menu a",
	".docs-navigation a",
	".sidebar-nav a",
	".bd-sidebar a",
	".wy-nav-side a",
}

// DocsParser handles generic documentation pages. Unlike the platform
// parsers it converts the whole content container to Markdown in one pass
// and keeps image references remote.
type DocsParser struct {
	converter *md.Converter
}

func NewDocsParser() *DocsParser {
	return &DocsParser{converter: md.NewConverter("", true, nil)}
}

func (p *DocsParser) CanParse(pageURL string) bool {
	return isDocsURL(pageURL)
}

// isDocsURL reports whether pageURL looks like a documentation page, either
// by known host or by a /docs path.
func isDocsURL(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, domain := range docsDomains {
		if strings.Contains(host, domain) {
			return true
		}
	}
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "/docs/") || strings.HasPrefix(path, "/docs")
}

func (p *DocsParser) Parse(src *ArticleSource) (*Article, error) {
	doc := src.Doc

	title := docsTitle(doc)
	content := findDocsContent(doc)
	if content == nil {
		return nil, ErrNoContent
	}

	// Drop navigation chrome so only the document body is converted.
	content.Find("nav, header, footer, aside, .sidebar, .navigation, .menu").Remove()
	content.Find("script, style, link").Remove()

	if base, err := url.Parse(src.URL); err == nil {
		rewriteDocsURLs(content, base)
	}

	markdown := strings.TrimSpace(p.converter.Convert(content))
	if markdown == "" {
		return nil, ErrNoContent
	}

	var nodes []ContentNode
	if desc := metaContent(doc, `meta[name="description"]`); desc != "" {
		nodes = append(nodes, ContentNode{
			Kind:     NodeBlockquote,
			Children: []ContentNode{{Kind: NodeText, Text: desc}},
		})
	}
	nodes = append(nodes, ContentNode{Kind: NodeText, Text: markdown})

	return &Article{
		URL:   src.URL,
		Title: title,
		Nodes: nodes,
	}, nil
}

func docsTitle(doc *goquery.Document) string {
	if t := metaContent(doc, `meta[property="og:title"]`); t != "" {
		return t
	}
	if t := metaContent(doc, `meta[name="twitter:title"]`); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	// Page titles usually carry a "| Site Name" suffix.
	if idx := strings.Index(title, "|"); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if title == "" {
		return "Untitled"
	}
	return title
}

func findDocsContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range docsContentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			debugLog("found docs content with selector %q", sel)
			return s
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return nil
}

// rewriteDocsURLs makes image and link targets absolute so they still work
// once the page leaves its site.
func rewriteDocsURLs(content *goquery.Selection, base *url.URL) {
	content.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		if src != "" {
			img.SetAttr("src", absoluteURL(base, src))
		}
		if _, ok := img.Attr("alt"); !ok {
			img.SetAttr("alt", "")
		}
	})
	content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		a.SetAttr("href", absoluteURL(base, a.AttrOr("href", "")))
	})
}

// findRelatedLinks discovers the other pages of a documentation section from
// the first navigation block that yields more than one link. Only same-host
// links count, and duplicates collapse while keeping first-seen order.
func findRelatedLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	for _, selector := range docsNavSelectors {
		anchors := doc.Find(selector)
		if anchors.Length() < 2 {
			continue
		}

		var links []string
		seen := make(map[string]bool)
		anchors.Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				return
			}
			full := absoluteURL(base, href)
			u, err := url.Parse(full)
			if err != nil || u.Hostname() != base.Hostname() {
				return
			}
			if full == pageURL || seen[full] {
				return
			}
			seen[full] = true
			links = append(links, full)
		})

		if len(links) > 0 {
			debugLog("found %d related links with selector %q", len(links), selector)
			return links
		}
	}
	return nil
}

// sectionID derives a stable directory name for a section download so an
// interrupted run can resume into the same place.
func sectionID(pageURL string) string {
	return fmt.Sprintf("docs_%s", shortHash(pageURL))
}
