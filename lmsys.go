package main

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	lmsysURLPattern = regexp.MustCompile(`lmsys\.org/blog/`)

	// Blog posts open with a "by: Author Name, Jan 26, 2026" paragraph.
	lmsysByLine = regexp.MustCompile(`^by:\s*(.+?)\s*,\s*([A-Za-z]+\s+\d+,\s*\d{4})`)
)

// lmsysContentSelectors are tried in order; the blog is a Next.js app and the
// body container has varied across redesigns.
var lmsysContentSelectors = []string{
	"article",
	"div.blog-content",
	"div.post-content",
	"div.content",
	"main",
	"div.prose",
	`[class*="content"]`,
	`[class*="article"]`,
	`[class*="post"]`,
}

// LMSYSParser handles posts on the LMSYS Org blog.
type LMSYSParser struct{}

func (p *LMSYSParser) CanParse(pageURL string) bool {
	return lmsysURLPattern.MatchString(pageURL)
}

func (p *LMSYSParser) Parse(src *ArticleSource) (*Article, error) {
	doc := src.Doc

	title := lmsysTitle(doc)

	content := findLMSYSContent(doc)
	if content == nil {
		return nil, ErrNoContent
	}
	content.Find("script, style").Remove()

	author, date := extractLMSYSByLine(content)

	nodes := parseBlocks(content)
	if len(nodes) == 0 {
		return nil, ErrNoContent
	}
	if base, err := url.Parse(src.URL); err == nil {
		absolutizeNodes(nodes, base)
	}

	return &Article{
		URL:    src.URL,
		Title:  title,
		Author: author,
		Date:   date,
		Nodes:  nodes,
	}, nil
}

func lmsysTitle(doc *goquery.Document) string {
	if t := metaContent(doc, `meta[property="og:title"]`); t != "" {
		return t
	}
	if t := metaContent(doc, `meta[name="twitter:title"]`); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return strings.TrimSpace(strings.ReplaceAll(t, "| LMSYS Org", ""))
	}
	return "Untitled"
}

func findLMSYSContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range lmsysContentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			debugLog("found LMSYS content with selector %q", sel)
			return s
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return nil
}

// extractLMSYSByLine pulls author and date out of the opening byline
// paragraph and removes it from the body so it is not rendered twice. When no
// byline is present the author falls back to the team name.
func extractLMSYSByLine(content *goquery.Selection) (author, date string) {
	author = "LMSYS Team"

	first := content.Find("p").First()
	if first.Length() == 0 {
		return author, ""
	}
	if m := lmsysByLine.FindStringSubmatch(strings.TrimSpace(first.Text())); m != nil {
		author = strings.TrimSpace(m[1])
		date = strings.TrimSpace(m[2])
		first.Remove()
	}
	return author, date
}
