package main

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	answerURLPattern  = regexp.MustCompile(`zhihu\.com/question/\d+/answer/\d+`)
	articleURLPattern = regexp.MustCompile(`zhuanlan\.zhihu\.com/p/\d+`)
	columnURLPattern  = regexp.MustCompile(`zhihu\.com/column/([\w-]+)`)
	columnHomePattern = regexp.MustCompile(`zhuanlan\.zhihu\.com/([\w-]+)/?$`)
	datePattern       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// ZhihuParser handles Zhihu answer pages and zhuanlan article pages.
type ZhihuParser struct{}

func (p *ZhihuParser) CanParse(pageURL string) bool {
	return answerURLPattern.MatchString(pageURL) || articleURLPattern.MatchString(pageURL)
}

// columnID extracts the column identifier when pageURL is a column home page
// rather than a single article.
func columnID(pageURL string) (string, bool) {
	if m := columnURLPattern.FindStringSubmatch(pageURL); m != nil {
		return m[1], true
	}
	if m := columnHomePattern.FindStringSubmatch(pageURL); m != nil && m[1] != "p" {
		return m[1], true
	}
	return "", false
}

func (p *ZhihuParser) Parse(src *ArticleSource) (*Article, error) {
	doc := src.Doc

	title := strings.TrimSpace(doc.Find("h1.Post-Title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1.QuestionHeader-title").First().Text())
	}
	if title == "" {
		title = pageTitle(doc)
	}

	author := strings.TrimSpace(doc.Find(".AuthorInfo-name").First().Text())
	if author == "" {
		author = metaContent(doc, `.AuthorInfo meta[itemprop="name"]`)
	}

	content := findRichText(doc)
	if content == nil {
		return nil, ErrNoContent
	}
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
		Date:   publishDate(doc),
		Nodes:  nodes,
	}, nil
}

// findRichText locates the article body. Answer pages wrap it differently
// than zhuanlan articles, and both carry sibling RichText blocks (comments,
// recommendations) that must not win, so the most specific container is tried
// first.
func findRichText(doc *goquery.Document) *goquery.Selection {
	selectors := []string{
		".Post-RichTextContainer div.RichText",
		".QuestionAnswer-content div.RichText",
		"div.RichText",
	}
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

func publishDate(doc *goquery.Document) string {
	for _, sel := range []string{`meta[itemprop="datePublished"]`, `meta[property="article:published_time"]`} {
		if v := metaContent(doc, sel); v != "" {
			if m := datePattern.FindString(v); m != "" {
				return m
			}
			return v
		}
	}
	return datePattern.FindString(doc.Find(".ContentItem-time").First().Text())
}
