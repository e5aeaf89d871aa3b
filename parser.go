package main

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var debugEnabled bool

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Parser extracts a structured article from a fetched page.
type Parser interface {
	CanParse(pageURL string) bool
	Parse(src *ArticleSource) (*Article, error)
}

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	codeLangPattern = regexp.MustCompile(`language-([\w+#-]+)`)

	// Markdown-significant characters in prose text get a backslash so the
	// rendered document shows them literally.
	markdownEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`")
)

// pageTitle extracts a title using the usual metadata fallbacks.
func pageTitle(doc *goquery.Document) string {
	if t := metaContent(doc, `meta[property="og:title"]`); t != "" {
		return t
	}
	if t := metaContent(doc, `meta[name="twitter:title"]`); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// parseBlocks walks a container's child elements in document order and
// classifies each into ContentNodes. A container with no element children is
// treated as one paragraph.
func parseBlocks(container *goquery.Selection) []ContentNode {
	children := container.Children()
	if children.Length() == 0 {
		if text := strings.TrimSpace(renderInline(container)); text != "" {
			return []ContentNode{{Kind: NodeText, Text: text}}
		}
		return nil
	}

	var nodes []ContentNode
	children.Each(func(_ int, child *goquery.Selection) {
		nodes = append(nodes, classifyBlock(child)...)
	})
	return nodes
}

// classifyBlock maps one block-level element to its ContentNodes. Wrapper
// elements are unwrapped, unknown elements are flattened to plain text, and
// elements missing required attributes are skipped with a warning so one bad
// node never aborts an article.
func classifyBlock(s *goquery.Selection) []ContentNode {
	switch name := goquery.NodeName(s); name {
	case "p":
		return paragraphNode(s)

	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := strings.TrimSpace(renderInline(s))
		if text == "" {
			return nil
		}
		return []ContentNode{{Kind: NodeHeading, Level: int(name[1] - '0'), Text: text}}

	case "figure":
		return figureNode(s)

	case "img":
		return imageNode(s, "")

	case "div":
		switch {
		case s.HasClass("highlight"):
			return codeNode(s)
		case s.HasClass("RichText-video"):
			return videoNode(s)
		default:
			// wrapper div, unwrap it
			return parseBlocks(s)
		}

	case "section":
		return parseBlocks(s)

	case "blockquote":
		return blockquoteNode(s)

	case "ul":
		return listNode(s, false)

	case "ol":
		return listNode(s, true)

	case "table":
		return tableNode(s)

	case "pre":
		return codeNode(s)

	case "a":
		return anchorNode(s)

	case "span":
		if s.HasClass("ztext-math") {
			return mathBlockNode(s)
		}
		return flattenNode(s)

	case "hr":
		return []ContentNode{{Kind: NodeText, Text: "---"}}

	case "noscript", "script", "style", "button", "svg":
		return nil

	default:
		return flattenNode(s)
	}
}

func paragraphNode(s *goquery.Selection) []ContentNode {
	// A paragraph whose entire content is a single math span is a display
	// equation, not prose.
	mathSpans := s.ChildrenFiltered("span.ztext-math")
	if mathSpans.Length() == 1 && strings.TrimSpace(s.Text()) == strings.TrimSpace(mathSpans.Text()) {
		return mathBlockNode(mathSpans)
	}

	text := strings.TrimSpace(renderInline(s))
	if text == "" {
		return nil
	}
	return []ContentNode{{Kind: NodeText, Text: text}}
}

func mathBlockNode(s *goquery.Selection) []ContentNode {
	tex := strings.TrimSpace(s.AttrOr("data-tex", ""))
	if tex == "" {
		log.Printf("Warning: math element missing data-tex, skipping")
		return nil
	}
	return []ContentNode{{Kind: NodeMath, Text: tex, Display: true}}
}

func figureNode(s *goquery.Selection) []ContentNode {
	img := s.Find("img").Not("noscript img").First()
	if img.Length() == 0 {
		return flattenNode(s)
	}
	caption := strings.TrimSpace(s.Find("figcaption").First().Text())
	return imageNode(img, caption)
}

func imageNode(img *goquery.Selection, caption string) []ContentNode {
	src := imageSource(img)
	if src == "" {
		log.Printf("Warning: image missing source URL, skipping")
		return nil
	}
	alt := caption
	if alt == "" {
		alt = strings.TrimSpace(img.AttrOr("alt", ""))
	}
	return []ContentNode{{Kind: NodeImage, URL: src, Alt: alt}}
}

// imageSource picks the real image URL. Lazy-loaded images keep the original
// in a data attribute while src points at a placeholder, so the data
// attributes win.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-original", "data-actualsrc", "data-src", "src"} {
		v := strings.TrimSpace(img.AttrOr(attr, ""))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func codeNode(s *goquery.Selection) []ContentNode {
	code := s.Find("code").First()
	if code.Length() == 0 {
		code = s
	}
	text := strings.TrimRight(code.Text(), "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lang := ""
	if m := codeLangPattern.FindStringSubmatch(code.AttrOr("class", "")); m != nil {
		lang = m[1]
	}
	return []ContentNode{{Kind: NodeCode, Lang: lang, Text: text}}
}

func videoNode(s *goquery.Selection) []ContentNode {
	href := s.Find("a[href]").First().AttrOr("href", "")
	if href == "" {
		if id := s.AttrOr("data-lens-id", ""); id != "" {
			href = "https://www.zhihu.com/video/" + id
		}
	}
	if href == "" {
		log.Printf("Warning: video block missing source, skipping")
		return nil
	}
	title := strings.TrimSpace(s.Find(".VideoCard-title").First().Text())
	return []ContentNode{{Kind: NodeVideo, URL: href, Title: title}}
}

func blockquoteNode(s *goquery.Selection) []ContentNode {
	var children []ContentNode
	if s.ChildrenFiltered("p, ul, ol, blockquote, figure").Length() > 0 {
		children = parseBlocks(s)
	} else if text := strings.TrimSpace(renderInline(s)); text != "" {
		children = []ContentNode{{Kind: NodeText, Text: text}}
	}
	if len(children) == 0 {
		return nil
	}
	return []ContentNode{{Kind: NodeBlockquote, Children: children}}
}

func listNode(s *goquery.Selection, ordered bool) []ContentNode {
	var items []string
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if text := strings.TrimSpace(renderInline(li)); text != "" {
			items = append(items, text)
		}
	})
	if len(items) == 0 {
		return nil
	}
	return []ContentNode{{Kind: NodeList, Ordered: ordered, Items: items}}
}

func tableNode(s *goquery.Selection) []ContentNode {
	var rows [][]string
	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(renderInline(cell)))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	if len(rows) == 0 {
		return nil
	}
	return []ContentNode{{Kind: NodeTable, Rows: rows}}
}

func anchorNode(s *goquery.Selection) []ContentNode {
	href := strings.TrimSpace(s.AttrOr("href", ""))

	switch {
	case s.HasClass("LinkCard"):
		if href == "" {
			log.Printf("Warning: link card missing href, skipping")
			return nil
		}
		title := strings.TrimSpace(s.AttrOr("data-text", ""))
		if title == "" {
			title = strings.TrimSpace(s.Find(".LinkCard-title").First().Text())
		}
		return []ContentNode{{Kind: NodeLinkCard, URL: href, Title: title}}

	case s.HasClass("video-box"):
		if href == "" {
			log.Printf("Warning: video link missing href, skipping")
			return nil
		}
		title := strings.TrimSpace(s.Find(".title").First().Text())
		return []ContentNode{{Kind: NodeVideo, URL: href, Title: title}}

	default:
		text := strings.TrimSpace(renderInline(s))
		if text == "" && href == "" {
			return nil
		}
		if text == "" {
			text = href
		}
		if href == "" {
			return []ContentNode{{Kind: NodeText, Text: text}}
		}
		return []ContentNode{{Kind: NodeText, Text: fmt.Sprintf("[%s](%s)", text, href)}}
	}
}

// flattenNode degrades an unsupported element to plain text so its content is
// not lost.
func flattenNode(s *goquery.Selection) []ContentNode {
	text := strings.TrimSpace(renderInline(s))
	if text == "" {
		return nil
	}
	debugLog("flattening unsupported <%s> element to text", goquery.NodeName(s))
	return []ContentNode{{Kind: NodeText, Text: text}}
}

// renderInline converts an element's contents to inline Markdown, handling
// emphasis, links, inline code, line breaks, and inline math.
func renderInline(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			text := whitespaceRun.ReplaceAllString(s.Text(), " ")
			b.WriteString(markdownEscaper.Replace(text))

		case "br":
			b.WriteString("\n")

		case "b", "strong":
			if inner := strings.TrimSpace(renderInline(s)); inner != "" {
				b.WriteString("**" + inner + "**")
			}

		case "i", "em":
			if inner := strings.TrimSpace(renderInline(s)); inner != "" {
				b.WriteString("*" + inner + "*")
			}

		case "code":
			if text := s.Text(); text != "" {
				b.WriteString("`" + text + "`")
			}

		case "a":
			href := strings.TrimSpace(s.AttrOr("href", ""))
			text := strings.TrimSpace(renderInline(s))
			switch {
			case href == "":
				b.WriteString(text)
			case text == "":
				b.WriteString(fmt.Sprintf("[%s](%s)", href, href))
			default:
				b.WriteString(fmt.Sprintf("[%s](%s)", text, href))
			}

		case "span":
			if s.HasClass("ztext-math") {
				tex := strings.TrimSpace(s.AttrOr("data-tex", ""))
				if tex == "" {
					log.Printf("Warning: math element missing data-tex, skipping")
					return
				}
				b.WriteString(translateMath(tex, false))
				return
			}
			b.WriteString(renderInline(s))

		case "img":
			if src := imageSource(s); src != "" {
				b.WriteString(fmt.Sprintf("![%s](%s)", strings.TrimSpace(s.AttrOr("alt", "")), src))
			}

		case "script", "style", "noscript":
			// skip

		default:
			b.WriteString(renderInline(s))
		}
	})
	return b.String()
}

// absoluteURL resolves href against base, returning href unchanged when it
// cannot be resolved.
func absoluteURL(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

// absolutizeNodes rewrites relative and protocol-relative node URLs against
// the article URL so downloads and links work outside the page.
func absolutizeNodes(nodes []ContentNode, base *url.URL) {
	for i := range nodes {
		switch nodes[i].Kind {
		case NodeImage, NodeVideo, NodeLinkCard:
			nodes[i].URL = absoluteURL(base, nodes[i].URL)
		}
		absolutizeNodes(nodes[i].Children, base)
	}
}
