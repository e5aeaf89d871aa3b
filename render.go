package main

import (
	"fmt"
	"regexp"
	"strings"
)

// invalidFilenameChars matches everything that cannot appear in a filename on
// at least one of the supported platforms.
var invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// validFilename turns an article title into a safe filename stem. Forbidden
// and control characters are dropped, whitespace runs collapse to a single
// space, and the result is truncated to maxRunes runes when maxRunes is
// positive. The same title always yields the same name.
func validFilename(title string, maxRunes int) string {
	name := invalidFilenameChars.ReplaceAllString(title, "")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")

	if maxRunes > 0 {
		if runes := []rune(name); len(runes) > maxRunes {
			name = string(runes[:maxRunes])
		}
	}

	// Windows rejects names ending in dots or spaces.
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return "untitled"
	}
	return name
}

// buildDocument renders a parsed article into its final Markdown document,
// substituting downloaded asset paths where available.
func buildDocument(article *Article, assets map[string]*AssetRef, maxTitleRunes int) *MarkdownDocument {
	var b strings.Builder
	b.WriteString("# " + article.Title + "\n\n")
	if article.Author != "" {
		b.WriteString("**Author:** " + article.Author + "\n\n")
	}
	if article.Date != "" {
		b.WriteString("**Date:** " + article.Date + "\n\n")
	}
	if article.URL != "" {
		b.WriteString("**Link:** " + article.URL + "\n\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(renderNodes(article.Nodes, assets))

	body := strings.TrimRight(b.String(), "\n") + "\n"

	doc := &MarkdownDocument{
		Title:     article.Title,
		SafeTitle: validFilename(article.Title, maxTitleRunes),
		Body:      body,
	}
	for _, n := range article.Nodes {
		collectRefs(n, assets, &doc.Assets)
	}
	return doc
}

func collectRefs(n ContentNode, assets map[string]*AssetRef, out *[]*AssetRef) {
	if n.Kind == NodeImage || n.Kind == NodeVideo {
		if ref, ok := assets[n.URL]; ok {
			*out = append(*out, ref)
		}
	}
	for _, child := range n.Children {
		collectRefs(child, assets, out)
	}
}

// renderNodes serializes nodes in their original order, one block per node,
// separated by blank lines.
func renderNodes(nodes []ContentNode, assets map[string]*AssetRef) string {
	blocks := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if block := renderNode(n, assets); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderNode(n ContentNode, assets map[string]*AssetRef) string {
	switch n.Kind {
	case NodeText:
		return strings.TrimSpace(n.Text)

	case NodeHeading:
		level := n.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		return strings.Repeat("#", level) + " " + strings.TrimSpace(n.Text)

	case NodeImage:
		return fmt.Sprintf("![%s](%s)", n.Alt, assetPath(assets, n.URL))

	case NodeMath:
		return translateMath(n.Text, n.Display)

	case NodeCode:
		return "```" + n.Lang + "\n" + strings.TrimRight(n.Text, "\n") + "\n```"

	case NodeLinkCard:
		title := n.Title
		if title == "" {
			title = n.URL
		}
		return fmt.Sprintf("[%s](%s)", title, n.URL)

	case NodeTable:
		return renderTable(n.Rows)

	case NodeList:
		return renderList(n)

	case NodeBlockquote:
		return quoteLines(renderNodes(n.Children, assets))

	case NodeVideo:
		title := n.Title
		if title == "" {
			title = "video"
		}
		return fmt.Sprintf("[%s](%s)", title, assetPath(assets, n.URL))

	default:
		return ""
	}
}

// assetPath returns the local path for a downloaded asset, falling back to
// the remote URL when the download failed or never ran.
func assetPath(assets map[string]*AssetRef, url string) string {
	if ref, ok := assets[url]; ok && ref.LocalPath != "" {
		return ref.LocalPath
	}
	return url
}

func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	var lines []string
	for i, row := range rows {
		cells := make([]string, cols)
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.ReplaceAll(row[j], "|", `\|`)
			}
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			seps := make([]string, cols)
			for j := range seps {
				seps[j] = "---"
			}
			lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

func renderList(n ContentNode) string {
	lines := make([]string, 0, len(n.Items))
	for i, item := range n.Items {
		if n.Ordered {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
		} else {
			lines = append(lines, "- "+item)
		}
	}
	return strings.Join(lines, "\n")
}

func quoteLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}
