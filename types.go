package main

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// NodeKind identifies the structural element a ContentNode represents.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeHeading
	NodeImage
	NodeMath
	NodeCode
	NodeLinkCard
	NodeTable
	NodeList
	NodeBlockquote
	NodeVideo
)

// ContentNode is one typed element of an article body. The parser emits nodes
// in document order and every node carries what is needed to render it alone.
type ContentNode struct {
	Kind NodeKind

	// Text holds inline Markdown for Text and Heading nodes, the raw TeX
	// expression for Math nodes, and the source for Code nodes.
	Text string

	Level    int           // Heading level, 1-6
	URL      string        // Image, LinkCard, Video
	Alt      string        // Image alt text
	Title    string        // LinkCard and Video title
	Lang     string        // Code block language
	Display  bool          // Math display mode
	Ordered  bool          // List numbering
	Items    []string      // List items as inline Markdown
	Rows     [][]string    // Table rows; the first row is the header
	Children []ContentNode // Blockquote contents
}

// ArticleSource is a fetched page before parsing.
type ArticleSource struct {
	URL string
	Doc *goquery.Document
}

// Article is the parsed intermediate form of a single page.
type Article struct {
	URL    string
	Title  string
	Author string
	Date   string
	Nodes  []ContentNode
}

// AssetRef maps a remote asset URL to its downloaded local file.
type AssetRef struct {
	URL       string
	LocalPath string // relative path such as images/1a2b3c4d5e6f.jpg; empty when unresolved
	Hash      string // sha256 of the downloaded content
	Err       error  // download failure, if any
}

// MarkdownDocument is the final rendered output for one article.
type MarkdownDocument struct {
	Title     string
	SafeTitle string
	Body      string
	Assets    []*AssetRef
}

// ColumnItem is one entry of a column's article listing, in listing order.
type ColumnItem struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ProcessingStatus represents the outcome status of processing an article
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusSkipped ProcessingStatus = "skipped"
	StatusError   ProcessingStatus = "error"
)

// ProcessingResult tracks the outcome of processing each URL
type ProcessingResult struct {
	URL      string
	Status   ProcessingStatus
	Title    string
	Filename string
	Error    error
}

// BatchState describes where a column download stands.
type BatchState int

const (
	BatchNotStarted BatchState = iota
	BatchInProgress
	BatchCompleted
	BatchPartiallyCompleted
)

func (s BatchState) String() string {
	switch s {
	case BatchNotStarted:
		return "not started"
	case BatchInProgress:
		return "in progress"
	case BatchCompleted:
		return "completed"
	case BatchPartiallyCompleted:
		return "partially completed"
	default:
		return "unknown"
	}
}

// BatchFailure records one article that could not be converted.
type BatchFailure struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// BatchResult is returned to the caller when a batch finishes or aborts.
type BatchResult struct {
	ColumnID    string
	Title       string
	State       BatchState
	Succeeded   []string
	Failed      []BatchFailure
	ArchivePath string
	StartedAt   time.Time
	FinishedAt  time.Time
}
