// processor.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ArticleProcessor handles the main workflow: fetch a page, parse it into
// nodes, download its assets, and render the Markdown file.
type ArticleProcessor struct {
	fetcher  *Fetcher
	parsers  []Parser
	settings *Settings
}

// NewArticleProcessor creates a processor with all page parsers registered,
// most specific first.
func NewArticleProcessor(cookie string, overrides *ConfigOverrides) (*ArticleProcessor, error) {
	// Ensure embedded config files are written to config/ on first run
	if err := ensureConfigExists(); err != nil {
		return nil, fmt.Errorf("ensuring config files exist: %w", err)
	}

	settings, err := loadSettingsWithOverrides(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	return &ArticleProcessor{
		fetcher:  NewFetcher(settings, cookie),
		parsers:  []Parser{&ZhihuParser{}, &LMSYSParser{}, NewDocsParser()},
		settings: settings,
	}, nil
}

// findParser returns the first registered parser that recognizes pageURL.
func (ap *ArticleProcessor) findParser(pageURL string) (Parser, error) {
	for _, p := range ap.parsers {
		if p.CanParse(pageURL) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, pageURL)
}

// ProcessArticle converts one article into a Markdown file plus downloaded
// assets inside dir.
func (ap *ArticleProcessor) ProcessArticle(ctx context.Context, pageURL, dir string) ProcessingResult {
	return ap.processInto(ctx, pageURL, dir, "")
}

// processInto runs the pipeline for one page. The optional prefix lands in
// front of the filename so section downloads keep their page order.
func (ap *ArticleProcessor) processInto(ctx context.Context, pageURL, dir, prefix string) ProcessingResult {
	parser, err := ap.findParser(pageURL)
	if err != nil {
		return ProcessingResult{URL: pageURL, Status: StatusError, Error: err}
	}

	log.Printf("  → Fetching page...")
	doc, err := ap.fetcher.FetchDocument(ctx, pageURL)
	if err != nil {
		return ProcessingResult{URL: pageURL, Status: StatusError, Error: fmt.Errorf("fetching page: %w", err)}
	}

	article, err := parser.Parse(&ArticleSource{URL: pageURL, Doc: doc})
	if err != nil {
		return ProcessingResult{URL: pageURL, Status: StatusError, Error: fmt.Errorf("parsing article: %w", err)}
	}
	debugLog("parsed %q into %d nodes", article.Title, len(article.Nodes))

	downloader := NewAssetDownloader(ap.fetcher, dir, ap.settings.AssetConcurrency)
	assets := downloader.Resolve(ctx, article.Nodes)

	rendered := buildDocument(article, assets, ap.settings.titleLimit())
	filename := prefix + rendered.SafeTitle + ".md"

	log.Printf("  → Saving to: %s", filename)
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(rendered.Body), 0644); err != nil {
		return ProcessingResult{URL: pageURL, Status: StatusError, Error: fmt.Errorf("saving article: %w", err)}
	}

	return ProcessingResult{
		URL:      pageURL,
		Status:   StatusSuccess,
		Title:    article.Title,
		Filename: filename,
	}
}

// DownloadArticle converts a single page end to end and returns the path of
// the produced archive, or of the output directory when zipping is disabled.
// Unlike batch mode, any failure aborts immediately.
func (ap *ArticleProcessor) DownloadArticle(ctx context.Context, pageURL string) (string, error) {
	if err := os.MkdirAll(ap.settings.OutputDirectory, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	staging, err := newStagingDir(ap.settings.OutputDirectory)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	res := ap.ProcessArticle(ctx, pageURL, staging)
	if res.Error != nil {
		return "", res.Error
	}

	stem := strings.TrimSuffix(res.Filename, ".md")
	if ap.settings.NoZip {
		target := filepath.Join(ap.settings.OutputDirectory, stem)
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("clearing previous output: %w", err)
		}
		if err := os.Rename(staging, target); err != nil {
			return "", fmt.Errorf("moving output into place: %w", err)
		}
		return target, nil
	}

	zipPath := filepath.Join(ap.settings.OutputDirectory, stem+".zip")
	if err := writeArchive(staging, zipPath); err != nil {
		return "", err
	}
	return zipPath, nil
}
