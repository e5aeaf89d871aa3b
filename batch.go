package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// maxAuthFailures is how many consecutive cookie rejections a batch tolerates
// before concluding the session is dead and aborting.
const maxAuthFailures = 3

// ColumnDownloader drives multi-article downloads with persisted, resumable
// progress. One article failing is recorded and skipped; only repeated
// authentication failures or a persistence failure abort the whole batch.
type ColumnDownloader struct {
	processor *ArticleProcessor
	delay     time.Duration
	authLimit int
}

func NewColumnDownloader(processor *ArticleProcessor) *ColumnDownloader {
	return &ColumnDownloader{
		processor: processor,
		delay:     time.Duration(processor.settings.ArticleDelayMs) * time.Millisecond,
		authLimit: maxAuthFailures,
	}
}

// DownloadColumn converts every article of a column into one directory and
// archives it. With resume enabled, a progress file from an earlier
// interrupted run is picked up and already-processed items are not refetched.
func (d *ColumnDownloader) DownloadColumn(ctx context.Context, id string, resume bool) (*BatchResult, error) {
	dir := filepath.Join(d.processor.settings.OutputDirectory, id)
	progressPath := filepath.Join(dir, progressFileName)

	progress, err := d.loadResumable(progressPath, id, resume)
	if err != nil {
		return nil, err
	}

	if progress == nil {
		title := ""
		if meta, err := d.processor.fetcher.FetchColumnMeta(ctx, id); err != nil {
			log.Printf("Warning: cannot fetch column metadata: %v", err)
		} else {
			title = meta.Title
		}

		items, err := d.processor.fetcher.FetchColumnItems(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("listing column %s: %w", id, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("column %s has no items", id)
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating column directory: %w", err)
		}
		progress = newBatchProgress(id, title, items)
		if err := progress.Save(progressPath); err != nil {
			return nil, err
		}
		log.Printf("→ Column %s: %d items", id, len(items))
	}

	result, err := d.run(ctx, progress, dir, progressPath, nil)
	if err != nil {
		return result, err
	}
	return d.archive(result, progress, dir)
}

// DownloadSection converts a documentation page plus the pages its sidebar
// links to, up to maxPages, into one archived directory.
func (d *ColumnDownloader) DownloadSection(ctx context.Context, startURL string, maxPages int, resume bool) (*BatchResult, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	if limit := d.processor.settings.MaxSectionPages; limit > 0 && maxPages > limit {
		log.Printf("Warning: max-pages %d exceeds the configured limit, using %d", maxPages, limit)
		maxPages = limit
	}

	id := sectionID(startURL)
	dir := filepath.Join(d.processor.settings.OutputDirectory, id)
	progressPath := filepath.Join(dir, progressFileName)

	progress, err := d.loadResumable(progressPath, id, resume)
	if err != nil {
		return nil, err
	}

	if progress == nil {
		doc, err := d.processor.fetcher.FetchDocument(ctx, startURL)
		if err != nil {
			return nil, fmt.Errorf("fetching section start page: %w", err)
		}

		items := []ColumnItem{{ID: shortHash(startURL), Type: "docs", URL: startURL}}
		for _, link := range findRelatedLinks(doc, startURL) {
			if len(items) >= maxPages {
				break
			}
			items = append(items, ColumnItem{ID: shortHash(link), Type: "docs", URL: link})
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating section directory: %w", err)
		}
		progress = newBatchProgress(id, docsTitle(doc), items)
		if err := progress.Save(progressPath); err != nil {
			return nil, err
		}
		log.Printf("→ Section %q: %d pages", progress.Title, len(items))
	}

	// Pages after the first get a numeric prefix to keep section order
	// visible in the filenames.
	result, err := d.run(ctx, progress, dir, progressPath, func(i int) string {
		if i == 0 {
			return ""
		}
		return fmt.Sprintf("%02d_", i)
	})
	if err != nil {
		return result, err
	}
	return d.archive(result, progress, dir)
}

func (d *ColumnDownloader) loadResumable(progressPath, id string, resume bool) (*BatchProgress, error) {
	if !resume {
		return nil, nil
	}
	progress, err := loadProgress(progressPath)
	if err != nil {
		return nil, err
	}
	if progress == nil || progress.ColumnID != id {
		return nil, nil
	}
	log.Printf("→ Resuming %s at item %d/%d", id, progress.Cursor+1, len(progress.Items))
	return progress, nil
}

func (d *ColumnDownloader) run(ctx context.Context, progress *BatchProgress, dir, progressPath string, prefix func(int) string) (*BatchResult, error) {
	result := &BatchResult{
		ColumnID:  progress.ColumnID,
		Title:     progress.Title,
		StartedAt: time.Now(),
	}

	authFailures := 0
	total := len(progress.Items)

	for progress.Cursor < total {
		if err := ctx.Err(); err != nil {
			// Aborted between articles; the progress on disk is intact,
			// so a later --resume run continues from here.
			d.finish(result, progress)
			return result, err
		}

		item := progress.Current()
		k := progress.Cursor + 1
		log.Printf("→ [%d/%d] %s", k, total, itemLabel(item))

		pfx := ""
		if prefix != nil {
			pfx = prefix(progress.Cursor)
		}

		res := d.processor.processInto(ctx, item.URL, dir, pfx)
		if res.Error != nil {
			if isAuthError(res.Error) {
				authFailures++
			} else {
				authFailures = 0
			}
			progress.RecordFailure(item.ID, item.URL, res.Error.Error())
			log.Printf("✗ [%d/%d] %s: %v", k, total, itemLabel(item), res.Error)
		} else {
			authFailures = 0
			progress.RecordSuccess(item.ID)
			log.Printf("✓ [%d/%d] %s", k, total, res.Filename)
		}

		// Persist after every item. If the state cannot be saved, resuming
		// would reprocess or lose items, so give up instead of limping on.
		if err := progress.Save(progressPath); err != nil {
			d.finish(result, progress)
			return result, err
		}

		if authFailures >= d.authLimit {
			d.finish(result, progress)
			return result, fmt.Errorf("aborting after %d consecutive authentication failures: refresh the session cookie", authFailures)
		}

		if progress.Cursor < total && d.delay > 0 {
			select {
			case <-time.After(d.delay):
			case <-ctx.Done():
			}
		}
	}

	d.finish(result, progress)
	return result, nil
}

func (d *ColumnDownloader) finish(result *BatchResult, progress *BatchProgress) {
	result.State = progress.State()
	result.Succeeded = progress.Succeeded
	result.Failed = progress.Failed
	result.FinishedAt = time.Now()
}

func (d *ColumnDownloader) archive(result *BatchResult, progress *BatchProgress, dir string) (*BatchResult, error) {
	if d.processor.settings.NoZip {
		result.ArchivePath = dir
		return result, nil
	}

	name := progress.Title
	if name == "" {
		name = progress.ColumnID
	}
	zipPath := filepath.Join(d.processor.settings.OutputDirectory, validFilename(name, d.processor.settings.titleLimit())+".zip")
	if err := writeArchive(dir, zipPath); err != nil {
		return result, err
	}
	result.ArchivePath = zipPath
	log.Printf("✓ Archived %d articles to %s", len(result.Succeeded), zipPath)
	return result, nil
}

func itemLabel(item ColumnItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.URL
}
