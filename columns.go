package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

const (
	defaultColumnAPIBase = "https://www.zhihu.com"
	columnPageSize       = 20

	// Hard ceiling on listing pages so a server stuck on is_end=false
	// cannot loop forever.
	maxColumnPages = 500
)

// columnMeta is the column metadata endpoint payload, trimmed to the fields
// we use.
type columnMeta struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author struct {
		Name string `json:"name"`
	} `json:"author"`
	ItemsCount int `json:"items_count"`
}

// columnItemsPage is one page of the column listing endpoint.
type columnItemsPage struct {
	Data []struct {
		ID    json.Number `json:"id"`
		Type  string      `json:"type"`
		Title string      `json:"title"`
		URL   string      `json:"url"`
	} `json:"data"`
	Paging struct {
		IsEnd  bool `json:"is_end"`
		Totals int  `json:"totals"`
	} `json:"paging"`
}

// FetchColumnMeta returns the column's display title.
func (f *Fetcher) FetchColumnMeta(ctx context.Context, columnID string) (*columnMeta, error) {
	meta := &columnMeta{}
	url := fmt.Sprintf("%s/api/v4/columns/%s", f.apiBase, columnID)
	if err := f.FetchJSON(ctx, url, meta); err != nil {
		return nil, fmt.Errorf("fetching column metadata: %w", err)
	}
	return meta, nil
}

// FetchColumnItems walks the column listing in listing order, following the
// offset cursor until the API reports the final page.
func (f *Fetcher) FetchColumnItems(ctx context.Context, columnID string) ([]ColumnItem, error) {
	var items []ColumnItem

	offset := 0
	for page := 0; page < maxColumnPages; page++ {
		url := fmt.Sprintf("%s/api/v4/columns/%s/items?limit=%d&offset=%d", f.apiBase, columnID, columnPageSize, offset)
		var listing columnItemsPage
		if err := f.FetchJSON(ctx, url, &listing); err != nil {
			return nil, fmt.Errorf("fetching column page at offset %d: %w", offset, err)
		}

		for _, entry := range listing.Data {
			item := ColumnItem{
				ID:    entry.ID.String(),
				Type:  entry.Type,
				Title: entry.Title,
				URL:   entry.URL,
			}
			if item.URL == "" {
				log.Printf("Warning: column item %s has no URL, skipping", item.ID)
				continue
			}
			items = append(items, item)
		}

		if listing.Paging.IsEnd || len(listing.Data) == 0 {
			break
		}
		offset += len(listing.Data)
	}

	debugLog("column %s listing has %d items", columnID, len(items))
	return items, nil
}
