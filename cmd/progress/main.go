package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const progressFileName = ".progress.json"

// batchProgress mirrors the resume state the downloader writes next to
// the articles. This binary is standalone, so the structs are duplicated
// here rather than imported.
type batchProgress struct {
	ColumnID  string         `json:"column_id"`
	Title     string         `json:"title,omitempty"`
	Items     []columnItem   `json:"items"`
	Cursor    int            `json:"cursor"`
	Succeeded []string       `json:"succeeded"`
	Failed    []batchFailure `json:"failed"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type columnItem struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type batchFailure struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: progress <show|reset-failed> <download-directory>")
	}

	command := os.Args[1]
	dir := os.Args[2]

	switch command {
	case "show":
		if err := show(dir); err != nil {
			log.Fatal(err)
		}
	case "reset-failed":
		if err := resetFailed(dir); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

func load(dir string) (*batchProgress, string, error) {
	path := filepath.Join(dir, progressFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading progress file %s: %w", path, err)
	}

	progress := &batchProgress{}
	if err := json.Unmarshal(data, progress); err != nil {
		return nil, "", fmt.Errorf("parsing progress file %s: %w", path, err)
	}
	return progress, path, nil
}

func show(dir string) error {
	progress, _, err := load(dir)
	if err != nil {
		return err
	}

	title := progress.Title
	if title == "" {
		title = progress.ColumnID
	}
	fmt.Printf("%s: %d/%d processed, %d succeeded, %d failed (updated %s)\n",
		title, progress.Cursor, len(progress.Items),
		len(progress.Succeeded), len(progress.Failed),
		progress.UpdatedAt.Format(time.RFC3339))

	succeeded := make(map[string]bool, len(progress.Succeeded))
	for _, id := range progress.Succeeded {
		succeeded[id] = true
	}
	failed := make(map[string]string, len(progress.Failed))
	for _, f := range progress.Failed {
		failed[f.ID] = f.Reason
	}

	for i, item := range progress.Items {
		mark, note := " ", ""
		reason, isFailed := failed[item.ID]
		switch {
		case succeeded[item.ID]:
			mark = "✓"
		case isFailed:
			mark, note = "✗", " ("+reason+")"
		case i >= progress.Cursor:
			mark = "·"
		}

		label := item.Title
		if label == "" {
			label = item.URL
		}
		fmt.Printf("  %s [%d/%d] %s%s\n", mark, i+1, len(progress.Items), label, note)
	}
	return nil
}

// resetFailed rewinds the cursor to the first failed item and clears the
// failure list so the next --resume run retries it. Items after that point
// are processed again and their files overwritten.
func resetFailed(dir string) error {
	progress, path, err := load(dir)
	if err != nil {
		return err
	}
	if len(progress.Failed) == 0 {
		fmt.Println("No failed items to reset")
		return nil
	}

	index := make(map[string]int, len(progress.Items))
	for i, item := range progress.Items {
		index[item.ID] = i
	}

	first := len(progress.Items)
	for _, f := range progress.Failed {
		if i, ok := index[f.ID]; ok && i < first {
			first = i
		}
	}

	kept := make([]string, 0, len(progress.Succeeded))
	for _, id := range progress.Succeeded {
		if i, ok := index[id]; ok && i < first {
			kept = append(kept, id)
		}
	}

	fmt.Printf("Rewinding %s from item %d to %d, clearing %d failures\n",
		progress.ColumnID, progress.Cursor, first, len(progress.Failed))
	progress.Cursor = first
	progress.Succeeded = kept
	progress.Failed = nil
	return save(progress, path)
}

func save(progress *batchProgress, path string) error {
	progress.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return os.Rename(tmp, path)
}
