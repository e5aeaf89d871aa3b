package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const progressFileName = ".progress.json"

// BatchProgress records where a column download stands so an interrupted run
// can pick up from its cursor. It is persisted after every article.
type BatchProgress struct {
	ColumnID  string         `json:"column_id"`
	Title     string         `json:"title,omitempty"`
	Items     []ColumnItem   `json:"items"`
	Cursor    int            `json:"cursor"`
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newBatchProgress(columnID, title string, items []ColumnItem) *BatchProgress {
	return &BatchProgress{ColumnID: columnID, Title: title, Items: items}
}

// State derives the lifecycle state from the cursor and per-item outcomes.
func (p *BatchProgress) State() BatchState {
	switch {
	case p.Cursor <= 0 && len(p.Succeeded) == 0 && len(p.Failed) == 0:
		return BatchNotStarted
	case p.Cursor < len(p.Items):
		return BatchInProgress
	case len(p.Failed) > 0:
		return BatchPartiallyCompleted
	default:
		return BatchCompleted
	}
}

// Current returns the item at the cursor.
func (p *BatchProgress) Current() ColumnItem {
	return p.Items[p.Cursor]
}

// RecordSuccess marks the item at the cursor as converted and advances.
func (p *BatchProgress) RecordSuccess(id string) {
	p.Succeeded = append(p.Succeeded, id)
	p.Cursor++
}

// RecordFailure marks the item at the cursor as failed and advances, so one
// bad article never blocks the rest of the batch.
func (p *BatchProgress) RecordFailure(id, url, reason string) {
	p.Failed = append(p.Failed, BatchFailure{ID: id, URL: url, Reason: reason})
	p.Cursor++
}

// loadProgress reads a progress file. A missing file returns nil without
// error; a corrupt file is an error so a half-written state is never silently
// restarted from scratch.
func loadProgress(path string) (*BatchProgress, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress file: %w", err)
	}

	progress := &BatchProgress{}
	if err := json.Unmarshal(data, progress); err != nil {
		return nil, fmt.Errorf("decoding progress file: %w", err)
	}
	if progress.Cursor > len(progress.Items) {
		progress.Cursor = len(progress.Items)
	}
	if progress.Cursor < 0 {
		progress.Cursor = 0
	}
	return progress, nil
}

// Save writes the progress file atomically via a temp file and rename, so a
// crash mid-write cannot tear the previous state.
func (p *BatchProgress) Save(path string) error {
	p.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing progress file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing progress file: %w", err)
	}
	return nil
}
