package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// newStagingDir creates a unique working directory for one conversion so
// concurrent runs never write into the same staging path.
func newStagingDir(outputDir string) (string, error) {
	dir := filepath.Join(outputDir, "staging-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// writeArchive zips the contents of dir into zipPath. Entry paths are
// relative to dir with forward slashes. Internal state files stay out of the
// archive, and a failed write never leaves a partial zip behind.
func writeArchive(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", zipPath, err)
	}
	zw := zip.NewWriter(out)

	err = filepath.Walk(dir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if skipArchiveEntry(rel) {
			return nil
		}

		w, createErr := zw.Create(rel)
		if createErr != nil {
			return createErr
		}
		f, openErr := os.Open(p)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		_, copyErr := io.Copy(w, f)
		return copyErr
	})

	if err == nil {
		err = zw.Close()
	} else {
		zw.Close()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(zipPath)
		return fmt.Errorf("writing archive %s: %w", zipPath, err)
	}
	return nil
}

func skipArchiveEntry(rel string) bool {
	base := filepath.Base(rel)
	return base == progressFileName || strings.HasSuffix(base, ".tmp")
}
