package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const assetSubdir = "images"

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".bmp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true,
}

// AssetDownloader fetches the assets referenced by an article into a local
// directory, deduplicating by URL and by content.
type AssetDownloader struct {
	fetcher     *Fetcher
	dir         string // article staging directory; files land in dir/images
	concurrency int
}

func NewAssetDownloader(fetcher *Fetcher, dir string, concurrency int) *AssetDownloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AssetDownloader{fetcher: fetcher, dir: dir, concurrency: concurrency}
}

// Resolve downloads every distinct asset URL referenced by nodes, with at
// most concurrency downloads in flight. Each URL is fetched once no matter
// how often it appears, and identical bytes arriving under different URLs
// share one file. Failed downloads are recorded on their ref and never abort
// the article.
func (d *AssetDownloader) Resolve(ctx context.Context, nodes []ContentNode) map[string]*AssetRef {
	urls := collectAssetURLs(nodes)
	if len(urls) == 0 {
		return nil
	}

	refs := make(map[string]*AssetRef, len(urls))
	for _, u := range urls {
		refs[u] = &AssetRef{URL: u}
	}

	if err := os.MkdirAll(filepath.Join(d.dir, assetSubdir), 0755); err != nil {
		log.Printf("Warning: cannot create asset directory: %v", err)
		for _, ref := range refs {
			ref.Err = err
		}
		return refs
	}

	var mu sync.Mutex
	byContent := make(map[string]string) // content hash -> local path

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, u := range urls {
		ref := refs[u]
		g.Go(func() error {
			d.download(ctx, ref, byContent, &mu)
			return nil
		})
	}
	_ = g.Wait() // individual failures stay on their refs

	return refs
}

func (d *AssetDownloader) download(ctx context.Context, ref *AssetRef, byContent map[string]string, mu *sync.Mutex) {
	data, contentType, err := d.fetcher.FetchBytes(ctx, ref.URL)
	if err != nil {
		ref.Err = err
		log.Printf("Warning: failed to download %s: %v", ref.URL, err)
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	name := urlHash(ref.URL) + assetExtension(ref.URL, contentType, data)
	localPath := path.Join(assetSubdir, name)

	mu.Lock()
	defer mu.Unlock()

	if existing, ok := byContent[hash]; ok {
		// Same bytes already stored under another URL, reuse that file.
		ref.Hash = hash
		ref.LocalPath = existing
		return
	}

	if err := os.WriteFile(filepath.Join(d.dir, assetSubdir, name), data, 0644); err != nil {
		ref.Err = fmt.Errorf("storing asset: %w", err)
		log.Printf("Warning: failed to store %s: %v", ref.URL, err)
		return
	}

	ref.Hash = hash
	ref.LocalPath = localPath
	byContent[hash] = localPath
	debugLog("stored asset %s as %s", ref.URL, localPath)
}

// collectAssetURLs walks nodes in order and returns each downloadable asset
// URL once, in first-reference order. Images always qualify; videos only when
// the URL points at a media file rather than a player page.
func collectAssetURLs(nodes []ContentNode) []string {
	var urls []string
	seen := make(map[string]bool)

	var walk func([]ContentNode)
	walk = func(nodes []ContentNode) {
		for _, n := range nodes {
			var u string
			switch n.Kind {
			case NodeImage:
				u = n.URL
			case NodeVideo:
				if hasMediaExtension(n.URL) {
					u = n.URL
				}
			}
			if u != "" && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return urls
}

func hasMediaExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return videoExtensions[strings.ToLower(path.Ext(u.Path))]
}

// assetExtension picks a file extension from the URL path when it carries a
// recognized one, otherwise from the response content type.
func assetExtension(rawURL, contentType string, data []byte) string {
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if ext == ".jpeg" {
			ext = ".jpg"
		}
		if imageExtensions[ext] || videoExtensions[ext] {
			return ext
		}
	}

	ct := contentType
	if ct == "" && len(data) > 0 {
		ct = http.DetectContentType(data)
	}
	if mediatype, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediatype
	}
	switch ct {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "video/mp4":
		return ".mp4"
	}
	return ".jpg"
}

// urlHash is the filename stem for an asset, derived from its URL so the
// same URL always maps to the same file.
func urlHash(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:12]
}

// shortHash derives a compact stable identifier from s.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
