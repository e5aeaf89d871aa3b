package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestResolveDownloadsImages(t *testing.T) {
	payload := append(append([]byte{}, pngMagic...), []byte("image-bytes")...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewAssetDownloader(testFetcher(t, server, ""), dir, 2)

	imageURL := server.URL + "/chart.png"
	refs := d.Resolve(context.Background(), []ContentNode{{Kind: NodeImage, URL: imageURL}})

	ref := refs[imageURL]
	if ref == nil {
		t.Fatal("Resolve() did not return a ref for the image")
	}
	if ref.Err != nil {
		t.Fatalf("ref.Err = %v", ref.Err)
	}
	if !strings.HasPrefix(ref.LocalPath, "images/") || !strings.HasSuffix(ref.LocalPath, ".png") {
		t.Errorf("LocalPath = %q, want images/<hash>.png", ref.LocalPath)
	}
	if ref.Hash == "" {
		t.Error("ref.Hash not set")
	}

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref.LocalPath)))
	if err != nil {
		t.Fatalf("reading stored asset: %v", err)
	}
	if string(stored) != string(payload) {
		t.Error("Stored asset bytes differ from the served payload")
	}
}

func TestResolveFetchesDuplicateURLOnce(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("same"))
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewAssetDownloader(testFetcher(t, server, ""), dir, 2)

	imageURL := server.URL + "/repeated.png"
	nodes := []ContentNode{
		{Kind: NodeImage, URL: imageURL},
		{Kind: NodeText, Text: "between"},
		{Kind: NodeImage, URL: imageURL},
	}
	refs := d.Resolve(context.Background(), nodes)

	if requests != 1 {
		t.Errorf("Server saw %d requests, want 1 for a repeated URL", requests)
	}
	if len(refs) != 1 {
		t.Errorf("Resolve() returned %d refs, want 1", len(refs))
	}
}

func TestResolveReusesIdenticalContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("identical-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewAssetDownloader(testFetcher(t, server, ""), dir, 2)

	first := server.URL + "/one.png"
	second := server.URL + "/two.png"
	refs := d.Resolve(context.Background(), []ContentNode{
		{Kind: NodeImage, URL: first},
		{Kind: NodeImage, URL: second},
	})

	if refs[first].Err != nil || refs[second].Err != nil {
		t.Fatalf("unexpected errors: %v, %v", refs[first].Err, refs[second].Err)
	}
	if refs[first].LocalPath != refs[second].LocalPath {
		t.Errorf("Identical content stored twice: %q vs %q", refs[first].LocalPath, refs[second].LocalPath)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("reading asset dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Asset dir holds %d files, want 1", len(entries))
	}
}

func TestResolveRecordsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewAssetDownloader(testFetcher(t, server, ""), dir, 2)

	good := server.URL + "/good.png"
	bad := server.URL + "/bad.png"
	refs := d.Resolve(context.Background(), []ContentNode{
		{Kind: NodeImage, URL: good},
		{Kind: NodeImage, URL: bad},
	})

	if refs[good].Err != nil {
		t.Errorf("Good asset failed: %v", refs[good].Err)
	}
	if refs[good].LocalPath == "" {
		t.Error("Good asset has no local path")
	}
	if refs[bad].Err == nil {
		t.Error("Bad asset should carry its download error")
	}
	if refs[bad].LocalPath != "" {
		t.Errorf("Bad asset has local path %q, want none", refs[bad].LocalPath)
	}
}

func TestCollectAssetURLs(t *testing.T) {
	nodes := []ContentNode{
		{Kind: NodeImage, URL: "https://pic1.zhimg.com/a.jpg"},
		{Kind: NodeVideo, URL: "https://vdn.zhihu.com/clip.mp4"},
		{Kind: NodeVideo, URL: "https://www.zhihu.com/video/123456"},
		{Kind: NodeImage, URL: "https://pic1.zhimg.com/a.jpg"},
		{Kind: NodeBlockquote, Children: []ContentNode{
			{Kind: NodeImage, URL: "https://pic1.zhimg.com/nested.png"},
		}},
	}

	got := collectAssetURLs(nodes)
	want := []string{
		"https://pic1.zhimg.com/a.jpg",
		"https://vdn.zhihu.com/clip.mp4",
		"https://pic1.zhimg.com/nested.png",
	}

	if len(got) != len(want) {
		t.Fatalf("collectAssetURLs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAssetExtension(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		data        []byte
		want        string
	}{
		{"https://pic1.zhimg.com/photo.jpeg", "", nil, ".jpg"},
		{"https://pic1.zhimg.com/photo.PNG", "", nil, ".png"},
		{"https://pic1.zhimg.com/clip.mp4", "", nil, ".mp4"},
		{"https://pic1.zhimg.com/equation", "image/webp", nil, ".webp"},
		{"https://pic1.zhimg.com/equation", "image/png; charset=utf-8", nil, ".png"},
		{"https://pic1.zhimg.com/equation", "", pngMagic, ".png"},
		{"https://pic1.zhimg.com/equation", "", nil, ".jpg"},
	}

	for _, tt := range tests {
		if got := assetExtension(tt.url, tt.contentType, tt.data); got != tt.want {
			t.Errorf("assetExtension(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}

func TestResolveNoAssets(t *testing.T) {
	dir := t.TempDir()
	d := NewAssetDownloader(nil, dir, 2)

	refs := d.Resolve(context.Background(), []ContentNode{{Kind: NodeText, Text: "prose only"}})
	if refs != nil {
		t.Errorf("Resolve() = %v, want nil for asset-free nodes", refs)
	}

	if _, err := os.Stat(filepath.Join(dir, "images")); !os.IsNotExist(err) {
		t.Error("Asset directory created even though nothing was downloaded")
	}
}
