package main

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testProcessor wires a processor to an httptest server with a throwaway
// output directory.
func testProcessor(t *testing.T, server *httptest.Server) *ArticleProcessor {
	t.Helper()

	settings := testSettings()
	settings.OutputDirectory = t.TempDir()
	return &ArticleProcessor{
		fetcher:  testFetcher(t, server, ""),
		parsers:  []Parser{&ZhihuParser{}, &LMSYSParser{}, NewDocsParser()},
		settings: settings,
	}
}

func docsPage(title, body string) string {
	return fmt.Sprintf(`<html><head><meta property="og:title" content="%s"></head><body><article><p>%s</p></article></body></html>`, title, body)
}

func docsServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)
	return server
}

// zipNames lists the entry names of an archive.
func zipNames(t *testing.T, zipPath string) map[string]bool {
	t.Helper()

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("opening archive %s: %v", zipPath, err)
	}
	defer r.Close()

	names := make(map[string]bool, len(r.File))
	for _, f := range r.File {
		names[f.Name] = true
	}
	return names
}

func TestFindParser(t *testing.T) {
	p := &ArticleProcessor{parsers: []Parser{&ZhihuParser{}, &LMSYSParser{}, NewDocsParser()}}

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"zhihu answer", "https://www.zhihu.com/question/1/answer/2", "*main.ZhihuParser"},
		{"zhuanlan article", "https://zhuanlan.zhihu.com/p/612345678", "*main.ZhihuParser"},
		{"lmsys blog", "https://lmsys.org/blog/2023-05-03-arena/", "*main.LMSYSParser"},
		{"docs site", "https://docs.pytorch.org/stable/torch.html", "*main.DocsParser"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := p.findParser(tt.url)
			if err != nil {
				t.Fatalf("findParser() error = %v", err)
			}
			if got := fmt.Sprintf("%T", parser); got != tt.want {
				t.Errorf("findParser() = %s, want %s", got, tt.want)
			}
		})
	}

	_, err := p.findParser("https://example.com/random-page")
	if !errors.Is(err, ErrUnsupportedURL) {
		t.Errorf("findParser() error = %v, want ErrUnsupportedURL", err)
	}
}

func TestProcessArticleWritesMarkdown(t *testing.T) {
	server := docsServer(t, map[string]string{
		"/docs/guide": docsPage("Install Guide", "Run the installer."),
	})

	p := testProcessor(t, server)
	dir := t.TempDir()
	res := p.ProcessArticle(context.Background(), server.URL+"/docs/guide", dir)
	if res.Error != nil {
		t.Fatalf("ProcessArticle() error = %v", res.Error)
	}

	if res.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", res.Status, StatusSuccess)
	}
	if res.Filename != "Install Guide.md" {
		t.Errorf("Filename = %q, want %q", res.Filename, "Install Guide.md")
	}

	body, err := os.ReadFile(filepath.Join(dir, res.Filename))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(body), "# Install Guide") {
		t.Errorf("Output missing title header: %q", body)
	}
	if !strings.Contains(string(body), "Run the installer.") {
		t.Errorf("Output missing content: %q", body)
	}
}

func TestDownloadArticleCreatesArchive(t *testing.T) {
	server := docsServer(t, map[string]string{
		"/docs/guide": docsPage("Install Guide", "Run the installer."),
	})

	p := testProcessor(t, server)
	target, err := p.DownloadArticle(context.Background(), server.URL+"/docs/guide")
	if err != nil {
		t.Fatalf("DownloadArticle() error = %v", err)
	}

	if filepath.Base(target) != "Install Guide.zip" {
		t.Errorf("target = %q, want Install Guide.zip", target)
	}
	names := zipNames(t, target)
	if !names["Install Guide.md"] {
		t.Errorf("Archive entries = %v, want Install Guide.md", names)
	}

	// The staging directory is removed, leaving only the archive
	entries, err := os.ReadDir(p.settings.OutputDirectory)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Output directory holds %d entries, want only the archive", len(entries))
	}
}

func TestDownloadArticleNoZip(t *testing.T) {
	server := docsServer(t, map[string]string{
		"/docs/guide": docsPage("Install Guide", "Run the installer."),
	})

	p := testProcessor(t, server)
	p.settings.NoZip = true

	target, err := p.DownloadArticle(context.Background(), server.URL+"/docs/guide")
	if err != nil {
		t.Fatalf("DownloadArticle() error = %v", err)
	}

	if filepath.Base(target) != "Install Guide" {
		t.Errorf("target = %q, want a directory named Install Guide", target)
	}
	if _, err := os.Stat(filepath.Join(target, "Install Guide.md")); err != nil {
		t.Errorf("Markdown file missing from output directory: %v", err)
	}
}

func TestDownloadArticleUnsupportedURL(t *testing.T) {
	p := &ArticleProcessor{
		parsers:  []Parser{&ZhihuParser{}, &LMSYSParser{}, NewDocsParser()},
		settings: testSettings(),
	}
	p.settings.OutputDirectory = t.TempDir()

	_, err := p.DownloadArticle(context.Background(), "https://example.com/random-page")
	if !errors.Is(err, ErrUnsupportedURL) {
		t.Errorf("DownloadArticle() error = %v, want ErrUnsupportedURL", err)
	}
}

// TestArticlePipeline walks one page through every stage by hand: fetch,
// parse, asset download, render, archive.
func TestArticlePipeline(t *testing.T) {
	imagePayload := append(append([]byte{}, pngMagic...), []byte("chart")...)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/post":
			fmt.Fprintf(w, `<html><head><meta itemprop="datePublished" content="2024-01-15"></head><body>
<h1 class="Post-Title">梯度下降笔记</h1>
<div class="AuthorInfo"><span class="AuthorInfo-name">作者甲</span></div>
<div class="Post-RichTextContainer"><div class="RichText">
<h2>定义</h2>
<p>更新规则含 <span class="ztext-math" data-tex="x^2">x^2</span> 项。</p>
<figure><img src="%s/chart.png" alt="损失曲线"></figure>
</div></div>
</body></html>`, server.URL)
		case "/chart.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(imagePayload)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	f := testFetcher(t, server, "")

	doc, err := f.FetchDocument(ctx, server.URL+"/post")
	if err != nil {
		t.Fatalf("FetchDocument() error = %v", err)
	}

	article, err := (&ZhihuParser{}).Parse(&ArticleSource{URL: server.URL + "/post", Doc: doc})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if article.Title != "梯度下降笔记" || article.Author != "作者甲" || article.Date != "2024-01-15" {
		t.Errorf("Parsed header = %q %q %q", article.Title, article.Author, article.Date)
	}

	staging := t.TempDir()
	assets := NewAssetDownloader(f, staging, 2).Resolve(ctx, article.Nodes)

	ref := assets[server.URL+"/chart.png"]
	if ref == nil || ref.Err != nil {
		t.Fatalf("Image not downloaded: %+v", ref)
	}

	rendered := buildDocument(article, assets, 50)
	if rendered.SafeTitle != "梯度下降笔记" {
		t.Errorf("SafeTitle = %q", rendered.SafeTitle)
	}
	for _, want := range []string{
		"# 梯度下降笔记",
		"**Author:** 作者甲",
		"**Date:** 2024-01-15",
		"## 定义",
		"$x^2$",
		"![损失曲线](" + ref.LocalPath + ")",
	} {
		if !strings.Contains(rendered.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, rendered.Body)
		}
	}

	mdName := rendered.SafeTitle + ".md"
	if err := os.WriteFile(filepath.Join(staging, mdName), []byte(rendered.Body), 0644); err != nil {
		t.Fatal(err)
	}

	zipPath := filepath.Join(t.TempDir(), rendered.SafeTitle+".zip")
	if err := writeArchive(staging, zipPath); err != nil {
		t.Fatalf("writeArchive() error = %v", err)
	}

	names := zipNames(t, zipPath)
	if !names[mdName] {
		t.Errorf("Archive missing %q: %v", mdName, names)
	}
	if !names[ref.LocalPath] {
		t.Errorf("Archive missing image %q: %v", ref.LocalPath, names)
	}
}
