package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sethvargo/go-retry"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	acceptLanguage = "en,zh-CN;q=0.9,zh;q=0.8"
	retryBaseDelay = 500 * time.Millisecond
	maxRetryAfter  = 30 * time.Second
)

// Fetcher retrieves pages and assets over HTTP with a shared session cookie,
// request pacing, and retry on transient failures.
type Fetcher struct {
	client     *http.Client
	cookie     string
	cookieHost string // cookie is only sent to this host and its subdomains
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	apiBase    string
}

// NewFetcher creates a fetcher configured from settings. The cookie may be
// empty, in which case only public pages are reachable.
func NewFetcher(settings *Settings, cookie string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: time.Duration(settings.TimeoutSeconds) * time.Second,
		},
		cookie:     cookie,
		cookieHost: "zhihu.com",
		userAgent:  settings.UserAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Duration(settings.RequestDelayMs)*time.Millisecond), 1),
		maxRetries: settings.MaxRetries,
		apiBase:    defaultColumnAPIBase,
	}
}

func (f *Fetcher) newRequest(ctx context.Context, pageURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	if f.cookie != "" && f.hostMatches(req.URL.Hostname()) {
		req.Header.Set("Cookie", f.cookie)
	}
	return req, nil
}

func (f *Fetcher) hostMatches(host string) bool {
	return host == f.cookieHost || strings.HasSuffix(host, "."+f.cookieHost)
}

// FetchBytes downloads pageURL and returns the body and Content-Type.
//
// Transient conditions (network errors, 429, 5xx) are retried with
// exponential backoff; a 429 additionally honors the server's Retry-After.
// 401 and 403 surface as AuthError and other 4xx as HTTPError, neither
// retried.
func (f *Fetcher) FetchBytes(ctx context.Context, pageURL string) ([]byte, string, error) {
	var body []byte
	var contentType string

	backoff := retry.WithMaxRetries(uint64(f.maxRetries), retry.NewExponential(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := f.newRequest(ctx, pageURL)
		if err != nil {
			return err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("fetching %s: %w", pageURL, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to read the body

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &AuthError{StatusCode: resp.StatusCode, URL: pageURL}

		case resp.StatusCode == http.StatusTooManyRequests:
			if wait := retryAfterDelay(resp); wait > 0 {
				debugLog("rate limited on %s, honoring Retry-After of %s", pageURL, wait)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return retry.RetryableError(&HTTPError{StatusCode: resp.StatusCode, URL: pageURL})

		case resp.StatusCode >= 500:
			return retry.RetryableError(&HTTPError{StatusCode: resp.StatusCode, URL: pageURL})

		default:
			return &HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("reading %s: %w", pageURL, err))
		}
		body = data
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// FetchDocument downloads pageURL and parses it into a DOM, decoding legacy
// charsets like GBK to UTF-8 first. When the charset cannot be determined the
// raw bytes are parsed as-is rather than failing the article.
func (f *Fetcher) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, contentType, err := f.FetchBytes(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		log.Printf("Warning: cannot determine charset for %s (%v), assuming UTF-8", pageURL, err)
		reader = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", pageURL, err)
	}
	return doc, nil
}

// FetchJSON downloads apiURL and decodes the JSON response into v.
func (f *Fetcher) FetchJSON(ctx context.Context, apiURL string, v interface{}) error {
	body, _, err := f.FetchBytes(ctx, apiURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", apiURL, err)
	}
	return nil
}

func retryAfterDelay(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	delay := time.Duration(seconds) * time.Second
	if delay > maxRetryAfter {
		delay = maxRetryAfter
	}
	return delay
}
