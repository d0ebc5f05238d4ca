package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const maxBodyBytes = 4 << 20

// conditionalFetcher remembers the validators of the last 200 response so that
// unchanged feeds come back as 304 without a body.
type conditionalFetcher struct {
	mu           sync.Mutex
	url          string
	etag         string
	lastModified string
	client       *http.Client
	userAgent    string

	// items parsed from the last 200 response, reused on 304.
	items []rawItem
}

// fetchResult is one response. Validators are not stored until commit.
type fetchResult struct {
	body         []byte
	changed      bool
	etag         string
	lastModified string
}

func (f *conditionalFetcher) Fetch(ctx context.Context) (fetchResult, error) {
	if f == nil {
		return fetchResult{}, fmt.Errorf("nil fetcher")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return fetchResult{}, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fetchResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return fetchResult{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return fetchResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return fetchResult{}, err
	}
	if len(body) > maxBodyBytes {
		return fetchResult{}, fmt.Errorf("feed body exceeds %d bytes", maxBodyBytes)
	}
	return fetchResult{
		body:         body,
		changed:      true,
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// commit stores the parsed items with the validators that produced them.
func (f *conditionalFetcher) commit(res fetchResult, items []rawItem) {
	f.items = items
	f.etag = res.etag
	f.lastModified = res.lastModified
}

// fetcherSet keeps one conditional fetcher per feed URL.
type fetcherSet struct {
	mu        sync.Mutex
	byURL     map[string]*conditionalFetcher
	client    *http.Client
	userAgent string
}

func (s *fetcherSet) get(url string) *conditionalFetcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byURL == nil {
		s.byURL = make(map[string]*conditionalFetcher)
	}
	f, ok := s.byURL[url]
	if !ok {
		f = &conditionalFetcher{url: url, client: s.client, userAgent: s.userAgent}
		s.byURL[url] = f
	}
	return f
}
