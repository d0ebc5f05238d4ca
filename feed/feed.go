// Package feed is the content source: it pulls RSS, Atom, or JSON feeds over
// HTTP and reduces them to short plain-text items.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	lev "github.com/agnivade/levenshtein"
	"github.com/mattn/go-runewidth"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"newsboard/content"
	"newsboard/strutil"
)

// Config tunes the fetcher.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// SnippetChars caps each snippet in display cells; zero keeps it whole.
	SnippetChars int
	// DedupeDistance drops titles within this edit distance of an earlier
	// title. Negative disables the filter.
	DedupeDistance int
}

// Fetcher retrieves feed items for a channel. It is safe for concurrent use.
type Fetcher struct {
	cfg      Config
	logger   *log.Logger
	fetchers fetcherSet
	policy   *bluemonday.Policy
}

type rawItem struct {
	title   string
	snippet string
	link    string
}

// New constructs a Fetcher. A nil client gets a default one with cfg.Timeout.
func New(cfg Config, client *http.Client, logger *log.Logger) *Fetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		cfg:    cfg,
		logger: logger,
		fetchers: fetcherSet{
			client:    client,
			userAgent: cfg.UserAgent,
		},
		policy: bluemonday.StrictPolicy(),
	}
}

// Fetch returns at most max items for the channel. Errors are wrapped in
// *content.FetchError; an empty feed returns content.ErrNoItems.
func (f *Fetcher) Fetch(ctx context.Context, ch content.Channel, max int) ([]content.Item, error) {
	if f == nil {
		return nil, &content.FetchError{Channel: ch.Name, Err: errors.New("nil fetcher")}
	}
	if strings.TrimSpace(ch.URL) == "" {
		return nil, &content.FetchError{Channel: ch.Name, Err: errors.New("empty url")}
	}
	cf := f.fetchers.get(ch.URL)
	cf.mu.Lock()
	defer cf.mu.Unlock()

	res, err := cf.Fetch(ctx)
	if err != nil {
		return nil, &content.FetchError{Channel: ch.Name, Err: err}
	}
	if res.changed {
		raw, err := f.parse(res.body)
		if err != nil {
			return nil, &content.FetchError{Channel: ch.Name, Err: err}
		}
		cf.commit(res, raw)
	} else {
		f.logf("Feed: %s not modified, reusing %d items", ch.Name, len(cf.items))
	}

	items := f.pick(cf.items, max)
	if len(items) == 0 {
		return nil, &content.FetchError{Channel: ch.Name, Err: content.ErrNoItems}
	}
	return items, nil
}

func (f *Fetcher) parse(body []byte) ([]rawItem, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	out := make([]rawItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		snippet := it.Description
		if strings.TrimSpace(snippet) == "" {
			snippet = it.Content
		}
		item := rawItem{
			title:   f.plainText(it.Title),
			snippet: f.plainText(snippet),
			link:    strings.TrimSpace(it.Link),
		}
		if item.title == "" && item.snippet == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// plainText strips markup and collapses whitespace.
func (f *Fetcher) plainText(s string) string {
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strutil.CollapseSpace(s)
}

func (f *Fetcher) pick(raw []rawItem, max int) []content.Item {
	if max <= 0 {
		max = len(raw)
	}
	items := make([]content.Item, 0, max)
	seen := make([]string, 0, max)
	for _, r := range raw {
		if len(items) >= max {
			break
		}
		key := strutil.TitleKey(r.title)
		if key != "" && f.isNearDuplicate(key, seen) {
			continue
		}
		if key != "" {
			seen = append(seen, key)
		}
		snippet := r.snippet
		if f.cfg.SnippetChars > 0 && runewidth.StringWidth(snippet) > f.cfg.SnippetChars {
			snippet = runewidth.Truncate(snippet, f.cfg.SnippetChars, "...")
		}
		items = append(items, content.Item{Title: r.title, Snippet: snippet, Link: r.link})
	}
	return items
}

func (f *Fetcher) isNearDuplicate(title string, seen []string) bool {
	if f.cfg.DedupeDistance < 0 {
		return false
	}
	for _, prev := range seen {
		if lev.ComputeDistance(title, prev) <= f.cfg.DedupeDistance {
			return true
		}
	}
	return false
}

func (f *Fetcher) logf(format string, args ...any) {
	if f == nil || f.logger == nil {
		return
	}
	f.logger.Printf(format, args...)
}
