// Package content holds the data model shared by the feed source, the
// summarizer, the pipeline, and the coordinator.
package content

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel is a named content source configured at startup.
type Channel struct {
	Name string
	URL  string
}

// Item is one fetched feed entry. Items only flow from the source to the
// transformation step and are never persisted.
type Item struct {
	Title   string
	Snippet string
	Link    string
}

// Line renders the item the way it is handed to the transformation step.
func (it Item) Line() string {
	title := strings.TrimSpace(it.Title)
	snippet := strings.TrimSpace(it.Snippet)
	switch {
	case title == "":
		return "- " + snippet
	case snippet == "":
		return "- " + title
	default:
		return fmt.Sprintf("- %s: %s", title, snippet)
	}
}

// SummaryBlock is the display-ready output for one channel.
type SummaryBlock struct {
	Channel string
	Lines   []string
	Failed  bool
	Reason  string
}

// Cache is the set of summary blocks valid for one refresh epoch. A Cache is
// never mutated after the pipeline returns it.
type Cache struct {
	Cycle     string
	CreatedAt time.Time
	Blocks    []SummaryBlock
}

// Len reports the number of blocks; a nil cache has none.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Blocks)
}

// TotalLines counts display lines across all blocks.
func (c *Cache) TotalLines() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, b := range c.Blocks {
		n += len(b.Lines)
	}
	return n
}

const (
	FetchFailedMarker     = "fetch failed"
	TransformFailedMarker = "summary failed"
)

// FallbackBlock builds the single-line block shown in a failed channel's slot.
func FallbackBlock(channel, marker, reason string) SummaryBlock {
	return SummaryBlock{
		Channel: channel,
		Lines:   []string{fmt.Sprintf("%s: %s", channel, marker)},
		Failed:  true,
		Reason:  reason,
	}
}

// NormalizeLines splits text into display lines, trimming whitespace and
// dropping blank lines.
func NormalizeLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

var (
	// ErrNoItems reports a feed that parsed but yielded nothing usable.
	ErrNoItems = errors.New("no items")
	// ErrEmptyOutput reports a transformation that returned no display text.
	ErrEmptyOutput = errors.New("empty output")
)

// FetchError is a channel-scoped failure of the content source.
type FetchError struct {
	Channel string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Channel, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransformError is a channel-scoped failure of the transformation step.
type TransformError struct {
	Channel string
	Err     error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Channel, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
