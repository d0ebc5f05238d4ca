// Package pipeline builds a display cache: for every configured channel it
// fetches items, transforms them into text, and normalizes the result into
// display lines. A channel that fails in either step is represented by a
// one-line fallback block so that the cache always holds one block per channel.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"

	"newsboard/content"
	"newsboard/stats"
)

// Source returns at most max items for a channel.
type Source interface {
	Fetch(ctx context.Context, ch content.Channel, max int) ([]content.Item, error)
}

// Transformer turns a channel's items into one text block.
type Transformer interface {
	Transform(ctx context.Context, channel string, items []content.Item) (string, error)
}

// BusyFunc is called before a channel's transform starts. The returned stop
// function is called once the transform has returned and must not return
// until the busy indication has fully stopped.
type BusyFunc func(channel string) (stop func())

// Config tunes a pass.
type Config struct {
	MaxItems int
	// ReuseUnchanged skips the transform when a channel's items hash the same
	// as on the last successful pass.
	ReuseUnchanged bool
	// Stats, when set, receives one outcome per channel per pass.
	Stats *stats.Tracker
}

// Pipeline turns channels into a display cache, one block per channel.
type Pipeline struct {
	source    Source
	transform Transformer
	cfg       Config
	logger    *log.Logger

	memoMu sync.Mutex
	memo   map[string]memoEntry
}

type memoEntry struct {
	fingerprint uint64
	lines       []string
}

// New builds a pipeline over source and transform.
func New(source Source, transform Transformer, cfg Config, logger *log.Logger) *Pipeline {
	return &Pipeline{
		source:    source,
		transform: transform,
		cfg:       cfg,
		logger:    logger,
		memo:      make(map[string]memoEntry),
	}
}

// Run processes channels in order and returns a cache with exactly
// len(channels) blocks. The context is checked before every channel; when it
// is done Run returns its error and no cache.
func (p *Pipeline) Run(ctx context.Context, channels []content.Channel, busy BusyFunc) (*content.Cache, error) {
	blocks := make([]content.SummaryBlock, 0, len(channels))
	failed := 0
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block := p.runChannel(ctx, ch, busy)
		if block.Failed {
			failed++
		}
		blocks = append(blocks, block)
	}
	p.cfg.Stats.PassDone()
	cache := &content.Cache{Blocks: blocks}
	p.logf("Pipeline: pass complete, %d channels (%d failed), %s lines", len(blocks), failed, humanize.Comma(int64(cache.TotalLines())))
	return cache, nil
}

func (p *Pipeline) runChannel(ctx context.Context, ch content.Channel, busy BusyFunc) content.SummaryBlock {
	items, err := p.source.Fetch(ctx, ch, p.cfg.MaxItems)
	if err == nil && len(items) == 0 {
		err = &content.FetchError{Channel: ch.Name, Err: content.ErrNoItems}
	}
	if err != nil {
		p.logf("Pipeline: %s fetch failed: %v", ch.Name, err)
		p.cfg.Stats.Record(ch.Name, stats.OutcomeFetchFailed)
		return content.FallbackBlock(ch.Name, content.FetchFailedMarker, err.Error())
	}

	var fp uint64
	if p.cfg.ReuseUnchanged {
		fp = fingerprint(items)
		if lines, ok := p.lookup(ch.Name, fp); ok {
			p.logf("Pipeline: %s unchanged (%d items), reusing %d lines", ch.Name, len(items), len(lines))
			p.cfg.Stats.Record(ch.Name, stats.OutcomeReused)
			return content.SummaryBlock{Channel: ch.Name, Lines: lines}
		}
	}

	text, err := p.transformJoined(ctx, ch.Name, items, busy)
	var lines []string
	if err == nil {
		lines = content.NormalizeLines(text)
		if len(lines) == 0 {
			err = &content.TransformError{Channel: ch.Name, Err: content.ErrEmptyOutput}
		}
	}
	if err != nil {
		var te *content.TransformError
		if !errors.As(err, &te) {
			err = &content.TransformError{Channel: ch.Name, Err: err}
		}
		p.logf("Pipeline: %s transform failed: %v", ch.Name, err)
		p.cfg.Stats.Record(ch.Name, stats.OutcomeSummaryFailed)
		return content.FallbackBlock(ch.Name, content.TransformFailedMarker, err.Error())
	}

	if p.cfg.ReuseUnchanged {
		p.store(ch.Name, fp, lines)
	}
	p.cfg.Stats.Record(ch.Name, stats.OutcomeOK)
	p.logf("Pipeline: %s ok, %d items -> %d lines (%s)", ch.Name, len(items), len(lines), humanize.Bytes(uint64(len(text))))
	return content.SummaryBlock{Channel: ch.Name, Lines: lines}
}

// transformJoined runs the transform with the busy indication active and
// returns only after the indication has stopped.
func (p *Pipeline) transformJoined(ctx context.Context, channel string, items []content.Item, busy BusyFunc) (string, error) {
	if busy != nil {
		if stop := busy(channel); stop != nil {
			defer stop()
		}
	}
	return p.transform.Transform(ctx, channel, items)
}

func (p *Pipeline) lookup(channel string, fp uint64) ([]string, bool) {
	p.memoMu.Lock()
	defer p.memoMu.Unlock()
	entry, ok := p.memo[channel]
	if !ok || entry.fingerprint != fp {
		return nil, false
	}
	return entry.lines, true
}

func (p *Pipeline) store(channel string, fp uint64, lines []string) {
	p.memoMu.Lock()
	defer p.memoMu.Unlock()
	p.memo[channel] = memoEntry{fingerprint: fp, lines: lines}
}

func fingerprint(items []content.Item) uint64 {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.Title)
		b.WriteByte(0)
		b.WriteString(it.Snippet)
		b.WriteByte(0)
	}
	return xxh3.HashString(b.String())
}

func (p *Pipeline) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
