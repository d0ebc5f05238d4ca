// Package stats counts per-channel pipeline outcomes for the status endpoint
// and the end-of-run log line.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is how one channel fared in a pass.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeReused        Outcome = "reused"
	OutcomeFetchFailed   Outcome = "fetch_failed"
	OutcomeSummaryFailed Outcome = "summary_failed"
)

// Tracker counts outcomes per channel. A nil Tracker ignores every call.
type Tracker struct {
	// channel|outcome -> *atomic.Uint64
	counts sync.Map
	passes atomic.Uint64
	start  time.Time
}

func NewTracker() *Tracker {
	return &Tracker{start: time.Now()}
}

// Record counts one outcome for channel.
func (t *Tracker) Record(channel string, outcome Outcome) {
	if t == nil {
		return
	}
	key := channel + "|" + string(outcome)
	if v, ok := t.counts.Load(key); ok {
		v.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, _ := t.counts.LoadOrStore(key, counter)
	actual.(*atomic.Uint64).Add(1)
}

// PassDone counts one completed pipeline pass.
func (t *Tracker) PassDone() {
	if t == nil {
		return
	}
	t.passes.Add(1)
}

// ChannelCounts is the tally for one channel.
type ChannelCounts struct {
	Channel string             `json:"channel"`
	Counts  map[Outcome]uint64 `json:"counts"`
}

// Snapshot returns the tallies sorted by channel name.
func (t *Tracker) Snapshot() []ChannelCounts {
	if t == nil {
		return nil
	}
	byChannel := make(map[string]map[Outcome]uint64)
	t.counts.Range(func(key, value any) bool {
		channel, outcome, _ := strings.Cut(key.(string), "|")
		if byChannel[channel] == nil {
			byChannel[channel] = make(map[Outcome]uint64)
		}
		byChannel[channel][Outcome(outcome)] = value.(*atomic.Uint64).Load()
		return true
	})
	out := make([]ChannelCounts, 0, len(byChannel))
	for ch, counts := range byChannel {
		out = append(out, ChannelCounts{Channel: ch, Counts: counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Passes reports completed pipeline passes.
func (t *Tracker) Passes() uint64 {
	if t == nil {
		return 0
	}
	return t.passes.Load()
}

// Uptime reports how long the tracker has existed.
func (t *Tracker) Uptime() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.start)
}

// SnapshotLines formats one line per channel, e.g. "AI News: ok=3 fetch_failed=1".
func (t *Tracker) SnapshotLines() []string {
	snap := t.Snapshot()
	lines := make([]string, 0, len(snap))
	for _, c := range snap {
		lines = append(lines, fmt.Sprintf("%s: %s", c.Channel, formatCounts(c.Counts)))
	}
	return lines
}

func formatCounts(counts map[Outcome]uint64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[Outcome(k)]))
	}
	return strings.Join(parts, " ")
}
