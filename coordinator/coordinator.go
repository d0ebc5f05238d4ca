// Package coordinator owns the refresh epoch. It alternates between generating
// a new display cache and looping over the cached blocks until the epoch
// elapses, and it shows a farewell frame when interrupted.
package coordinator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"newsboard/content"
	"newsboard/display"
	"newsboard/indicator"
	"newsboard/internal/clock"
	"newsboard/pipeline"
	"newsboard/render"
	"newsboard/stats"
)

// State is the coordinator's phase.
type State int32

const (
	StateStarting State = iota
	StateGenerating
	StateDisplaying
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateGenerating:
		return "GENERATING"
	case StateDisplaying:
		return "DISPLAYING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Generator builds a cache for the channels. It returns an error only when
// the pass was abandoned.
type Generator interface {
	Run(ctx context.Context, channels []content.Channel, busy pipeline.BusyFunc) (*content.Cache, error)
}

// Renderer shows one string on the viewport and blocks while it is shown.
type Renderer interface {
	Render(ctx context.Context, vp *display.Viewport, text string, opts render.Options) render.Result
}

// Config holds the refresh cadence and the startup and shutdown messages.
type Config struct {
	Channels        []content.Channel
	Interval        time.Duration
	IndicatorPeriod time.Duration
	// Banner, when set, is rendered at the start of every pass.
	Banner       string
	Splash       string
	SplashHold   time.Duration
	Farewell     string
	FarewellHold time.Duration
	// Stats is the tracker the generator records into; it is only read here.
	Stats *stats.Tracker
}

// Coordinator alternates refresh passes with display rotation until ctx ends.
type Coordinator struct {
	cfg      Config
	gen      Generator
	renderer Renderer
	vp       *display.Viewport
	clock    clock.Clock
	logger   *log.Logger

	state atomic.Int32
	cache atomic.Pointer[content.Cache]

	mu          sync.RWMutex
	epoch       time.Time
	cycles      uint64
	passes      uint64
	generatedAt time.Time
	generation  time.Duration
}

// New builds a coordinator. A nil clock uses the real one.
func New(cfg Config, gen Generator, renderer Renderer, vp *display.Viewport, clk clock.Clock, logger *log.Logger) *Coordinator {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Coordinator{
		cfg:      cfg,
		gen:      gen,
		renderer: renderer,
		vp:       vp,
		clock:    clk,
		logger:   logger,
	}
}

// Run loops GENERATING -> DISPLAYING until ctx is done, then shuts down.
func (c *Coordinator) Run(ctx context.Context) {
	c.splash(ctx)
	for ctx.Err() == nil {
		c.setState(StateGenerating)
		epoch, ok := c.generate(ctx)
		if !ok {
			break
		}
		c.setState(StateDisplaying)
		c.displayUntil(ctx, epoch)
	}
	c.shutdown()
}

// State reports the current phase.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logf("Coordinator: %s -> %s", prev, s)
	}
}

func (c *Coordinator) splash(ctx context.Context) {
	if c.cfg.Splash == "" || c.vp == nil || c.vp.Layout() == nil {
		return
	}
	c.vp.Push(c.vp.Layout().Compose(c.cfg.Splash, "Starting...", 0))
	c.clock.Sleep(ctx, c.cfg.SplashHold)
}

// generate runs one pipeline pass with the busy indicator joined per channel,
// publishes the cache, and returns the next epoch. It reports false when the
// pass was interrupted.
func (c *Coordinator) generate(ctx context.Context) (time.Time, bool) {
	cycle := uuid.NewString()
	started := c.clock.Now()
	c.logf("Coordinator: cycle %s generating %d channels", cycle, len(c.cfg.Channels))

	busy := func(channel string) func() {
		return indicator.Start(c.vp, channel, c.cfg.IndicatorPeriod, c.logger).Stop
	}
	cache, err := c.gen.Run(ctx, c.cfg.Channels, busy)
	if err != nil {
		if ctx.Err() != nil {
			c.logf("Coordinator: cycle %s interrupted", cycle)
			return time.Time{}, false
		}
		c.logf("Coordinator: cycle %s generation failed: %v", cycle, err)
		cache = nil
	}
	if cache == nil {
		cache = &content.Cache{}
	}
	now := c.clock.Now()
	cache.Cycle = cycle
	cache.CreatedAt = now
	epoch := now.Add(c.cfg.Interval)
	c.cache.Store(cache)

	c.mu.Lock()
	c.epoch = epoch
	c.cycles++
	c.generatedAt = now
	c.generation = now.Sub(started)
	c.mu.Unlock()

	c.logf("Coordinator: cycle %s ready, %d blocks / %s lines in %s, next refresh %s",
		cycle, cache.Len(), humanize.Comma(int64(cache.TotalLines())), now.Sub(started).Round(time.Millisecond), humanize.Time(wall(epoch)))
	return epoch, true
}

// displayUntil walks the cache until epoch. The deadline and the interrupt
// are checked before every render call: at the start of a pass, before each
// channel, and before each line.
func (c *Coordinator) displayUntil(ctx context.Context, epoch time.Time) {
	expired := func() bool {
		return ctx.Err() != nil || !c.clock.Now().Before(epoch)
	}
	cache := c.cache.Load()
	if cache.Len() == 0 {
		c.logf("Coordinator: nothing to display, idling until refresh")
		c.clock.Sleep(ctx, epoch.Sub(c.clock.Now()))
		return
	}

	for {
		if expired() {
			return
		}
		passStart := c.clock.Now()
		c.mu.Lock()
		c.passes++
		c.mu.Unlock()

		if c.cfg.Banner != "" {
			c.renderer.Render(ctx, c.vp, c.cfg.Banner, render.Options{})
		}
		for _, block := range cache.Blocks {
			if expired() {
				return
			}
			c.renderer.Render(ctx, c.vp, block.Channel, render.Options{})
			for _, line := range block.Lines {
				if expired() {
					return
				}
				c.renderer.Render(ctx, c.vp, line, render.Options{Caption: block.Channel})
			}
		}

		// A pass that took no time would spin; wait out the epoch instead.
		if !c.clock.Now().After(passStart) {
			c.clock.Sleep(ctx, epoch.Sub(c.clock.Now()))
		}
	}
}

func (c *Coordinator) shutdown() {
	c.setState(StateShuttingDown)
	if c.vp == nil {
		return
	}
	if c.cfg.Farewell != "" && c.vp.Layout() != nil {
		c.vp.Push(c.vp.Layout().Compose(c.cfg.Farewell, "", 0))
		c.clock.Sleep(context.Background(), c.cfg.FarewellHold)
	}
	c.vp.Clear()
	pushed, dropped := c.vp.Frames()
	c.logf("Coordinator: stopped after %d cycles, %s frames (%d dropped)", c.cycles, humanize.Comma(int64(pushed)), dropped)
	for _, line := range c.cfg.Stats.SnapshotLines() {
		c.logf("Coordinator: %s", line)
	}
}

// BlockStatus summarizes one cached block.
type BlockStatus struct {
	Channel string `json:"channel"`
	Lines   int    `json:"lines"`
	Failed  bool   `json:"failed"`
	Reason  string `json:"reason,omitempty"`
}

// Snapshot is a point-in-time view for the status endpoint.
type Snapshot struct {
	State       string                `json:"state"`
	Cycle       string                `json:"cycle,omitempty"`
	Cycles      uint64                `json:"cycles"`
	Passes      uint64                `json:"passes"`
	GeneratedAt time.Time             `json:"generated_at,omitempty"`
	Generation  time.Duration         `json:"generation_ns"`
	Epoch       time.Time             `json:"epoch,omitempty"`
	Remaining   time.Duration         `json:"remaining_ns"`
	Frames      uint64                `json:"frames"`
	Dropped     uint64                `json:"dropped_frames"`
	Blocks      []BlockStatus         `json:"blocks"`
	Outcomes    []stats.ChannelCounts `json:"outcomes,omitempty"`
}

// Snapshot reports the current state, cache and counters.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	snap := Snapshot{
		State:       c.State().String(),
		Cycles:      c.cycles,
		Passes:      c.passes,
		GeneratedAt: c.generatedAt,
		Generation:  c.generation,
		Epoch:       c.epoch,
	}
	c.mu.RUnlock()
	if !snap.Epoch.IsZero() {
		if remaining := snap.Epoch.Sub(c.clock.Now()); remaining > 0 {
			snap.Remaining = remaining
		}
	}
	snap.Frames, snap.Dropped = c.vp.Frames()
	snap.Outcomes = c.cfg.Stats.Snapshot()
	cache := c.cache.Load()
	if cache != nil {
		snap.Cycle = cache.Cycle
		snap.Blocks = make([]BlockStatus, 0, len(cache.Blocks))
		for _, b := range cache.Blocks {
			snap.Blocks = append(snap.Blocks, BlockStatus{Channel: b.Channel, Lines: len(b.Lines), Failed: b.Failed, Reason: b.Reason})
		}
	}
	return snap
}

// wall strips the monotonic reading for display.
func wall(t time.Time) time.Time { return t.Round(0) }

func (c *Coordinator) logf(format string, args ...any) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
