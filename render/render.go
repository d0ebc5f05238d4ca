// Package render shows one string on a viewport: a static dwell when it fits,
// otherwise a horizontal pan from the trailing edge until the text has left
// the leading edge, followed by a blank frame.
package render

import (
	"context"
	"time"

	"newsboard/display"
	"newsboard/internal/clock"
)

// Config is the render cadence.
type Config struct {
	FrameDelay time.Duration
	Dwell      time.Duration
	// Stride is the pan step in layout units (cells or pixels).
	Stride int
}

type Options struct {
	// NoScroll forces a static frame even when the text overflows.
	NoScroll bool
	// Caption is pinned on the second row when the layout has one.
	Caption string
}

// Result describes what a Render call pushed.
type Result struct {
	Frames   int
	Scrolled bool
}

// Renderer pushes one string to a viewport, panning it when it does not fit.
type Renderer struct {
	clock clock.Clock
	cfg   Config
}

// New builds a renderer. A non-positive stride becomes 1.
func New(c clock.Clock, cfg Config) *Renderer {
	if c == nil {
		c = clock.Real{}
	}
	if cfg.Stride <= 0 {
		cfg.Stride = 1
	}
	return &Renderer{clock: c, cfg: cfg}
}

// Render blocks for the dwell time or for the whole pan. A done ctx cuts the
// current sleep short and returns without further frames.
func (r *Renderer) Render(ctx context.Context, vp *display.Viewport, text string, opts Options) Result {
	if vp == nil || vp.Layout() == nil {
		return Result{}
	}
	layout := vp.Layout()
	caption := ""
	if layout.CaptionRow() {
		caption = opts.Caption
	}

	if text == "" {
		vp.Push(layout.Compose("", "", 0))
		r.clock.Sleep(ctx, r.cfg.Dwell)
		return Result{Frames: 1}
	}

	width := layout.Width()
	textWidth := layout.Measure(text)
	if textWidth <= width || opts.NoScroll {
		vp.Push(layout.Compose(text, caption, 0))
		r.clock.Sleep(ctx, r.cfg.Dwell)
		return Result{Frames: 1}
	}

	res := Result{Scrolled: true}
	for x := width; x > -textWidth; x -= r.cfg.Stride {
		vp.Push(layout.Compose(text, caption, x))
		res.Frames++
		if !r.clock.Sleep(ctx, r.cfg.FrameDelay) {
			return res
		}
	}
	vp.Push(layout.Compose("", "", 0))
	res.Frames++
	return res
}
