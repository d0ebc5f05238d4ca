package render

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"newsboard/display"
	"newsboard/internal/clock"
)

type spySurface struct {
	frames []display.Frame
}

func (s *spySurface) Push(f display.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}
func (s *spySurface) Clear() error { return nil }
func (s *spySurface) Close() error { return nil }

func (s *spySurface) rows() []string {
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, strings.Join(f.Rows, "|"))
	}
	return out
}

var start = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

func setup(cols, rows int) (*Renderer, *display.Viewport, *spySurface, *clock.Manual) {
	spy := &spySurface{}
	clk := clock.NewManual(start)
	vp := display.NewViewport(display.CharLayout{Cols: cols, Rows: rows}, spy, nil)
	r := New(clk, Config{FrameDelay: 300 * time.Millisecond, Dwell: 3 * time.Second, Stride: 1})
	return r, vp, spy, clk
}

func TestShortTextDwellsWithoutPanning(t *testing.T) {
	r, vp, spy, clk := setup(16, 2)
	res := r.Render(context.Background(), vp, "Hello", Options{})
	if res.Scrolled || res.Frames != 1 || len(spy.frames) != 1 {
		t.Fatalf("expected one static frame, got %+v with %d frames", res, len(spy.frames))
	}
	if spy.frames[0].Rows[0] != "Hello           " {
		t.Fatalf("unexpected static row %q", spy.frames[0].Rows[0])
	}
	if got := clk.Now().Sub(start); got != 3*time.Second {
		t.Fatalf("expected dwell of 3s, got %s", got)
	}
}

func TestLongTextPansUntilFullyExitedThenBlanks(t *testing.T) {
	r, vp, spy, clk := setup(4, 1)
	res := r.Render(context.Background(), vp, "abcdef", Options{})
	if !res.Scrolled {
		t.Fatalf("expected panning for text wider than viewport")
	}
	// Offsets 4..-5 inclusive, then one blank frame.
	if len(spy.frames) != 11 || res.Frames != 11 {
		t.Fatalf("expected 11 frames, got %d (%v)", len(spy.frames), spy.rows())
	}
	if first := spy.frames[0].Rows[0]; first != "    " {
		t.Fatalf("expected text to start fully off the trailing edge, got %q", first)
	}
	if second := spy.frames[1].Rows[0]; second != "   a" {
		t.Fatalf("expected first glyph entering from the right, got %q", second)
	}
	lastText := spy.frames[len(spy.frames)-2].Rows[0]
	if lastText != "f   " {
		t.Fatalf("expected last glyph leaving on the left, got %q", lastText)
	}
	last := spy.frames[len(spy.frames)-1]
	if !last.Blank() || strings.TrimSpace(last.Rows[0]) != "" {
		t.Fatalf("expected trailing blank frame, got %+v", last)
	}
	if got := clk.Now().Sub(start); got != 10*300*time.Millisecond {
		t.Fatalf("expected 10 frame delays, got %s", got)
	}
}

func TestStrideSkipsOffsets(t *testing.T) {
	spy := &spySurface{}
	vp := display.NewViewport(display.CharLayout{Cols: 4, Rows: 1}, spy, nil)
	r := New(clock.NewManual(start), Config{Stride: 3})
	r.Render(context.Background(), vp, "abcdef", Options{})
	// Offsets 4, 1, -2, -5, then blank.
	if len(spy.frames) != 5 {
		t.Fatalf("expected 5 frames, got %d (%v)", len(spy.frames), spy.rows())
	}
}

func TestNoScrollIsStaticAndIdempotent(t *testing.T) {
	r, vp, spy, _ := setup(4, 1)
	r.Render(context.Background(), vp, "abcdefgh", Options{NoScroll: true})
	first := spy.rows()
	spy.frames = nil
	r.Render(context.Background(), vp, "abcdefgh", Options{NoScroll: true})
	second := spy.rows()
	if len(first) != 1 || !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical single-frame sequences, got %v and %v", first, second)
	}
	if first[0] != "abcd" {
		t.Fatalf("expected truncated static frame, got %q", first[0])
	}
}

func TestEmptyTextRendersBlankDwellFrame(t *testing.T) {
	r, vp, spy, clk := setup(4, 2)
	res := r.Render(context.Background(), vp, "", Options{Caption: "A"})
	if res.Frames != 1 || len(spy.frames) != 1 || !spy.frames[0].Blank() {
		t.Fatalf("expected a single blank frame, got %+v", spy.frames)
	}
	if clk.Now().Sub(start) != 3*time.Second {
		t.Fatalf("expected blank frame to dwell")
	}
}

func TestCaptionPinnedWhilePanning(t *testing.T) {
	r, vp, spy, _ := setup(4, 2)
	r.Render(context.Background(), vp, "abcdef", Options{Caption: "Tech"})
	for _, f := range spy.frames[:len(spy.frames)-1] {
		if f.Rows[1] != "Tech" {
			t.Fatalf("expected caption on every pan frame, got %q", f.Rows[1])
		}
	}
}

func TestCanceledContextStopsPan(t *testing.T) {
	r, vp, spy, _ := setup(4, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Render(ctx, vp, "abcdef", Options{})
	if res.Frames != 1 || len(spy.frames) != 1 {
		t.Fatalf("expected pan to stop after the first frame, got %d", len(spy.frames))
	}
}

func TestBitmapLayoutPansInPixels(t *testing.T) {
	spy := &spySurface{}
	vp := display.NewViewport(display.NewBitmapLayout(28, 16, nil), spy, nil)
	r := New(clock.NewManual(start), Config{Stride: 7})
	res := r.Render(context.Background(), vp, "abcdefgh", Options{})
	// 56px of text across a 28px panel: offsets 28..-49 step 7 = 12 frames + blank.
	if !res.Scrolled || res.Frames != 13 {
		t.Fatalf("expected 13 frames, got %+v", res)
	}
	if spy.frames[0].Image == nil {
		t.Fatalf("expected bitmap frames")
	}
}
