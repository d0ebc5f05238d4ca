package indicator

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"newsboard/display"
)

type spySurface struct {
	mu     sync.Mutex
	frames []string
}

func (s *spySurface) Push(f display.Frame) error {
	s.mu.Lock()
	s.frames = append(s.frames, strings.TrimRight(f.Rows[0], " "))
	s.mu.Unlock()
	return nil
}
func (s *spySurface) Clear() error { return nil }
func (s *spySurface) Close() error { return nil }

func (s *spySurface) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestFrameCyclesDots(t *testing.T) {
	want := []string{"A.", "A..", "A...", "A."}
	for i, w := range want {
		if got := Frame("A", i); got != w {
			t.Fatalf("tick %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestNoFramesAfterStopReturns(t *testing.T) {
	spy := &spySurface{}
	vp := display.NewViewport(display.CharLayout{Cols: 16, Rows: 1}, spy, nil)

	h := Start(vp, "Tech", 2*time.Millisecond, nil)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 3 })
	h.Stop()

	stopped := spy.snapshot()
	time.Sleep(20 * time.Millisecond)
	after := spy.snapshot()
	if len(after) != len(stopped) {
		t.Fatalf("expected no frames after Stop, got %d more", len(after)-len(stopped))
	}
	if stopped[0] != "Tech." || stopped[1] != "Tech.." || stopped[2] != "Tech..." {
		t.Fatalf("unexpected frame sequence %v", stopped[:3])
	}
	h.Stop()
}

func TestFirstFramePushedImmediately(t *testing.T) {
	spy := &spySurface{}
	vp := display.NewViewport(display.CharLayout{Cols: 16, Rows: 1}, spy, nil)
	h := Start(vp, "Slow", time.Hour, nil)
	waitFor(t, func() bool { return len(spy.snapshot()) == 1 })
	h.Stop()
	if got := spy.snapshot(); len(got) != 1 {
		t.Fatalf("expected exactly one frame, got %v", got)
	}
}

func TestNilViewportLogsProgress(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := log.New(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}), "", 0)

	h := Start(nil, "Tech", time.Millisecond, logger)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(buf.String(), "still working")
	})
	h.Stop()
	mu.Lock()
	out := buf.String()
	mu.Unlock()
	if !strings.HasPrefix(out, "Indicator: Tech...") {
		t.Fatalf("expected start line, got %q", out)
	}
}

func TestNilHandleStop(t *testing.T) {
	var h *Handle
	h.Stop()
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
