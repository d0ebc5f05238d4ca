package display

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

type recordSurface struct {
	frames []Frame
	clears int
	err    error
	closed bool
}

func (r *recordSurface) Push(f Frame) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recordSurface) Clear() error {
	r.clears++
	return r.err
}

func (r *recordSurface) Close() error {
	r.closed = true
	return nil
}

func TestViewportSwallowsSurfaceErrorsAndThrottlesLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	surf := &recordSurface{err: errors.New("i2c nack")}
	vp := NewViewport(CharLayout{Cols: 4, Rows: 1}, surf, logger)

	for i := 0; i < 5; i++ {
		vp.Push(Frame{Text: "x"})
	}
	vp.Clear()

	pushed, dropped := vp.Frames()
	if pushed != 5 || dropped != 5 {
		t.Fatalf("expected 5 pushed/5 dropped, got %d/%d", pushed, dropped)
	}
	if n := strings.Count(buf.String(), "i2c nack"); n != 1 {
		t.Fatalf("expected one throttled log line, got %d:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "surface push") {
		t.Fatalf("expected SurfaceError text, got %q", buf.String())
	}
}

func TestNilViewportIsNoop(t *testing.T) {
	var vp *Viewport
	vp.Push(Frame{Text: "x"})
	vp.Clear()
	if err := vp.Close(); err != nil {
		t.Fatalf("expected nil close, got %v", err)
	}
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	ok := &recordSurface{}
	bad := &recordSurface{err: errors.New("offline")}
	m := Multi{ok, nil, bad}

	err := m.Push(Frame{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "offline") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.frames) != 1 {
		t.Fatalf("expected healthy surface to receive the frame despite the failing one")
	}
	_ = m.Clear()
	_ = m.Close()
	if ok.clears != 1 || !ok.closed || !bad.closed {
		t.Fatalf("expected clear/close fan-out, got %+v %+v", ok, bad)
	}
}

func TestConsolePrintsEachTextOnceWhenNotInPlace(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, false)
	l := CharLayout{Cols: 4, Rows: 2}
	for x := 4; x > -10; x-- {
		_ = c.Push(l.Compose("scrolling!", "", x))
	}
	_ = c.Push(l.Compose("", "", 0))
	_ = c.Push(l.Compose("next", "Tech", 0))

	got := buf.String()
	if got != "scrolling!\n[Tech] next\n" {
		t.Fatalf("unexpected console output %q", got)
	}
}

func TestConsolePrintsRepeatedStaticText(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, false)
	l := CharLayout{Cols: 16, Rows: 2}
	_ = c.Push(l.Compose("same", "Tech", 0))
	_ = c.Push(l.Compose("same", "Tech", 0))
	for x := 16; x > -6; x-- {
		_ = c.Push(l.Compose("same", "Tech", x))
	}

	got := buf.String()
	if got != "[Tech] same\n[Tech] same\n[Tech] same\n" {
		t.Fatalf("unexpected console output %q", got)
	}
}

func TestConsoleInPlaceRedraws(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, true)
	_ = c.Push(CharLayout{Cols: 4, Rows: 1}.Compose("ab", "", 0))
	_ = c.Clear()
	_ = c.Close()
	if got := buf.String(); got != "\r\x1b[K[ab  ]\r\x1b[K\n" {
		t.Fatalf("unexpected in-place output %q", got)
	}
}

func TestSnapshotPaneKeepsRingOrder(t *testing.T) {
	p := ringPane{lines: make([]string, 3)}
	for _, s := range []string{"a", "b", "c", "d"} {
		p.lines[p.idx] = s
		p.idx = (p.idx + 1) % len(p.lines)
		if p.count < len(p.lines) {
			p.count++
		}
	}
	got := snapshotPane(&p, make([]string, 3))
	if strings.Join(got, ",") != "b,c,d" {
		t.Fatalf("expected b,c,d, got %v", got)
	}
}

func TestANSIWriterSplitsLines(t *testing.T) {
	var lines []string
	w := &ansiWriter{append: func(s string) { lines = append(lines, s) }}
	_, _ = w.Write([]byte("one\r\ntw"))
	_, _ = w.Write([]byte("o\n"))
	if strings.Join(lines, "|") != "one|two" {
		t.Fatalf("unexpected lines %v", lines)
	}
	if got := applyANSIMarkup("[red]x[-]", false); got != "x" {
		t.Fatalf("expected stripped markup, got %q", got)
	}
}

func TestFrameSchedulerCoalescesLatestPerID(t *testing.T) {
	f := newFrameScheduler(nil, 60, 0)

	var seq []string
	f.Schedule("bezel", func() { seq = append(seq, "a1") })
	f.Schedule("bezel", func() { seq = append(seq, "a2") })
	f.Schedule("title", func() { seq = append(seq, "b1") })

	f.flush()
	if strings.Join(seq, ",") != "a2,b1" {
		t.Fatalf("unexpected callback order/content: %v", seq)
	}
	f.flush()
	if len(seq) != 2 {
		t.Fatalf("expected no additional callbacks after empty flush, got %v", seq)
	}
}

func TestFrameSchedulerFlushesPendingOnStop(t *testing.T) {
	f := newFrameScheduler(nil, 1, 0)
	called := make(chan struct{}, 1)
	f.Start()
	f.Schedule("bezel", func() { called <- struct{}{} })
	f.Stop()
	f.Stop()
	select {
	case <-called:
	default:
		t.Fatalf("expected pending callback to flush on stop")
	}
}

func TestViewportReportsItsLayout(t *testing.T) {
	l := CharLayout{Cols: 20, Rows: 4}
	vp := NewViewport(l, NewConsole(&bytes.Buffer{}, false, false), nil)
	if got, ok := vp.Layout().(CharLayout); !ok || got != l {
		t.Fatalf("expected %#v, got %#v", l, vp.Layout())
	}
}
