package display

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

// ANSI draws the viewport as a boxed bezel with a system log pane underneath,
// redrawn in place with ANSI escape codes. Only use it on a terminal.
type ANSI struct {
	mu        sync.Mutex
	out       io.Writer
	cols      int
	rows      []string
	system    ringPane
	snapSys   []string
	color     bool
	refresh   time.Duration
	dirty     bool
	renderBuf bytes.Buffer
	writer    *ansiWriter
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

type ringPane struct {
	lines []string
	idx   int
	count int
}

// Purpose: Construct the ANSI bezel surface.
// Key aspects: Sizes the bezel to the character viewport and starts the refresh loop.
// Upstream: surface selection in main.
// Downstream: refreshLoop goroutine.
func NewANSI(out io.Writer, cols, rows, logLines int, color bool, refresh time.Duration) *ANSI {
	if rows < 1 {
		rows = 1
	}
	if logLines < 1 {
		logLines = 1
	}
	const minRefresh = 16 * time.Millisecond
	if refresh < minRefresh {
		refresh = minRefresh
	}
	a := &ANSI{
		out:     out,
		cols:    cols,
		rows:    make([]string, rows),
		system:  ringPane{lines: make([]string, logLines)},
		snapSys: make([]string, logLines),
		color:   color,
		refresh: refresh,
		dirty:   true,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.writer = &ansiWriter{append: a.AppendSystem, color: color}
	go a.refreshLoop()
	return a
}

func (a *ANSI) Push(f Frame) error {
	a.mu.Lock()
	for i := range a.rows {
		a.rows[i] = ""
		if i < len(f.Rows) {
			a.rows[i] = f.Rows[i]
		}
	}
	if len(f.Rows) == 0 && len(a.rows) > 0 {
		a.rows[0] = f.Text
	}
	a.dirty = true
	a.mu.Unlock()
	return nil
}

func (a *ANSI) Clear() error {
	return a.Push(Frame{})
}

// Purpose: Stop the refresh loop after a final render.
// Key aspects: Idempotent; waits for the loop to exit.
// Upstream: main shutdown path.
// Downstream: None (channel close only).
func (a *ANSI) Close() error {
	a.stopOnce.Do(func() {
		close(a.quit)
		<-a.done
	})
	return nil
}

// AppendSystem adds a log line to the system pane.
func (a *ANSI) AppendSystem(line string) {
	line = applyANSIMarkup(line, a.color)
	a.mu.Lock()
	if len(a.system.lines) > 0 {
		a.system.lines[a.system.idx] = line
		a.system.idx = (a.system.idx + 1) % len(a.system.lines)
		if a.system.count < len(a.system.lines) {
			a.system.count++
		}
		a.dirty = true
	}
	a.mu.Unlock()
}

// SystemWriter returns an io.Writer that routes log output into the system pane.
func (a *ANSI) SystemWriter() io.Writer {
	if a == nil {
		return nil
	}
	return a.writer
}

// Purpose: Periodic render loop.
// Key aspects: Recovers panics, renders only when dirty, renders once more on quit.
// Upstream: goroutine started in NewANSI.
// Downstream: render.
func (a *ANSI) refreshLoop() {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ANSI surface panic: %v\n", r)
		}
	}()
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.render()
		case <-a.quit:
			a.render()
			return
		}
	}
}

// Purpose: Render the bezel and log pane.
// Key aspects: Copies state under lock, clears screen, writes box-drawn bezel.
// Upstream: refreshLoop.
// Downstream: snapshotPane, writeBezel, renderBuf.WriteTo.
func (a *ANSI) render() {
	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return
	}
	a.dirty = false
	rows := make([]string, len(a.rows))
	copy(rows, a.rows)
	system := snapshotPane(&a.system, a.snapSys)
	a.mu.Unlock()

	a.renderBuf.Reset()
	a.renderBuf.WriteString("\x1b[2J\x1b[H")
	writeBezel(&a.renderBuf, rows, a.cols, a.color)
	a.renderBuf.WriteString("---- System ----\n")
	for _, line := range system {
		a.renderBuf.WriteString(line)
		a.renderBuf.WriteByte('\n')
	}
	_, _ = a.renderBuf.WriteTo(a.out)
}

func writeBezel(b *bytes.Buffer, rows []string, cols int, color bool) {
	edge := strings.Repeat("-", cols)
	b.WriteString("+" + edge + "+\n")
	for _, row := range rows {
		row = runewidth.FillRight(runewidth.Truncate(row, cols, ""), cols)
		if color {
			row = "\x1b[36m" + row + resetANSI
		}
		b.WriteString("|" + row + "|\n")
	}
	b.WriteString("+" + edge + "+\n")
}

// Purpose: Snapshot a ring pane into a caller-provided buffer.
// Key aspects: Respects current count and ring order.
// Upstream: render.
// Downstream: None.
func snapshotPane(p *ringPane, buf []string) []string {
	if p == nil || len(p.lines) == 0 || p.count == 0 || len(buf) == 0 {
		return buf[:0]
	}
	start := p.idx - p.count
	if start < 0 {
		start += len(p.lines)
	}
	limit := p.count
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := 0; i < limit; i++ {
		buf[i] = p.lines[(start+i)%len(p.lines)]
	}
	return buf[:limit]
}

type ansiWriter struct {
	append func(string)
	buf    []byte
	color  bool
	mu     sync.Mutex
}

// Purpose: Implement io.Writer for log output routed to the system pane.
// Key aspects: Buffers until newline and bounds buffer growth.
// Upstream: log output when the ANSI surface is active.
// Downstream: w.append.
func (w *ansiWriter) Write(p []byte) (int, error) {
	if w == nil || w.append == nil {
		return len(p), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		w.append(strings.TrimRight(string(w.buf[:idx]), "\r"))
		w.buf = w.buf[idx+1:]
	}
	const maxWriterBufferSize = 16 * 1024
	if len(w.buf) > maxWriterBufferSize {
		w.append(strings.TrimRight(string(w.buf), "\r"))
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// applyANSIMarkup converts [color] tokens to escape codes, or strips them.
func applyANSIMarkup(line string, enableColor bool) string {
	if line == "" {
		return line
	}
	if enableColor {
		hasMarkup := strings.Contains(line, "[")
		line = ansiColorReplacer.Replace(line)
		if hasMarkup {
			line += resetANSI
		}
		return line
	}
	return ansiStripReplacer.Replace(line)
}

const resetANSI = "\x1b[0m"

var ansiColorReplacer = strings.NewReplacer(
	"[red]", "\x1b[31m",
	"[green]", "\x1b[32m",
	"[yellow]", "\x1b[33m",
	"[cyan]", "\x1b[36m",
	"[-]", resetANSI,
)

var ansiStripReplacer = strings.NewReplacer(
	"[red]", "",
	"[green]", "",
	"[yellow]", "",
	"[cyan]", "",
	"[-]", "",
)
