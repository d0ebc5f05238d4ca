package display

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TView renders the viewport as a bordered bezel above a scrolling system log
// pane. It takes over the terminal until Close.
type TView struct {
	app     *tview.Application
	bezel   *tview.TextView
	logView *tview.TextView
	sched   *frameScheduler
	ready   chan struct{}
	closed  atomic.Bool
	rows    int
}

const tviewTargetFPS = 20

func NewTView(cols, rows int) *TView {
	if rows < 1 {
		rows = 1
	}
	bezel := tview.NewTextView().SetWrap(false)
	bezel.SetTextColor(tcell.ColorGreen)
	bezel.SetBorder(true).SetTitle(fmt.Sprintf(" newsboard %dx%d ", cols, rows)).SetTitleAlign(tview.AlignLeft)

	logView := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logView.SetTextColor(tcell.ColorYellow)
	logView.SetBorder(true).SetTitle(" System ").SetTitleAlign(tview.AlignLeft)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(bezel, cols+2, 0, false).
			AddItem(tview.NewBox(), 0, 1, false), rows+2, 0, false).
		AddItem(logView, 0, 1, false)

	app := tview.NewApplication().SetRoot(layout, true).EnableMouse(false)
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	t := &TView{
		app:     app,
		bezel:   bezel,
		logView: logView,
		ready:   ready,
		rows:    rows,
	}
	t.sched = newFrameScheduler(func(fn func()) { app.QueueUpdateDraw(fn) }, tviewTargetFPS, 0)
	t.sched.Start()

	go func() {
		if err := app.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "tview surface error: %v\n", err)
		}
	}()
	return t
}

// WaitReady blocks until the first draw.
func (t *TView) WaitReady() {
	if t == nil || t.ready == nil {
		return
	}
	<-t.ready
}

func (t *TView) Push(f Frame) error {
	if t.closed.Load() {
		return fmt.Errorf("tview surface closed")
	}
	rows := f.Rows
	if len(rows) == 0 {
		rows = []string{f.Text, f.Caption}
	}
	text := tview.Escape(strings.Join(rows, "\n"))
	t.sched.Schedule("bezel", func() {
		t.bezel.SetText(text)
	})
	return nil
}

func (t *TView) Clear() error {
	return t.Push(Frame{Rows: make([]string, t.rows)})
}

func (t *TView) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.sched.Stop()
	t.app.Stop()
	return nil
}

// SystemWriter routes log output into the system pane.
func (t *TView) SystemWriter() *paneWriter {
	if t == nil {
		return nil
	}
	return &paneWriter{view: t.logView, app: t.app, closed: &t.closed}
}

type paneWriter struct {
	view   *tview.TextView
	app    *tview.Application
	closed *atomic.Bool
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w == nil || w.view == nil {
		return len(p), nil
	}
	text := string(p)
	if w.app == nil || (w.closed != nil && w.closed.Load()) {
		fmt.Fprint(os.Stderr, text)
		return len(p), nil
	}
	w.app.QueueUpdateDraw(func() {
		fmt.Fprint(w.view, text)
		w.view.ScrollToEnd()
	})
	return len(p), nil
}
