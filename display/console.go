package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/logrusorgru/aurora"
)

// Console is the simulation surface used when no panel is attached. On a
// terminal it redraws the viewport in place on one line; otherwise it prints
// each pan once, so a panning sequence becomes a single line. Static frames
// always print.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	au      aurora.Aurora
	inPlace bool

	lastText    string
	lastCaption string
	// lastOffset is the offset of the last printed frame.
	lastOffset int
}

func NewConsole(w io.Writer, color, inPlace bool) *Console {
	return &Console{w: w, au: aurora.NewAurora(color), inPlace: inPlace}
}

func (c *Console) Push(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inPlace {
		row, caption := f.Text, f.Caption
		if len(f.Rows) > 0 {
			row = f.Rows[0]
			if len(f.Rows) > 1 {
				caption = strings.TrimRight(f.Rows[1], " ")
			}
		}
		line := fmt.Sprintf("\r\x1b[K[%s]", c.au.Cyan(row))
		if caption != "" {
			line += " " + c.au.Yellow(caption).String()
		}
		_, err := io.WriteString(c.w, line)
		return err
	}
	if f.Blank() {
		c.lastText, c.lastCaption, c.lastOffset = "", "", 0
		return nil
	}
	if f.Text == c.lastText && f.Caption == c.lastCaption && c.lastOffset != 0 && f.Offset != c.lastOffset {
		return nil
	}
	c.lastText, c.lastCaption, c.lastOffset = f.Text, f.Caption, f.Offset
	var err error
	switch {
	case f.Caption == "":
		_, err = fmt.Fprintf(c.w, "%s\n", c.au.Cyan(f.Text))
	case f.Text == "":
		_, err = fmt.Fprintf(c.w, "%s\n", c.au.Bold(c.au.Yellow(f.Caption)))
	default:
		_, err = fmt.Fprintf(c.w, "%s %s\n", c.au.Yellow("["+f.Caption+"]"), c.au.Cyan(f.Text))
	}
	return err
}

func (c *Console) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastText, c.lastCaption, c.lastOffset = "", "", 0
	if c.inPlace {
		_, err := io.WriteString(c.w, "\r\x1b[K")
		return err
	}
	return nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inPlace {
		_, err := io.WriteString(c.w, "\n")
		return err
	}
	return nil
}
