// Package display composes frames for the news viewport and pushes them to one
// or more output surfaces: a terminal, a character LCD, an OLED panel, or an
// MQTT mirror.
package display

import (
	"image"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Frame is one fully composed viewport. Character layouts fill Rows, bitmap
// layouts fill Image. Text, Caption and Offset describe what the frame shows
// and are used by text-only mirrors.
type Frame struct {
	Rows    []string
	Image   *image.Gray
	Text    string
	Caption string
	Offset  int
}

// Blank reports whether the frame shows nothing.
func (f Frame) Blank() bool {
	return f.Text == "" && f.Caption == ""
}

// Layout measures text and composes frames for one viewport geometry. Width
// and Measure share a unit: cells for character layouts, pixels for bitmaps.
type Layout interface {
	Width() int
	Measure(text string) int
	// Compose places text with its left edge at offset on the first row. A
	// caption, when the geometry has room for it, is pinned below.
	Compose(text, caption string, offset int) Frame
	CaptionRow() bool
}

// CharLayout is a character grid such as a 16x2 HD44780.
type CharLayout struct {
	Cols int
	Rows int
}

func (l CharLayout) Width() int { return l.Cols }

func (l CharLayout) Measure(text string) int { return runewidth.StringWidth(text) }

func (l CharLayout) CaptionRow() bool { return l.Rows > 1 }

func (l CharLayout) Compose(text, caption string, offset int) Frame {
	rows := l.Rows
	if rows < 1 {
		rows = 1
	}
	out := Frame{
		Rows:   make([]string, rows),
		Text:   text,
		Offset: offset,
	}
	out.Rows[0] = l.window(text, offset)
	blank := strings.Repeat(" ", l.Cols)
	for i := 1; i < rows; i++ {
		out.Rows[i] = blank
	}
	if rows > 1 && caption != "" {
		out.Caption = caption
		out.Rows[1] = runewidth.FillRight(runewidth.Truncate(caption, l.Cols, ""), l.Cols)
	}
	return out
}

// window renders the Cols cells visible when text starts at column offset.
// A wide rune cut by either edge becomes spaces.
func (l CharLayout) window(text string, offset int) string {
	if l.Cols <= 0 {
		return ""
	}
	const skip = rune(-1)
	cells := make([]rune, l.Cols)
	for i := range cells {
		cells[i] = ' '
	}
	x := offset
	for _, r := range text {
		if x >= l.Cols {
			break
		}
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x >= 0 && x+w <= l.Cols {
			cells[x] = r
			if w == 2 {
				cells[x+1] = skip
			}
		}
		x += w
	}
	var b strings.Builder
	for _, r := range cells {
		if r != skip {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BitmapLayout is a monochrome pixel panel such as a 128x64 SSD1306.
type BitmapLayout struct {
	W, H int
	Face font.Face
}

// NewBitmapLayout uses the 7x13 basic font when face is nil.
func NewBitmapLayout(w, h int, face font.Face) BitmapLayout {
	if face == nil {
		face = basicfont.Face7x13
	}
	return BitmapLayout{W: w, H: h, Face: face}
}

func (l BitmapLayout) Width() int { return l.W }

func (l BitmapLayout) Measure(text string) int {
	if text == "" {
		return 0
	}
	return font.MeasureString(l.face(), text).Ceil()
}

func (l BitmapLayout) CaptionRow() bool {
	return 2*l.face().Metrics().Height.Ceil() <= l.H
}

func (l BitmapLayout) Compose(text, caption string, offset int) Frame {
	img := image.NewGray(image.Rect(0, 0, l.W, l.H))
	face := l.face()
	ascent := face.Metrics().Ascent.Ceil()
	out := Frame{Image: img, Text: text, Offset: offset}
	if text != "" {
		d := font.Drawer{Dst: img, Src: image.White, Face: face, Dot: fixed.P(offset, ascent)}
		d.DrawString(text)
	}
	if caption != "" && l.CaptionRow() {
		out.Caption = caption
		d := font.Drawer{Dst: img, Src: image.White, Face: face, Dot: fixed.P(0, ascent+face.Metrics().Height.Ceil())}
		d.DrawString(caption)
	}
	return out
}

func (l BitmapLayout) face() font.Face {
	if l.Face == nil {
		return basicfont.Face7x13
	}
	return l.Face
}
