package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PCF8574 backpack pin mapping: P0=RS P1=RW P2=EN P3=backlight P4..P7=D4..D7.
const (
	lcdRS        = 0x01
	lcdEnable    = 0x04
	lcdBacklight = 0x08

	lcdCmdClear       = 0x01
	lcdCmdEntryMode   = 0x06 // increment, no shift
	lcdCmdDisplayOn   = 0x0C // display on, cursor off, blink off
	lcdCmdFunction4b  = 0x28 // 4-bit bus, 2 lines, 5x8 font
	lcdCmdSetDDRAM    = 0x80
	lcdInitNibble8Bit = 0x30
	lcdInitNibble4Bit = 0x20
)

var lcdRowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

// LCD drives an HD44780 character display behind a PCF8574 I2C expander.
// Only rows that changed since the previous frame are rewritten.
type LCD struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	cols   int
	rows   int
	last   []string
	sleep  func(time.Duration)
}

// OpenLCD initializes the host drivers, opens the named I2C bus, and resets
// the display at addr.
func OpenLCD(busName string, addr uint16, cols, rows int) (*LCD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	lcd, err := newLCD(&i2c.Dev{Addr: addr, Bus: bus}, bus, cols, rows, time.Sleep)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return lcd, nil
}

func newLCD(w io.Writer, closer io.Closer, cols, rows int, sleep func(time.Duration)) (*LCD, error) {
	if rows > len(lcdRowOffsets) {
		return nil, fmt.Errorf("lcd supports at most %d rows, got %d", len(lcdRowOffsets), rows)
	}
	l := &LCD{w: w, closer: closer, cols: cols, rows: rows, last: make([]string, rows), sleep: sleep}
	if err := l.reset(); err != nil {
		return nil, fmt.Errorf("lcd init: %w", err)
	}
	return l, nil
}

func (l *LCD) reset() error {
	l.sleep(50 * time.Millisecond)
	for _, d := range []time.Duration{4500 * time.Microsecond, 4500 * time.Microsecond, 150 * time.Microsecond} {
		if err := l.writeNibble(lcdInitNibble8Bit, 0); err != nil {
			return err
		}
		l.sleep(d)
	}
	if err := l.writeNibble(lcdInitNibble4Bit, 0); err != nil {
		return err
	}
	for _, cmd := range []byte{lcdCmdFunction4b, lcdCmdDisplayOn, lcdCmdEntryMode} {
		if err := l.command(cmd); err != nil {
			return err
		}
	}
	return l.clear()
}

func (l *LCD) Push(f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for row := 0; row < l.rows; row++ {
		text := ""
		if row < len(f.Rows) {
			text = f.Rows[row]
		} else if row == 0 && len(f.Rows) == 0 {
			text = f.Text
		}
		if text == l.last[row] {
			continue
		}
		if err := l.writeRow(row, text); err != nil {
			l.last[row] = "\x00" // force a rewrite next time
			return err
		}
		l.last[row] = text
	}
	return nil
}

func (l *LCD) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.last {
		l.last[i] = ""
	}
	return l.clear()
}

func (l *LCD) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.clear()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (l *LCD) clear() error {
	if err := l.command(lcdCmdClear); err != nil {
		return err
	}
	l.sleep(2 * time.Millisecond)
	return nil
}

func (l *LCD) writeRow(row int, text string) error {
	if err := l.command(lcdCmdSetDDRAM | lcdRowOffsets[row]); err != nil {
		return err
	}
	for _, b := range lcdBytes(text, l.cols) {
		if err := l.send(b, lcdRS); err != nil {
			return err
		}
	}
	return nil
}

func (l *LCD) command(cmd byte) error {
	return l.send(cmd, 0)
}

func (l *LCD) send(b, mode byte) error {
	if err := l.writeNibble(b&0xF0, mode); err != nil {
		return err
	}
	return l.writeNibble((b<<4)&0xF0, mode)
}

// writeNibble latches the high four bits of n with an enable pulse.
func (l *LCD) writeNibble(n, mode byte) error {
	data := n | mode | lcdBacklight
	if _, err := l.w.Write([]byte{data | lcdEnable}); err != nil {
		return err
	}
	_, err := l.w.Write([]byte{data &^ lcdEnable})
	return err
}

// lcdBytes maps text onto the controller's ASCII range, one byte per cell,
// padded or cut to cols. Runes outside the range become '?' per cell.
func lcdBytes(text string, cols int) []byte {
	out := make([]byte, 0, cols)
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		b := byte('?')
		if r >= 0x20 && r <= 0x7E {
			b = byte(r)
		}
		for i := 0; i < w && len(out) < cols; i++ {
			out = append(out, b)
		}
		if len(out) >= cols {
			break
		}
	}
	for len(out) < cols {
		out = append(out, ' ')
	}
	return out
}
