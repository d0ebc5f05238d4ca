package display

import (
	"errors"
	"testing"
	"time"
)

type busRecorder struct {
	writes [][]byte
	fail   bool
}

func (b *busRecorder) Write(p []byte) (int, error) {
	if b.fail {
		return 0, errors.New("nack")
	}
	b.writes = append(b.writes, append([]byte(nil), p...))
	return len(p), nil
}

// decode reassembles bytes sent through the 4-bit interface, returning
// (mode, value) pairs for every full byte.
func decode(writes [][]byte) [][2]byte {
	var nibbles []byte
	for _, w := range writes {
		if len(w) == 1 && w[0]&lcdEnable == 0 {
			nibbles = append(nibbles, w[0])
		}
	}
	var out [][2]byte
	for i := 0; i+1 < len(nibbles); i += 2 {
		hi, lo := nibbles[i], nibbles[i+1]
		out = append(out, [2]byte{hi & lcdRS, (hi & 0xF0) | (lo >> 4)})
	}
	return out
}

func noSleep(time.Duration) {}

func TestLCDWritesChangedRowsOnly(t *testing.T) {
	bus := &busRecorder{}
	l, err := newLCD(bus, nil, 4, 2, noSleep)
	if err != nil {
		t.Fatalf("newLCD() error: %v", err)
	}
	bus.writes = nil

	if err := l.Push(Frame{Rows: []string{"Hi", "ok"}}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	got := decode(bus.writes)
	want := [][2]byte{
		{0, lcdCmdSetDDRAM | 0x00}, {lcdRS, 'H'}, {lcdRS, 'i'}, {lcdRS, ' '}, {lcdRS, ' '},
		{0, lcdCmdSetDDRAM | 0x40}, {lcdRS, 'o'}, {lcdRS, 'k'}, {lcdRS, ' '}, {lcdRS, ' '},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	bus.writes = nil
	_ = l.Push(Frame{Rows: []string{"Hi", "no"}})
	got = decode(bus.writes)
	if len(got) != 5 || got[0][1] != lcdCmdSetDDRAM|0x40 {
		t.Fatalf("expected only the second row rewritten, got %v", got)
	}
}

func TestLCDRetriesRowAfterWriteError(t *testing.T) {
	bus := &busRecorder{}
	l, _ := newLCD(bus, nil, 4, 1, noSleep)
	bus.fail = true
	if err := l.Push(Frame{Rows: []string{"x"}}); err == nil {
		t.Fatalf("expected bus error")
	}
	bus.fail = false
	bus.writes = nil
	_ = l.Push(Frame{Rows: []string{"x"}})
	if len(decode(bus.writes)) == 0 {
		t.Fatalf("expected the failed row to be rewritten")
	}
}

func TestLCDBytesMapsOutsideROMToPlaceholders(t *testing.T) {
	if got := string(lcdBytes("a日b", 6)); got != "a??b  " {
		t.Fatalf("unexpected mapping %q", got)
	}
	if got := string(lcdBytes("abcdef", 3)); got != "abc" {
		t.Fatalf("expected cut to width, got %q", got)
	}
}

func TestNewLCDRejectsTooManyRows(t *testing.T) {
	if _, err := newLCD(&busRecorder{}, nil, 20, 5, noSleep); err == nil {
		t.Fatalf("expected error for 5 rows")
	}
}
