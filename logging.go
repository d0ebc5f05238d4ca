package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"newsboard/config"
)

const (
	logStampLayout  = "2006/01/02 15:04:05"
	logDayLayout    = "02-Jan-2006"
	maxPartialBytes = 16 * 1024
)

// lineSink receives complete log lines from the fanout.
type lineSink interface {
	WriteLine(line string, now time.Time)
	Close() error
}

// writerSink adapts an io.Writer (stderr, a tview pane, the ANSI system pane).
type writerSink struct {
	w     io.Writer
	stamp bool
}

func (s *writerSink) WriteLine(line string, now time.Time) {
	if s == nil || s.w == nil {
		return
	}
	if s.stamp {
		line = stamp(now) + " " + line
	}
	_, _ = io.WriteString(s.w, line+"\n")
}

func (s *writerSink) Close() error { return nil }

// dailyLog appends to <dir>/<DD-Mon-YYYY>.log, switching files at UTC midnight
// and pruning files older than the retention window.
type dailyLog struct {
	mu        sync.Mutex
	dir       string
	keepDays  int
	day       string
	file      *os.File
	lastError time.Time
}

// Purpose: Open the log directory and prune stale day files.
// Key aspects: The file itself is opened lazily on the first line.
// Upstream: setupLogging.
// Downstream: pruneLogs.
func newDailyLog(dir string, keepDays int) (*dailyLog, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("log directory is empty")
	}
	if keepDays <= 0 {
		keepDays = 7
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}
	if err := pruneLogs(dir, time.Now().UTC(), keepDays); err != nil {
		fmt.Fprintf(os.Stderr, "Logging: prune failed for %s: %v\n", dir, err)
	}
	return &dailyLog{dir: dir, keepDays: keepDays}, nil
}

func (d *dailyLog) WriteLine(line string, now time.Time) {
	if d == nil {
		return
	}
	now = now.UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	if day := now.Format(logDayLayout); d.file == nil || d.day != day {
		d.switchLocked(day, now)
	}
	if d.file == nil {
		return
	}
	if _, err := d.file.WriteString(stamp(now) + " " + line + "\n"); err != nil {
		d.complainLocked(now, fmt.Errorf("write failed: %w", err))
	}
}

func (d *dailyLog) switchLocked(day string, now time.Time) {
	if d.file != nil {
		_ = d.file.Close()
		d.file = nil
	}
	path := filepath.Join(d.dir, logFileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		d.complainLocked(now, fmt.Errorf("open %s: %w", path, err))
		return
	}
	d.file = f
	d.day = day
	if err := pruneLogs(d.dir, now, d.keepDays); err != nil {
		d.complainLocked(now, fmt.Errorf("prune failed: %w", err))
	}
}

// complainLocked reports sink failures on stderr at most once a minute.
func (d *dailyLog) complainLocked(now time.Time, err error) {
	if !d.lastError.IsZero() && now.Sub(d.lastError) < time.Minute {
		return
	}
	d.lastError = now
	fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
}

// Path reports the file currently written, or "" before the first line.
func (d *dailyLog) Path() string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ""
	}
	return d.file.Name()
}

func (d *dailyLog) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.day = ""
	return err
}

// logFanout is the io.Writer installed behind every *log.Logger. It splits
// writes into lines and forwards each to the console sink and the file sink.
type logFanout struct {
	mu      sync.Mutex
	partial []byte
	console lineSink
	file    lineSink
	now     func() time.Time
}

func newLogFanout(console, file lineSink) *logFanout {
	return &logFanout{console: console, file: file, now: time.Now}
}

// Purpose: Build the fanout from config.
// Key aspects: Always returns a usable fanout; a file sink error is returned
// alongside so main can report it without aborting.
// Upstream: main startup.
// Downstream: newDailyLog.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*logFanout, error) {
	fanout := newLogFanout(&writerSink{w: console, stamp: true}, nil)
	if !cfg.Enabled {
		return fanout, nil
	}
	daily, err := newDailyLog(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return fanout, err
	}
	fanout.setFile(daily)
	return fanout, nil
}

// SetConsole redirects console output, e.g. into a tview log pane. A nil
// writer silences the console side.
func (f *logFanout) SetConsole(w io.Writer, withStamp bool) {
	if f == nil {
		return
	}
	var sink lineSink
	if w != nil {
		sink = &writerSink{w: w, stamp: withStamp}
	}
	f.mu.Lock()
	f.console = sink
	f.mu.Unlock()
}

func (f *logFanout) setFile(sink lineSink) {
	f.mu.Lock()
	f.file = sink
	f.mu.Unlock()
}

func (f *logFanout) Write(p []byte) (int, error) {
	if f == nil {
		return len(p), nil
	}
	f.mu.Lock()
	f.partial = append(f.partial, p...)
	rest := f.partial
	var lines []string
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(rest[:idx], "\r")))
		rest = rest[idx+1:]
	}
	// An unterminated run that grows too large is flushed as its own line.
	if len(rest) > maxPartialBytes {
		lines = append(lines, string(bytes.TrimRight(rest, "\r")))
		rest = rest[:0]
	}
	f.partial = append(f.partial[:0], rest...)
	console, file := f.console, f.file
	now := f.now()
	f.mu.Unlock()

	for _, line := range lines {
		if console != nil {
			console.WriteLine(line, now)
		}
		if file != nil {
			file.WriteLine(line, now)
		}
	}
	return len(p), nil
}

func (f *logFanout) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	console, file := f.console, f.file
	f.mu.Unlock()
	if console != nil {
		_ = console.Close()
	}
	if file != nil {
		return file.Close()
	}
	return nil
}

func stamp(now time.Time) string {
	return now.UTC().Format(logStampLayout)
}

func logFileName(now time.Time) string {
	return now.UTC().Format(logDayLayout) + ".log"
}

func logFileDay(name string) (time.Time, bool) {
	if filepath.Ext(name) != ".log" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(logDayLayout, strings.TrimSuffix(name, ".log"), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// pruneLogs removes day files older than keepDays, counting today.
func pruneLogs(dir string, now time.Time, keepDays int) error {
	if keepDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(keepDays - 1))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if day, ok := logFileDay(e.Name()); ok && day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
