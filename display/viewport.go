package display

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"newsboard/internal/ratelimit"
)

// Surface is a physical or virtual output device.
type Surface interface {
	Push(f Frame) error
	Clear() error
	Close() error
}

// SurfaceError reports a failed write to a surface.
type SurfaceError struct {
	Op  string
	Err error
}

func (e *SurfaceError) Error() string {
	return fmt.Sprintf("surface %s: %v", e.Op, e.Err)
}

func (e *SurfaceError) Unwrap() error { return e.Err }

// Viewport pairs a layout with the surface it is shown on. Push and Clear are
// best effort: failures are logged (throttled) and never returned. Calls are
// serialized so that a frame is never interleaved with another.
type Viewport struct {
	layout  Layout
	surface Surface
	logger  *log.Logger

	mu      sync.Mutex
	errs    *ratelimit.Counter
	frames  atomic.Uint64
	dropped atomic.Uint64
}

const surfaceErrorLogInterval = 30 * time.Second

// NewViewport pairs a layout with the surface that shows its frames.
func NewViewport(layout Layout, surface Surface, logger *log.Logger) *Viewport {
	return &Viewport{
		layout:  layout,
		surface: surface,
		logger:  logger,
		errs:    ratelimit.NewCounter(surfaceErrorLogInterval),
	}
}

// Layout returns the geometry frames are composed for.
func (v *Viewport) Layout() Layout { return v.layout }

// Push sends one frame to the surface.
func (v *Viewport) Push(f Frame) {
	if v == nil || v.surface == nil {
		return
	}
	v.mu.Lock()
	err := v.surface.Push(f)
	v.mu.Unlock()
	v.frames.Add(1)
	if err != nil {
		v.dropped.Add(1)
		v.report(&SurfaceError{Op: "push", Err: err})
	}
}

// Clear blanks the surface.
func (v *Viewport) Clear() {
	if v == nil || v.surface == nil {
		return
	}
	v.mu.Lock()
	err := v.surface.Clear()
	v.mu.Unlock()
	if err != nil {
		v.report(&SurfaceError{Op: "clear", Err: err})
	}
}

// Close releases the surface.
func (v *Viewport) Close() error {
	if v == nil || v.surface == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.surface.Close()
}

// Frames reports frames pushed and frames the surface rejected.
func (v *Viewport) Frames() (pushed, dropped uint64) {
	if v == nil {
		return 0, 0
	}
	return v.frames.Load(), v.dropped.Load()
}

func (v *Viewport) report(err error) {
	total, suppressed, ok := v.errs.Inc()
	if !ok || v.logger == nil {
		return
	}
	if suppressed > 0 {
		v.logger.Printf("Display: %v (%d errors total, %d suppressed)", err, total, suppressed)
		return
	}
	v.logger.Printf("Display: %v", err)
}

// Multi fans a frame out to several surfaces. Every surface is attempted; the
// errors are joined.
type Multi []Surface

func (m Multi) Push(f Frame) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Push(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Clear() error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
