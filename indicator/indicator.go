// Package indicator paints an animated busy label on a viewport while a slow
// call is outstanding.
package indicator

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"newsboard/display"
)

const DefaultPeriod = 500 * time.Millisecond

// simulationLogEvery is how many ticks pass between progress lines when no
// viewport is attached.
const simulationLogEvery = 10

// Handle controls one running indicator.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches the indicator and pushes its first frame right away. With a
// nil viewport progress goes to logger instead.
func Start(vp *display.Viewport, label string, period time.Duration, logger *log.Logger) *Handle {
	if period <= 0 {
		period = DefaultPeriod
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go run(ctx, h.done, vp, label, period, logger)
	return h
}

// Stop cancels the indicator and waits until it has exited. No frame is
// pushed after Stop returns. Stop is safe to call more than once.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}

// Frame returns the label for tick n: one, two, then three dots.
func Frame(label string, n int) string {
	return label + strings.Repeat(".", n%3+1)
}

func run(ctx context.Context, done chan<- struct{}, vp *display.Viewport, label string, period time.Duration, logger *log.Logger) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	started := time.Now()
	for tick := 0; ; tick++ {
		if ctx.Err() != nil {
			return
		}
		if vp != nil {
			if layout := vp.Layout(); layout != nil {
				vp.Push(layout.Compose(Frame(label, tick), "", 0))
			}
		} else if logger != nil && tick%simulationLogEvery == 0 {
			if tick == 0 {
				logger.Printf("Indicator: %s", Frame(label, 2))
			} else {
				logger.Printf("Indicator: %s still working (%s)", label, time.Since(started).Round(time.Second))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
