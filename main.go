// Program newsboard fetches news feeds per channel, condenses each channel into
// a few display lines, and rotates the result across a small text viewport
// (console, terminal bezel, character LCD, or OLED) until the next refresh.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"newsboard/config"
	"newsboard/coordinator"
	"newsboard/display"
	"newsboard/internal/assemble"
	"newsboard/internal/clock"
	"newsboard/render"
	"newsboard/stats"
	"newsboard/status"
)

const (
	defaultConfigPath = "data/config"
	envConfigPath     = "NEWSBOARD_CONFIG"

	exitOK     = 0
	exitConfig = 2
	exitSetup  = 1
)

var Version = "dev"

// Purpose: Load configuration from env/default locations.
// Key aspects: Tries env override first, then the default config dir.
// Upstream: main startup.
// Downstream: config.Load and os.IsNotExist.
func loadConfig() (*config.Config, error) {
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)

	var lastErr error
	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if os.IsNotExist(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("unable to load config; tried %s (last error: %v)", strings.Join(candidates, ", "), lastErr)
}

// reportConfigError prints every validation problem so one edit can fix them all.
func reportConfigError(err error) {
	var fatal *config.FatalConfigError
	if !errors.As(err, &fatal) {
		log.Printf("Config: %v", err)
		return
	}
	log.Printf("Config: %s is not usable:", fatal.Source)
	for _, p := range fatal.Problems {
		log.Printf("  - %s", p)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		log.Printf("Error loading config: %v", err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		reportConfigError(err)
		return exitConfig
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stderr)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Logging: file output disabled: %v", logErr)
	}
	logger := log.Default()

	tty := isStdoutTTY()
	if ownsTerminal := cfg.Display.Mode == config.DisplayTView || cfg.Display.Mode == config.DisplayANSI; !ownsTerminal || !tty {
		cfg.Print()
	}
	log.Printf("newsboard %s starting with config from %s", Version, cfg.LoadedFrom)

	tracker := stats.NewTracker()
	pipe, err := assemble.Pipeline(cfg, tracker, logger)
	if err != nil {
		log.Printf("Transform: %v", err)
		return exitSetup
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sel := openSurface(cfg.Display, tty, logger)
	if sel.pane != nil {
		fanout.SetConsole(sel.pane, true)
	}
	vp := display.NewViewport(sel.layout, sel.surface, logger)
	log.Printf("Display: %s surface, viewport width %d", sel.mode, sel.layout.Width())

	coord := coordinator.New(coordinator.Config{
		Channels:        assemble.Channels(cfg),
		Interval:        cfg.Refresh.Interval(),
		IndicatorPeriod: cfg.Display.IndicatorPeriod(),
		Banner:          cfg.Refresh.Banner,
		Splash:          cfg.Display.Splash,
		SplashHold:      cfg.Display.SplashHold(),
		Farewell:        cfg.Display.Farewell,
		FarewellHold:    cfg.Display.FarewellHold(),
		Stats:           tracker,
	}, pipe, render.New(clock.Real{}, render.Config{
		FrameDelay: cfg.Display.FrameDelay(),
		Dwell:      cfg.Display.Dwell(),
		Stride:     sel.stride,
	}), vp, clock.Real{}, logger)

	var statusSrv *status.Server
	if listen := strings.TrimSpace(cfg.Status.Listen); listen != "" {
		statusSrv, err = status.Start(listen, status.Router(coord), logger)
		if err != nil {
			log.Printf("Status: disabled: %v", err)
		}
	}

	coord.Run(ctx)

	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Status: shutdown: %v", err)
		}
		cancel()
	}
	// The pane disappears with the surface; send the last lines to stderr.
	if sel.pane != nil {
		fanout.SetConsole(os.Stderr, true)
	}
	if err := vp.Close(); err != nil {
		log.Printf("Display: close: %v", err)
	}
	log.Printf("newsboard stopped")
	return exitOK
}
