package main

import (
	"io"
	"log"
	"os"
	"time"

	"newsboard/config"
	"newsboard/display"

	"golang.org/x/term"
)

const (
	ansiLogLines = 10
	ansiRefresh  = 100 * time.Millisecond
)

// selectedSurface is what openSurface settled on.
type selectedSurface struct {
	mode    string
	layout  display.Layout
	surface display.Surface
	// pane, when set, owns the terminal and should receive log output.
	pane io.Writer
	// stride is the pan step in layout units.
	stride int
}

// scrollStride picks the pan step for the layout: pixels for bitmap layouts,
// cells otherwise.
func scrollStride(cfg config.DisplayConfig, layout display.Layout) int {
	if _, ok := layout.(display.BitmapLayout); ok {
		return cfg.ScrollStridePx
	}
	return cfg.ScrollStride
}

// Purpose: Report whether stdout is a TTY for surface gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: openSurface.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Open the configured display surface.
// Key aspects: Terminal surfaces need a TTY; hardware surfaces fall back to
// the console simulation when the bus cannot be opened. The MQTT mirror is
// added on top of whatever surface was chosen.
// Upstream: main startup.
// Downstream: display surface constructors.
func openSurface(cfg config.DisplayConfig, tty bool, logger *log.Logger) selectedSurface {
	chars := display.CharLayout{Cols: cfg.Columns, Rows: cfg.Rows}
	console := func(reason string) selectedSurface {
		if reason != "" {
			logger.Printf("Display: %s; using console simulation", reason)
		}
		return selectedSurface{
			mode:    config.DisplayConsole,
			layout:  chars,
			surface: display.NewConsole(os.Stdout, cfg.Color && tty, false),
		}
	}

	var sel selectedSurface
	switch cfg.Mode {
	case config.DisplayANSI:
		if !tty {
			sel = console("ansi renderer requires an interactive console")
			break
		}
		a := display.NewANSI(os.Stdout, cfg.Columns, cfg.Rows, ansiLogLines, cfg.Color, ansiRefresh)
		sel = selectedSurface{mode: cfg.Mode, layout: chars, surface: a, pane: a.SystemWriter()}
	case config.DisplayTView:
		if !tty {
			sel = console("tview requires an interactive console")
			break
		}
		t := display.NewTView(cfg.Columns, cfg.Rows)
		t.WaitReady()
		sel = selectedSurface{mode: cfg.Mode, layout: chars, surface: t, pane: t.SystemWriter()}
	case config.DisplayLCD:
		lcd, err := display.OpenLCD(cfg.I2C.Bus, uint16(cfg.I2C.Address), cfg.Columns, cfg.Rows)
		if err != nil {
			sel = console("lcd unavailable: " + err.Error())
			break
		}
		logger.Printf("Display: LCD %dx%d on i2c bus %s addr 0x%02x", cfg.Columns, cfg.Rows, cfg.I2C.Bus, cfg.I2C.Address)
		sel = selectedSurface{mode: cfg.Mode, layout: chars, surface: lcd}
	case config.DisplayOLED:
		oled, err := display.OpenOLED(cfg.I2C.Bus, cfg.WidthPx, cfg.HeightPx)
		if err != nil {
			sel = console("oled unavailable: " + err.Error())
			break
		}
		logger.Printf("Display: OLED %dx%d px on i2c bus %s", cfg.WidthPx, cfg.HeightPx, cfg.I2C.Bus)
		sel = selectedSurface{mode: cfg.Mode, layout: display.NewBitmapLayout(cfg.WidthPx, cfg.HeightPx, nil), surface: oled}
	default:
		sel = console("")
	}
	sel.stride = scrollStride(cfg, sel.layout)

	if cfg.MQTT.Enabled {
		mirror, err := display.ConnectMirror(display.MirrorConfig{
			Broker:   cfg.MQTT.Broker,
			Port:     cfg.MQTT.Port,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, logger)
		if err != nil {
			logger.Printf("Display: MQTT mirror disabled: %v", err)
		} else {
			sel.surface = display.Multi{sel.surface, mirror}
		}
	}
	return sel
}
