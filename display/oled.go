package display

import (
	"fmt"
	"image"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// OLED drives an SSD1306 panel over I2C. It needs frames from a BitmapLayout.
type OLED struct {
	mu    sync.Mutex
	bus   i2c.BusCloser
	dev   *ssd1306.Dev
	blank *image.Gray
}

// OpenOLED initializes the host drivers and the panel on the named bus.
func OpenOLED(busName string, w, h int) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	opts := ssd1306.DefaultOpts
	opts.W = w
	opts.H = h
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ssd1306 init: %w", err)
	}
	return &OLED{
		bus:   bus,
		dev:   dev,
		blank: image.NewGray(image.Rect(0, 0, w, h)),
	}, nil
}

func (o *OLED) Push(f Frame) error {
	if f.Image == nil {
		return fmt.Errorf("oled frame has no bitmap")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dev.Draw(f.Image.Bounds(), f.Image, image.Point{})
}

func (o *OLED) Clear() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dev.Draw(o.blank.Bounds(), o.blank, image.Point{})
}

func (o *OLED) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := o.dev.Halt()
	if cerr := o.bus.Close(); err == nil {
		err = cerr
	}
	return err
}
