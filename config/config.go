package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"newsboard/strutil"
)

// Config represents the complete appliance configuration. It is read once at
// startup and treated as immutable afterwards.
type Config struct {
	Channels  []ChannelConfig `yaml:"channels"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Feed      FeedConfig      `yaml:"feed"`
	Transform TransformConfig `yaml:"transform"`
	Display   DisplayConfig   `yaml:"display"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`

	// LoadedFrom records the file or directory the config came from.
	LoadedFrom string `yaml:"-"`
}

// ChannelConfig names one feed.
type ChannelConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// RefreshConfig controls the refresh epoch.
type RefreshConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	MaxItems        int    `yaml:"max_items"`
	ReuseUnchanged  bool   `yaml:"reuse_unchanged"`
	Banner          string `yaml:"banner"`
}

// FeedConfig tunes the feed fetcher.
type FeedConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	SnippetChars   int    `yaml:"snippet_chars"`
	DedupeDistance int    `yaml:"dedupe_distance"`
}

// TransformConfig selects and tunes the summarizer.
type TransformConfig struct {
	Mode           string  `yaml:"mode"` // openai or headlines
	CharBudget     int     `yaml:"char_budget"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Prompt         string  `yaml:"prompt"`
	Model          string  `yaml:"model"`
	Endpoint       string  `yaml:"endpoint"`
	APIKey         string  `yaml:"api_key"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	SystemPrompt   string  `yaml:"system_prompt"`
}

// DisplayConfig describes the viewport and its render cadence.
type DisplayConfig struct {
	Mode              string     `yaml:"mode"` // console, ansi, tview, lcd, oled
	Columns           int        `yaml:"columns"`
	Rows              int        `yaml:"rows"`
	WidthPx           int        `yaml:"width_px"`
	HeightPx          int        `yaml:"height_px"`
	FrameDelayMS      int        `yaml:"frame_delay_ms"`
	DwellMS           int        `yaml:"dwell_ms"`
	ScrollStride      int        `yaml:"scroll_stride"`    // cells per frame
	ScrollStridePx    int        `yaml:"scroll_stride_px"` // pixels per frame on oled
	IndicatorPeriodMS int        `yaml:"indicator_period_ms"`
	Color             bool       `yaml:"color"`
	Splash            string     `yaml:"splash"`
	SplashMS          int        `yaml:"splash_ms"`
	Farewell          string     `yaml:"farewell"`
	FarewellMS        int        `yaml:"farewell_ms"`
	I2C               I2CConfig  `yaml:"i2c"`
	MQTT              MQTTConfig `yaml:"mqtt"`
}

// I2CConfig locates an I2C display.
type I2CConfig struct {
	Bus     string `yaml:"bus"`
	Address int    `yaml:"address"`
}

// MQTTConfig configures the optional frame mirror.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// StatusConfig configures the read-only status endpoint.
type StatusConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

const (
	DisplayConsole = "console"
	DisplayANSI    = "ansi"
	DisplayTView   = "tview"
	DisplayLCD     = "lcd"
	DisplayOLED    = "oled"

	TransformOpenAI    = "openai"
	TransformHeadlines = "headlines"

	envAPIKey = "OPENAI_API_KEY"
)

// Defaults returns a pinned default configuration.
func Defaults() *Config {
	return &Config{
		Refresh: RefreshConfig{
			IntervalSeconds: 3 * 60 * 60,
			MaxItems:        3,
		},
		Feed: FeedConfig{
			TimeoutSeconds: 15,
			UserAgent:      "newsboard/1.0",
			SnippetChars:   280,
			DedupeDistance: 3,
		},
		Transform: TransformConfig{
			Mode:       TransformOpenAI,
			CharBudget: 250,
			Model:      "gpt-5-mini",
		},
		Display: DisplayConfig{
			Mode:              DisplayConsole,
			Columns:           16,
			Rows:              2,
			WidthPx:           128,
			HeightPx:          64,
			FrameDelayMS:      300,
			DwellMS:           3000,
			ScrollStride:      1,
			ScrollStridePx:    2,
			IndicatorPeriodMS: 500,
			Color:             true,
			Splash:            "News Display",
			SplashMS:          2000,
			Farewell:          "Goodbye!",
			FarewellMS:        1000,
			I2C: I2CConfig{
				Bus:     "1",
				Address: 0x27,
			},
			MQTT: MQTTConfig{
				Port:  1883,
				Topic: "newsboard/frames",
			},
		},
		Logging: LoggingConfig{
			Dir:           filepath.Join("data", "logs"),
			RetentionDays: 7,
		},
	}
}

// Load reads configuration from a YAML file or from a directory of YAML files.
// Directory files are merged over the defaults in lexical order.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	files := []string{path}
	if info.IsDir() {
		files, err = yamlFiles(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no YAML files in config directory %s", path)
		}
	}

	cfg := Defaults()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}
	cfg.LoadedFrom = path
	cfg.normalize()
	return cfg, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (c *Config) normalize() {
	for i := range c.Channels {
		c.Channels[i].Name = strings.TrimSpace(c.Channels[i].Name)
		c.Channels[i].URL = strings.TrimSpace(c.Channels[i].URL)
	}
	c.Display.Mode = strutil.NormalizeLower(c.Display.Mode)
	c.Transform.Mode = strutil.NormalizeLower(c.Transform.Mode)
	if strings.TrimSpace(c.Transform.APIKey) == "" {
		c.Transform.APIKey = strings.TrimSpace(os.Getenv(envAPIKey))
	}
}

// Validate checks the settings the appliance cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Channels) == 0 {
		problems = append(problems, "at least one channel is required")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			problems = append(problems, fmt.Sprintf("channels[%d].name is empty", i))
		}
		if ch.URL == "" {
			problems = append(problems, fmt.Sprintf("channels[%d].url is empty", i))
		}
		if _, dup := seen[ch.Name]; dup && ch.Name != "" {
			problems = append(problems, fmt.Sprintf("duplicate channel name %q", ch.Name))
		}
		seen[ch.Name] = struct{}{}
	}
	if c.Refresh.IntervalSeconds <= 0 {
		problems = append(problems, "refresh.interval_seconds must be positive")
	}
	if c.Refresh.MaxItems <= 0 {
		problems = append(problems, "refresh.max_items must be positive")
	}
	switch c.Display.Mode {
	case DisplayConsole, DisplayANSI, DisplayTView, DisplayLCD:
		if c.Display.Columns <= 0 || c.Display.Rows <= 0 {
			problems = append(problems, "display.columns and display.rows must be positive")
		}
	case DisplayOLED:
		if c.Display.WidthPx <= 0 || c.Display.HeightPx <= 0 {
			problems = append(problems, "display.width_px and display.height_px must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("display.mode %q not recognized", c.Display.Mode))
	}
	if c.Display.ScrollStride <= 0 {
		problems = append(problems, "display.scroll_stride must be positive")
	}
	if c.Display.ScrollStridePx <= 0 {
		problems = append(problems, "display.scroll_stride_px must be positive")
	}
	switch c.Transform.Mode {
	case TransformOpenAI:
		if c.Transform.APIKey == "" {
			problems = append(problems, "transform.api_key or "+envAPIKey+" is required in openai mode")
		}
	case TransformHeadlines:
	default:
		problems = append(problems, fmt.Sprintf("transform.mode %q not recognized", c.Transform.Mode))
	}
	if c.Display.MQTT.Enabled && strings.TrimSpace(c.Display.MQTT.Broker) == "" {
		problems = append(problems, "display.mqtt.broker is required when the mirror is enabled")
	}
	if len(problems) > 0 {
		return &FatalConfigError{Source: c.LoadedFrom, Problems: problems}
	}
	return nil
}

// FatalConfigError reports configuration the process cannot start with.
type FatalConfigError struct {
	Source   string
	Problems []string
}

func (e *FatalConfigError) Error() string {
	src := e.Source
	if src == "" {
		src = "config"
	}
	return fmt.Sprintf("%s: %s", src, strings.Join(e.Problems, "; "))
}

// Interval returns the refresh interval.
func (r RefreshConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

func (f FeedConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func (t TransformConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

func (d DisplayConfig) FrameDelay() time.Duration { return ms(d.FrameDelayMS) }
func (d DisplayConfig) Dwell() time.Duration      { return ms(d.DwellMS) }
func (d DisplayConfig) IndicatorPeriod() time.Duration {
	return ms(d.IndicatorPeriodMS)
}
func (d DisplayConfig) SplashHold() time.Duration   { return ms(d.SplashMS) }
func (d DisplayConfig) FarewellHold() time.Duration { return ms(d.FarewellMS) }

func ms(v int) time.Duration {
	if v < 0 {
		v = 0
	}
	return time.Duration(v) * time.Millisecond
}

// Print displays the configuration.
func (c *Config) Print() {
	fmt.Printf("Channels: %d (every %s, max %d items)\n", len(c.Channels), c.Refresh.Interval(), c.Refresh.MaxItems)
	for _, ch := range c.Channels {
		fmt.Printf("  %s -> %s\n", ch.Name, ch.URL)
	}
	fmt.Printf("Transform: %s (budget %d chars)\n", c.Transform.Mode, c.Transform.CharBudget)
	if c.Display.Mode == DisplayOLED {
		fmt.Printf("Display: %s %dx%d px\n", c.Display.Mode, c.Display.WidthPx, c.Display.HeightPx)
	} else {
		fmt.Printf("Display: %s %dx%d\n", c.Display.Mode, c.Display.Columns, c.Display.Rows)
	}
	if c.Display.MQTT.Enabled {
		fmt.Printf("Mirror: mqtt://%s:%d/%s\n", c.Display.MQTT.Broker, c.Display.MQTT.Port, c.Display.MQTT.Topic)
	}
	if c.Status.Listen != "" {
		fmt.Printf("Status: http://%s/status\n", c.Status.Listen)
	}
}
