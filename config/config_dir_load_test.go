package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDirectoryMergesFiles(t *testing.T) {
	dir := t.TempDir()

	channels := `channels:
  - name: "Alpha"
    url: "https://example.com/a.xml"
  - name: "Beta"
    url: "https://example.com/b.xml"
refresh:
  interval_seconds: 60
`
	display := `display:
  mode: "LCD"
  columns: 20
  rows: 4
  i2c:
    address: 0x3f
transform:
  mode: headlines
`
	if err := os.WriteFile(filepath.Join(dir, "channels.yaml"), []byte(channels), 0o644); err != nil {
		t.Fatalf("write channels.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "display.yml"), []byte(display), 0o644); err != nil {
		t.Fatalf("write display.yml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not yaml: ["), 0o644); err != nil {
		t.Fatalf("write README.txt: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := filepath.Clean(cfg.LoadedFrom); got != filepath.Clean(dir) {
		t.Fatalf("expected LoadedFrom=%s, got %s", dir, got)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[1].Name != "Beta" {
		t.Fatalf("expected two channels from channels.yaml, got %+v", cfg.Channels)
	}
	if cfg.Refresh.Interval() != time.Minute {
		t.Fatalf("expected 1m interval, got %s", cfg.Refresh.Interval())
	}
	if cfg.Display.Mode != DisplayLCD {
		t.Fatalf("expected display mode normalized to lcd, got %q", cfg.Display.Mode)
	}
	if cfg.Display.Columns != 20 || cfg.Display.Rows != 4 || cfg.Display.I2C.Address != 0x3f {
		t.Fatalf("expected display geometry from display.yml, got %+v", cfg.Display)
	}
	if cfg.Display.I2C.Bus != "1" {
		t.Fatalf("expected default i2c bus to survive merge, got %q", cfg.Display.I2C.Bus)
	}
	if cfg.Refresh.MaxItems != 3 {
		t.Fatalf("expected default max_items=3, got %d", cfg.Refresh.MaxItems)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected merged config to validate, got %v", err)
	}
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	body := "channels:\n  - name: A\n    url: http://a\ntransform:\n  mode: headlines\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write runtime.yaml: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Channels) != 1 || cfg.Channels[0].URL != "http://a" {
		t.Fatalf("unexpected channels %+v", cfg.Channels)
	}
}

func TestLoadRejectsEmptyDirectory(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected Load() to reject a directory without YAML files")
	}
}

func TestLoadReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("channels: [\n"), 0o644); err != nil {
		t.Fatalf("write bad.yaml: %v", err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Fatalf("expected parse error naming bad.yaml, got %v", err)
	}
}

func TestValidateReportsFatalConfigError(t *testing.T) {
	t.Setenv(envAPIKey, "")
	cfg := Defaults()
	cfg.Channels = []ChannelConfig{{Name: "A", URL: ""}, {Name: "A", URL: "http://x"}}
	cfg.Display.Mode = "plasma"
	cfg.normalize()

	err := cfg.Validate()
	var fatal *FatalConfigError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalConfigError, got %v", err)
	}
	joined := strings.Join(fatal.Problems, "\n")
	for _, want := range []string{"url is empty", "duplicate channel", "plasma", "api_key"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected problem mentioning %q, got:\n%s", want, joined)
		}
	}
}

func TestValidateRequiresChannels(t *testing.T) {
	cfg := Defaults()
	cfg.Transform.Mode = TransformHeadlines
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation to fail without channels")
	}
}

func TestAPIKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv(envAPIKey, "sk-test")
	dir := t.TempDir()
	body := "channels:\n  - name: A\n    url: http://a\n"
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write app.yaml: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transform.APIKey != "sk-test" {
		t.Fatalf("expected api key from environment, got %q", cfg.Transform.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to validate, got %v", err)
	}
}

func TestScrollStrideDefaultsPerLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	body := "channels:\n  - name: A\n    url: http://a\ntransform:\n  mode: headlines\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write runtime.yaml: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Display.ScrollStride != 1 || cfg.Display.ScrollStridePx != 2 {
		t.Fatalf("expected strides 1/2, got %d/%d", cfg.Display.ScrollStride, cfg.Display.ScrollStridePx)
	}

	cfg.Display.ScrollStridePx = 0
	err = cfg.Validate()
	var fatal *FatalConfigError
	if !errors.As(err, &fatal) || !strings.Contains(strings.Join(fatal.Problems, "\n"), "scroll_stride_px") {
		t.Fatalf("expected scroll_stride_px problem, got %v", err)
	}
}
