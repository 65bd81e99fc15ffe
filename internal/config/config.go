// Package config loads SnapSum settings.
//
// Values are layered, later layers winning:
//
//  1. Defaults from Default.
//  2. A JSON file, by default snapsum.json in the user config directory.
//  3. A .env file in the working directory, loaded with godotenv. It never
//     overrides variables already set in the environment.
//  4. SNAPSUM_* environment variables.
//
// The result is checked by Validate before it is returned.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/ocr"
	"github.com/ironsheep/snapsum/internal/selection"
)

const (
	// FileName is the config file looked up in the user config directory.
	FileName = "snapsum.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SNAPSUM_"

	DefaultOutlineColor = "#ff0000"
)

// OCRConfig configures the recognition engine.
type OCRConfig struct {
	Language       string `json:"language"`
	TessdataPrefix string `json:"tessdata_prefix,omitempty"`
	Whitelist      string `json:"whitelist,omitempty"`
	PageSegMode    int    `json:"page_seg_mode"`
	Granularity    string `json:"granularity"`

	// SignedNumbers keeps signed decimals from OCR output instead of only
	// unsigned digit tokens.
	SignedNumbers bool `json:"signed_numbers"`
}

// OutlineConfig styles the selection rectangle.
type OutlineConfig struct {
	Color string  `json:"color"`
	Width float32 `json:"width"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// WindowConfig sizes the main window.
type WindowConfig struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// WatchConfig tunes the directory watcher.
type WatchConfig struct {
	// DebounceMS is how long a file must stay unchanged before it is
	// recognized.
	DebounceMS int `json:"debounce_ms"`
}

// Config holds all settings.
type Config struct {
	ScaleFactor      float64 `json:"scale_factor"`
	PreviewMinLength int     `json:"preview_min_length"`
	CaptureMinLength int     `json:"capture_min_length"`

	// CaptureCancelDelayMS delays closing the capture window after a right
	// click so the release does not reach the window underneath.
	CaptureCancelDelayMS int `json:"capture_cancel_delay_ms"`

	// TempDir receives cropped images; empty means the system temp dir.
	TempDir string `json:"temp_dir,omitempty"`

	OCR        OCRConfig                 `json:"ocr"`
	Preprocess imaging.PreprocessOptions `json:"preprocess"`
	Outline    OutlineConfig             `json:"outline"`
	Log        LogConfig                 `json:"log"`
	Window     WindowConfig              `json:"window"`
	Watch      WatchConfig               `json:"watch"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ScaleFactor:          selection.DefaultScaleFactor,
		PreviewMinLength:     selection.PreviewMinLength,
		CaptureMinLength:     selection.CaptureMinLength,
		CaptureCancelDelayMS: 200,
		OCR: OCRConfig{
			Language:    "eng",
			Granularity: string(ocr.GranularityWord),
		},
		Outline: OutlineConfig{Color: DefaultOutlineColor, Width: 2},
		Log:     LogConfig{Level: "info", Format: "text"},
		Window:  WindowConfig{Width: 420, Height: 520},
		Watch:   WatchConfig{DebounceMS: 300},
	}
}

// DefaultPath returns the config file location in the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "snapsum", FileName), nil
}

// Load builds the configuration. An empty path uses DefaultPath and a missing
// default file is not an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, apperr.Config(err, "failed to read config file")
			}
		}
	}

	if err := loadDotenv(".env"); err != nil {
		return nil, apperr.Config(err, "failed to read .env")
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Save writes c as indented JSON, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from SNAPSUM_* variables.
func (c *Config) ApplyEnv() error {
	var err error
	set := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	set(envFloat("SCALE_FACTOR", &c.ScaleFactor))
	set(envInt("PREVIEW_MIN_LENGTH", &c.PreviewMinLength))
	set(envInt("CAPTURE_MIN_LENGTH", &c.CaptureMinLength))
	set(envInt("CAPTURE_CANCEL_DELAY_MS", &c.CaptureCancelDelayMS))
	envString("TEMP_DIR", &c.TempDir)

	envString("OCR_LANGUAGE", &c.OCR.Language)
	envString("TESSDATA_PREFIX", &c.OCR.TessdataPrefix)
	envString("OCR_WHITELIST", &c.OCR.Whitelist)
	set(envInt("OCR_PSM", &c.OCR.PageSegMode))
	envString("OCR_GRANULARITY", &c.OCR.Granularity)
	set(envBool("SIGNED_NUMBERS", &c.OCR.SignedNumbers))

	set(envBool("PREPROCESS_GRAYSCALE", &c.Preprocess.Grayscale))
	set(envFloat("PREPROCESS_CONTRAST", &c.Preprocess.Contrast))
	set(envFloat("PREPROCESS_UPSCALE", &c.Preprocess.Upscale))
	if v, ok := lookup("PREPROCESS_THRESHOLD"); ok {
		n, e := strconv.ParseUint(v, 10, 8)
		if e != nil {
			set(envError("PREPROCESS_THRESHOLD", v, e))
		} else {
			c.Preprocess.Threshold = uint8(n)
		}
	}

	envString("OUTLINE_COLOR", &c.Outline.Color)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	set(envInt("WATCH_DEBOUNCE_MS", &c.Watch.DebounceMS))

	return err
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envError(key, value string, err error) error {
	return apperr.Config(err, fmt.Sprintf("invalid %s%s=%q", EnvPrefix, key, value))
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return envError(key, v, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return envError(key, v, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return envError(key, v, err)
	}
	*dst = b
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperr.Config(fmt.Errorf(format, args...), "invalid configuration")
	}

	switch {
	case c.ScaleFactor <= 0 || c.ScaleFactor > 10:
		return invalid("scale_factor %v must be in (0, 10]", c.ScaleFactor)
	case c.PreviewMinLength < 0:
		return invalid("preview_min_length %d must not be negative", c.PreviewMinLength)
	case c.CaptureMinLength < 0:
		return invalid("capture_min_length %d must not be negative", c.CaptureMinLength)
	case c.CaptureCancelDelayMS < 0:
		return invalid("capture_cancel_delay_ms %d must not be negative", c.CaptureCancelDelayMS)
	case c.OCR.Language == "":
		return invalid("ocr.language must not be empty")
	case c.OCR.PageSegMode < 0 || c.OCR.PageSegMode > 13:
		return invalid("ocr.page_seg_mode %d must be in 0-13", c.OCR.PageSegMode)
	case c.OCR.Granularity != string(ocr.GranularityWord) && c.OCR.Granularity != string(ocr.GranularityLine):
		return invalid("ocr.granularity %q must be word or line", c.OCR.Granularity)
	case c.Preprocess.Contrast < -1 || c.Preprocess.Contrast > 1:
		return invalid("preprocess.contrast %v must be in [-1, 1]", c.Preprocess.Contrast)
	case c.Preprocess.Upscale < 0 || c.Preprocess.Upscale > 8:
		return invalid("preprocess.upscale %v must be in [0, 8]", c.Preprocess.Upscale)
	case c.Outline.Width <= 0:
		return invalid("outline.width %v must be positive", c.Outline.Width)
	case c.Log.Format != "text" && c.Log.Format != "json":
		return invalid("log.format %q must be text or json", c.Log.Format)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return invalid("window size %vx%v must be positive", c.Window.Width, c.Window.Height)
	case c.Watch.DebounceMS < 0:
		return invalid("watch.debounce_ms %d must not be negative", c.Watch.DebounceMS)
	}

	if _, err := colorful.Hex(c.Outline.Color); err != nil {
		return apperr.Config(err, fmt.Sprintf("invalid outline.color %q", c.Outline.Color))
	}
	return nil
}

// OutlineColor parses the outline colour, falling back to red.
func (c *Config) OutlineColor() color.Color {
	col, err := colorful.Hex(c.Outline.Color)
	if err != nil {
		col, _ = colorful.Hex(DefaultOutlineColor)
	}
	return col
}

// TesseractOptions maps the OCR settings onto the engine options.
func (c *Config) TesseractOptions() ocr.TesseractOptions {
	return ocr.TesseractOptions{
		Language:       c.OCR.Language,
		TessdataPrefix: c.OCR.TessdataPrefix,
		Whitelist:      c.OCR.Whitelist,
		PageSegMode:    c.OCR.PageSegMode,
		Granularity:    ocr.Granularity(c.OCR.Granularity),
	}
}
