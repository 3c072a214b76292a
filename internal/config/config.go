// Package config holds the application settings, their defaults and their
// validation. Settings may be read from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"invisibility-cloak/internal/cloak"
)

// Defaults.
const (
	DefaultDevice       = "0"
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 860
	DefaultLogLevel     = "info"
	DefaultLogMaxSize   = 50 // MB
	DefaultLogBackups   = 3
	DefaultLogMaxAge    = 28 // days
)

// Config is the complete application configuration.
type Config struct {
	Camera     Camera     `toml:"camera"`
	Background Background `toml:"background"`
	Color      Color      `toml:"color"`
	Refine     Refine     `toml:"refine"`
	Log        Log        `toml:"log"`
	UI         UI         `toml:"ui"`
}

// Camera selects the capture device. Device is either a device index such
// as "0" or a path to a video file or a directory of still images.
type Camera struct {
	Device string `toml:"device"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Background struct {
	Frames   int           `toml:"frames"`
	Interval time.Duration `toml:"interval"`
}

// Color holds HSV bounds as [H, S, V] triples. The second band is optional
// and only used when both of its bounds are set.
type Color struct {
	Lower       [3]int  `toml:"lower"`
	Upper       [3]int  `toml:"upper"`
	SecondLower *[3]int `toml:"second_lower"`
	SecondUpper *[3]int `toml:"second_upper"`
}

type Refine struct {
	KernelSize       int `toml:"kernel_size"`
	OpenIterations   int `toml:"open_iterations"`
	DilateIterations int `toml:"dilate_iterations"`
}

type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
}

type UI struct {
	Headless     bool    `toml:"headless"`
	WindowWidth  float32 `toml:"window_width"`
	WindowHeight float32 `toml:"window_height"`
}

// Default returns the built-in configuration.
func Default() Config {
	r := cloak.DefaultColorRange()
	return Config{
		Camera: Camera{Device: DefaultDevice},
		Background: Background{
			Frames:   cloak.DefaultBackgroundFrames,
			Interval: cloak.DefaultBackgroundInterval,
		},
		Color: Color{
			Lower: triple(r.Primary.Lower),
			Upper: triple(r.Primary.Upper),
		},
		Refine: Refine{
			KernelSize:       cloak.DefaultKernelSize,
			OpenIterations:   cloak.DefaultOpenIterations,
			DilateIterations: cloak.DefaultDilateIterations,
		},
		Log: Log{
			Level:      DefaultLogLevel,
			MaxSize:    DefaultLogMaxSize,
			MaxBackups: DefaultLogBackups,
			MaxAge:     DefaultLogMaxAge,
		},
		UI: UI{
			WindowWidth:  DefaultWindowWidth,
			WindowHeight: DefaultWindowHeight,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	if _, err := os.Stat(path); err != nil {
		return c, fmt.Errorf("config file: %w", err)
	}

	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return c, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return c, nil
}

// Validate replaces bad or unset fields with their defaults, logging each
// replacement. It fails only for color bounds that cannot be repaired.
func (c *Config) Validate(log *logrus.Logger) error {
	d := Default()

	if c.Camera.Device == "" {
		logInvalidField(log, "Camera.Device", d.Camera.Device)
		c.Camera.Device = d.Camera.Device
	}
	if c.Camera.Width < 0 {
		logInvalidField(log, "Camera.Width", 0)
		c.Camera.Width = 0
	}
	if c.Camera.Height < 0 {
		logInvalidField(log, "Camera.Height", 0)
		c.Camera.Height = 0
	}

	if c.Background.Frames <= 0 {
		logInvalidField(log, "Background.Frames", d.Background.Frames)
		c.Background.Frames = d.Background.Frames
	}
	if c.Background.Interval < 0 {
		logInvalidField(log, "Background.Interval", d.Background.Interval)
		c.Background.Interval = d.Background.Interval
	}

	if c.Refine.KernelSize < 1 || c.Refine.KernelSize > 15 {
		logInvalidField(log, "Refine.KernelSize", d.Refine.KernelSize)
		c.Refine.KernelSize = d.Refine.KernelSize
	}
	if c.Refine.OpenIterations < 0 {
		logInvalidField(log, "Refine.OpenIterations", d.Refine.OpenIterations)
		c.Refine.OpenIterations = d.Refine.OpenIterations
	}
	if c.Refine.DilateIterations < 0 {
		logInvalidField(log, "Refine.DilateIterations", d.Refine.DilateIterations)
		c.Refine.DilateIterations = d.Refine.DilateIterations
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		logInvalidField(log, "Log.Level", d.Log.Level)
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSize <= 0 {
		logInvalidField(log, "Log.MaxSize", d.Log.MaxSize)
		c.Log.MaxSize = d.Log.MaxSize
	}

	if c.UI.WindowWidth <= 0 || c.UI.WindowHeight <= 0 {
		logInvalidField(log, "UI.WindowSize", fmt.Sprintf("%vx%v", d.UI.WindowWidth, d.UI.WindowHeight))
		c.UI.WindowWidth, c.UI.WindowHeight = d.UI.WindowWidth, d.UI.WindowHeight
	}

	if (c.Color.SecondLower == nil) != (c.Color.SecondUpper == nil) {
		return errors.New("second color band needs both second_lower and second_upper")
	}
	if _, err := c.ColorRange(); err != nil {
		return err
	}
	return nil
}

// ColorRange converts the configured bounds into a cloak.ColorRange.
func (c *Config) ColorRange() (cloak.ColorRange, error) {
	var r cloak.ColorRange
	var err error

	r.Primary, err = band(c.Color.Lower, c.Color.Upper)
	if err != nil {
		return r, fmt.Errorf("color: %w", err)
	}

	if c.Color.SecondLower != nil && c.Color.SecondUpper != nil {
		second, err := band(*c.Color.SecondLower, *c.Color.SecondUpper)
		if err != nil {
			return r, fmt.Errorf("second color band: %w", err)
		}
		r.Secondary = &second
	}

	return r, r.Validate()
}

func band(lower, upper [3]int) (cloak.Band, error) {
	l, err := hsv(lower)
	if err != nil {
		return cloak.Band{}, fmt.Errorf("lower bound: %w", err)
	}
	u, err := hsv(upper)
	if err != nil {
		return cloak.Band{}, fmt.Errorf("upper bound: %w", err)
	}
	b := cloak.Band{Lower: l, Upper: u}
	return b, b.Validate()
}

func hsv(v [3]int) (cloak.HSV, error) {
	if v[0] < 0 || v[0] > cloak.MaxHue {
		return cloak.HSV{}, fmt.Errorf("hue %d out of range [0, %d]", v[0], cloak.MaxHue)
	}
	for _, ch := range v[1:] {
		if ch < 0 || ch > 255 {
			return cloak.HSV{}, fmt.Errorf("channel value %d out of range [0, 255]", ch)
		}
	}
	return cloak.HSV{H: uint8(v[0]), S: uint8(v[1]), V: uint8(v[2])}, nil
}

func triple(c cloak.HSV) [3]int {
	return [3]int{int(c.H), int(c.S), int(c.V)}
}

func logInvalidField(log *logrus.Logger, name string, def interface{}) {
	if log == nil {
		return
	}
	log.WithFields(logrus.Fields{
		"field":   name,
		"default": def,
	}).Info(name + " bad or unset, defaulting")
}
