// Invisibility Cloak
// Replaces a colored cloth in a live camera feed with the scene behind it.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"invisibility-cloak/internal/camera"
	"invisibility-cloak/internal/cloak"
	"invisibility-cloak/internal/config"
	"invisibility-cloak/internal/display"
	"invisibility-cloak/internal/gui"
	cloakio "invisibility-cloak/internal/io"
	"invisibility-cloak/internal/session"
)

const (
	AppName    = "Invisibility Cloak"
	AppID      = "com.example.invisibility-cloak"
	AppVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	device := flag.String("device", "", "Camera index, video file or directory of still images")
	frames := flag.Int("frames", 0, "Number of frames sampled for the background")
	headless := flag.Bool("headless", false, "Run without the GUI, showing output in an OpenCV window")
	logFile := flag.String("logfile", "", "Also write logs to this file, rotated")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(2)
	}

	// Flags given explicitly override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Camera.Device = *device
		case "frames":
			cfg.Background.Frames = *frames
		case "headless":
			cfg.UI.Headless = *headless
		case "logfile":
			cfg.Log.File = *logFile
		}
	})

	logger := initLogger(*debugMode, cfg.Log)
	if err := cfg.Validate(logger); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": *debugMode,
		"device":     cfg.Camera.Device,
		"headless":   cfg.UI.Headless,
	}).Info("Starting Invisibility Cloak")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Application failed")
	}

	logger.Info("Application shutting down gracefully")
}

func run(cfg config.Config, logger *logrus.Logger) error {
	src, err := camera.Open(cfg.Camera, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release camera")
		}
	}()

	colors, err := cfg.ColorRange()
	if err != nil {
		return err
	}
	refiner, err := cloak.NewRefiner(cfg.Refine.KernelSize, cfg.Refine.OpenIterations, cfg.Refine.DilateIterations)
	if err != nil {
		return err
	}
	effect, err := cloak.NewEffect(colors, refiner, logger)
	if err != nil {
		refiner.Close()
		return err
	}
	defer effect.Close()

	target := effect.Colors()
	entry := logger.WithFields(logrus.Fields{
		"lower": target.Primary.Lower,
		"upper": target.Primary.Upper,
	})
	if target.Secondary != nil {
		entry = entry.WithFields(logrus.Fields{
			"second_lower": target.Secondary.Lower,
			"second_upper": target.Secondary.Upper,
		})
	}
	entry.Info("Cloak color range")

	estimator := cloak.NewEstimator(logger)
	estimator.Frames = cfg.Background.Frames
	estimator.Interval = cfg.Background.Interval

	// Deferred last so it runs first: Close waits for the capture or live loop
	// before the effect and camera are released.
	controller := session.NewController(src, estimator, effect, logger)
	defer controller.Close()

	if cfg.UI.Headless {
		return runHeadless(controller, logger)
	}

	myApp := app.NewWithID(AppID)
	myApp.SetIcon(theme.MediaVideoIcon())
	myApp.Settings().SetTheme(theme.DefaultTheme())

	mainApp := gui.NewApplication(myApp, controller, cloakio.NewImageLoader(logger), cfg.UI, logger)
	estimator.OnSampleFailed = mainApp.ReportSampleFailure
	mainApp.ShowAndRun()
	return nil
}

// runHeadless captures the background, then shows the effect in an OpenCV
// window until a key is pressed or the process is interrupted.
func runHeadless(controller *session.Controller, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Capturing background. Please move out of frame.")
	if err := controller.CaptureBackground(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	logger.Info("Background captured successfully!")

	controller.SetCallbacks(nil, func(m map[string]float64) {
		logger.WithFields(logrus.Fields{
			"coverage": m["coverage"],
			"psnr":     m["psnr"],
			"fps":      m["fps"],
		}).Debug("Frame metrics")
	})

	window := display.NewWindow(AppName, logger)
	defer window.Close()

	err := controller.Run(ctx, window)
	if errors.Is(err, display.ErrWindowClosed) {
		return nil
	}
	return err
}

// initLogger initializes the logger with appropriate level. When a log file is
// configured, output also goes to that file, rotated by lumberjack.
func initLogger(debugMode bool, cfg config.Log) *logrus.Logger {
	logger := logrus.New()

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		fileLog := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		out = io.MultiWriter(os.Stdout, fileLog)
	}
	logger.SetOutput(out)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
		return logger
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}
