// Package camera provides the frame sources the cloak effect reads from: a
// capture device or video file opened through OpenCV, and a still-image
// sequence for running without a camera.
package camera

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"invisibility-cloak/internal/cloak"
	"invisibility-cloak/internal/config"
	cloakio "invisibility-cloak/internal/io"
)

// ErrCaptureUnavailable is returned when the capture device cannot be opened.
var ErrCaptureUnavailable = errors.New("could not open camera")

// Source is a frame source that holds a device until closed.
type Source interface {
	cloak.FrameSource

	// Name identifies the source in logs and in the UI.
	Name() string

	// Close releases the source. Calling Close more than once is allowed.
	Close() error
}

// Open opens the source named by cfg.Device: a directory is played back as
// a still-image sequence, anything else is handed to OpenCV as a device
// index or a video file.
func Open(cfg config.Camera, logger *logrus.Logger) (Source, error) {
	if info, err := os.Stat(cfg.Device); err == nil && info.IsDir() {
		frames, err := cloakio.NewImageLoader(logger).LoadDir(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		logger.WithFields(logrus.Fields{
			"dir":    cfg.Device,
			"frames": len(frames),
		}).Info("Playing still images")
		return NewStills(cfg.Device, frames, true), nil
	}
	return OpenDevice(cfg, logger)
}

// Device is a camera or video file read through gocv.VideoCapture.
type Device struct {
	name    string
	capture *gocv.VideoCapture
	logger  *logrus.Logger
}

// OpenDevice opens a device index such as "0" or a video file path.
func OpenDevice(cfg config.Camera, logger *logrus.Logger) (*Device, error) {
	var id interface{} = cfg.Device
	if n, err := strconv.Atoi(cfg.Device); err == nil {
		id = n
	}

	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrCaptureUnavailable, cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w %q", ErrCaptureUnavailable, cfg.Device)
	}

	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	logger.WithFields(logrus.Fields{
		"device": cfg.Device,
		"width":  capture.Get(gocv.VideoCaptureFrameWidth),
		"height": capture.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Camera opened")

	return &Device{name: cfg.Device, capture: capture, logger: logger}, nil
}

func (d *Device) Name() string { return d.name }

// Read grabs the next frame into dst.
func (d *Device) Read(dst *gocv.Mat) bool {
	if d.capture == nil {
		return false
	}
	return d.capture.Read(dst)
}

// Close releases the device.
func (d *Device) Close() error {
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	d.logger.WithField("device", d.name).Info("Camera released")
	return err
}
