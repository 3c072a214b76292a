// Package display shows cloaked frames in a native OpenCV window when the
// application runs without its fyne interface.
package display

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrWindowClosed is returned by Show once the user pressed a key or closed
// the window. Callers treat it as a request to stop.
var ErrWindowClosed = errors.New("display window closed")

// Window is a session sink backed by a gocv window.
type Window struct {
	show    func(gocv.Mat) error
	waitKey func(delay int) int
	closer  func() error
	closed  bool

	title  string
	frames int
	logger *logrus.Logger
}

// NewWindow opens a native window titled title.
func NewWindow(title string, logger *logrus.Logger) *Window {
	w := gocv.NewWindow(title)
	return &Window{
		show:    w.IMShow,
		waitKey: w.WaitKey,
		closer:  w.Close,
		title:   title,
		logger:  logger,
	}
}

// Show draws frame and polls the keyboard for one millisecond.
func (w *Window) Show(frame gocv.Mat) error {
	if w.closed {
		return ErrWindowClosed
	}

	if err := w.show(frame); err != nil {
		return fmt.Errorf("failed to show frame: %w", err)
	}
	w.frames++

	if key := w.waitKey(1); key >= 0 {
		w.logger.WithFields(logrus.Fields{
			"window": w.title,
			"key":    key,
			"frames": w.frames,
		}).Info("Key pressed, closing display")
		return ErrWindowClosed
	}
	return nil
}

// Frames returns the number of frames shown so far.
func (w *Window) Frames() int {
	return w.frames
}

// Close destroys the native window. It is safe to call more than once.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer == nil {
		return nil
	}
	return w.closer()
}
