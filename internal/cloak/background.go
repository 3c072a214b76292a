// Background estimation by temporal median
package cloak

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Estimation defaults.
const (
	DefaultBackgroundFrames   = 30
	DefaultBackgroundInterval = 100 * time.Millisecond
)

// FrameSource delivers frames. Read returns false when no frame could be read;
// *gocv.VideoCapture satisfies it.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
}

// Estimator builds a background image from the median of several frames, so
// that an object crossing the scene during sampling does not leave a trace
// unless it covers the same pixel in more than half of the samples.
type Estimator struct {
	// Frames is the number of read attempts.
	Frames int
	// Interval is the pause between two read attempts.
	Interval time.Duration
	Logger   *logrus.Logger

	// OnSampleFailed, if set, is called for every read attempt that did not
	// produce a usable frame. sample counts from 1.
	OnSampleFailed func(sample, total int, err error)
}

// NewEstimator returns an estimator with the default sample count and interval.
func NewEstimator(logger *logrus.Logger) *Estimator {
	return &Estimator{
		Frames:   DefaultBackgroundFrames,
		Interval: DefaultBackgroundInterval,
		Logger:   logger,
	}
}

// Estimate reads Frames frames from src and returns their per-pixel median.
// Failed reads are reported and skipped. If no frame was retained it returns
// ErrNoBackgroundFrames. The caller owns the returned Mat.
func (e *Estimator) Estimate(ctx context.Context, src FrameSource) (gocv.Mat, error) {
	total := e.Frames
	if total <= 0 {
		total = DefaultBackgroundFrames
	}
	log := e.logger()

	frames := make([]gocv.Mat, 0, total)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	log.WithField("frames", total).Info("Capturing background")

	for i := 1; i <= total; i++ {
		if err := e.wait(ctx, i); err != nil {
			return gocv.NewMat(), err
		}

		if err := e.sample(src, &frame, frames); err != nil {
			log.WithFields(logrus.Fields{
				"sample": i,
				"total":  total,
			}).WithError(err).Warn("Could not read background frame")
			if e.OnSampleFailed != nil {
				e.OnSampleFailed(i, total, err)
			}
			continue
		}
		frames = append(frames, frame.Clone())
	}

	if len(frames) == 0 {
		return gocv.NewMat(), ErrNoBackgroundFrames
	}

	background, err := Median(frames)
	if err != nil {
		return gocv.NewMat(), err
	}

	log.WithFields(logrus.Fields{
		"retained": len(frames),
		"total":    total,
		"width":    background.Cols(),
		"height":   background.Rows(),
	}).Info("Background captured")

	return background, nil
}

// wait sleeps between samples, giving up early if ctx is cancelled.
func (e *Estimator) wait(ctx context.Context, sample int) error {
	if sample == 1 || e.Interval <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(e.Interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sample reads one frame into dst and checks it can be stacked with the
// frames retained so far.
func (e *Estimator) sample(src FrameSource, dst *gocv.Mat, retained []gocv.Mat) error {
	if !src.Read(dst) || dst.Empty() {
		return fmt.Errorf("read failed")
	}
	if err := checkFrame(*dst); err != nil {
		return err
	}
	if len(retained) > 0 && !sameSize(*dst, retained[0]) {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch,
			dst.Cols(), dst.Rows(), retained[0].Cols(), retained[0].Rows())
	}
	return nil
}

func (e *Estimator) logger() *logrus.Logger {
	if e.Logger == nil {
		return logrus.StandardLogger()
	}
	return e.Logger
}

// Median returns the per-channel, per-pixel median of frames, which must all
// be 8-bit BGR images of the same size. For an even number of frames the two
// middle samples are averaged and truncated.
func Median(frames []gocv.Mat) (gocv.Mat, error) {
	if len(frames) == 0 {
		return gocv.NewMat(), ErrNoBackgroundFrames
	}

	rows, cols := frames[0].Rows(), frames[0].Cols()
	data := make([][]byte, len(frames))
	for i, f := range frames {
		if err := checkFrame(f); err != nil {
			return gocv.NewMat(), err
		}
		if f.Rows() != rows || f.Cols() != cols {
			return gocv.NewMat(), ErrSizeMismatch
		}
		data[i] = f.ToBytes()
	}

	n := len(frames)
	out := make([]byte, len(data[0]))
	samples := make([]byte, n)

	for p := range out {
		for i := range data {
			samples[i] = data[i][p]
		}
		slices.Sort(samples)
		if n%2 == 1 {
			out[p] = samples[n/2]
		} else {
			out[p] = byte((int(samples[n/2-1]) + int(samples[n/2])) / 2)
		}
	}

	return gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, out)
}
