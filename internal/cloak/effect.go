package cloak

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Effect runs the per-frame pipeline: segment, refine, composite.
type Effect struct {
	colors  ColorRange
	refiner *Refiner
	logger  *logrus.Logger
}

// NewEffect creates an effect for the given color range. The effect takes
// ownership of refiner and closes it in Close.
func NewEffect(colors ColorRange, refiner *Refiner, logger *logrus.Logger) (*Effect, error) {
	if err := colors.Validate(); err != nil {
		return nil, fmt.Errorf("invalid color range: %w", err)
	}
	if refiner == nil {
		refiner = DefaultRefiner()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Effect{
		colors:  colors,
		refiner: refiner,
		logger:  logger,
	}, nil
}

// Colors returns the target color range.
func (e *Effect) Colors() ColorRange {
	return e.colors
}

// Apply writes the cloaked frame to out and the refined mask to mask.
func (e *Effect) Apply(frame, background gocv.Mat, out, mask *gocv.Mat) error {
	raw := gocv.NewMat()
	defer raw.Close()

	if err := Segment(frame, e.colors, &raw); err != nil {
		return fmt.Errorf("segmentation failed: %w", err)
	}

	if err := e.refiner.Refine(raw, mask); err != nil {
		return fmt.Errorf("mask refinement failed: %w", err)
	}

	if err := Composite(frame, *mask, background, out); err != nil {
		return fmt.Errorf("compositing failed: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"width":  frame.Cols(),
		"height": frame.Rows(),
	}).Debug("Frame cloaked")

	return nil
}

// Close releases the refiner.
func (e *Effect) Close() error {
	return e.refiner.Close()
}
