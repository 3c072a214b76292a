package cloak

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Composite writes to dst the frame with every masked pixel replaced by the
// background pixel at the same coordinate. The frame is selected through the
// complement of the mask, the background through the mask itself, and the
// two disjoint halves are added together.
func Composite(frame, mask, background gocv.Mat, dst *gocv.Mat) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if err := checkFrame(background); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	if err := checkMask(mask); err != nil {
		return err
	}
	if !sameSize(frame, background) || !sameSize(frame, mask) {
		return fmt.Errorf("%w: frame %dx%d, mask %dx%d, background %dx%d", ErrSizeMismatch,
			frame.Cols(), frame.Rows(), mask.Cols(), mask.Rows(), background.Cols(), background.Rows())
	}

	inverse := gocv.NewMat()
	defer inverse.Close()
	if err := gocv.BitwiseNot(mask, &inverse); err != nil {
		return fmt.Errorf("failed to invert mask: %w", err)
	}

	// Pre-zeroed so pixels outside each selection stay black.
	fg := gocv.Zeros(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3)
	defer fg.Close()
	bg := gocv.Zeros(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3)
	defer bg.Close()

	if err := gocv.BitwiseAndWithMask(frame, frame, &fg, inverse); err != nil {
		return fmt.Errorf("failed to select foreground: %w", err)
	}
	if err := gocv.BitwiseAndWithMask(background, background, &bg, mask); err != nil {
		return fmt.Errorf("failed to select background: %w", err)
	}

	if err := gocv.Add(fg, bg, dst); err != nil {
		return fmt.Errorf("failed to merge foreground and background: %w", err)
	}
	return nil
}
