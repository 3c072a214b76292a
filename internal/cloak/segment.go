// Color segmentation of BGR frames into binary masks
package cloak

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Segment converts a BGR frame to HSV and writes a CV_8UC1 mask to dst:
// 255 where the pixel lies within r, 0 elsewhere.
func Segment(frame gocv.Mat, r ColorRange, dst *gocv.Mat) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	hsv := gocv.NewMat()
	defer hsv.Close()

	if err := gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV); err != nil {
		return fmt.Errorf("failed to convert frame to HSV: %w", err)
	}

	return Threshold(hsv, r, dst)
}

// Threshold classifies an 8-bit 3-channel HSV image against r, bounds
// inclusive.
func Threshold(hsv gocv.Mat, r ColorRange, dst *gocv.Mat) error {
	if err := checkFrame(hsv); err != nil {
		return err
	}

	if err := gocv.InRangeWithScalar(hsv, r.Primary.Lower.scalar(), r.Primary.Upper.scalar(), dst); err != nil {
		return fmt.Errorf("failed to threshold primary band: %w", err)
	}
	if r.Secondary == nil {
		return nil
	}

	second := gocv.NewMat()
	defer second.Close()

	if err := gocv.InRangeWithScalar(hsv, r.Secondary.Lower.scalar(), r.Secondary.Upper.scalar(), &second); err != nil {
		return fmt.Errorf("failed to threshold secondary band: %w", err)
	}
	if err := gocv.BitwiseOr(*dst, second, dst); err != nil {
		return fmt.Errorf("failed to merge bands: %w", err)
	}
	return nil
}

func checkFrame(frame gocv.Mat) error {
	if frame.Empty() {
		return ErrEmptyFrame
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("%w: got %v", ErrFrameType, frame.Type())
	}
	return nil
}

func checkMask(mask gocv.Mat) error {
	if mask.Empty() {
		return fmt.Errorf("mask: %w", ErrEmptyFrame)
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%w: got %v", ErrMaskType, mask.Type())
	}
	return nil
}

func sameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}
