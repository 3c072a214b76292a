// Package cloak implements the per-frame invisibility cloak pipeline:
// background estimation, color segmentation, mask refinement and compositing.
package cloak

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Hue in OpenCV 8-bit HSV images spans [0, 179].
const MaxHue = 179

// HSV is a color in OpenCV's 8-bit hue-saturation-value convention.
type HSV struct {
	H, S, V uint8
}

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(float64(c.H), float64(c.S), float64(c.V), 0)
}

// Band is an inclusive HSV interval. Hue does not wrap: a band whose color
// straddles hue 0 (red) has to be expressed as two bands.
type Band struct {
	Lower HSV
	Upper HSV
}

// Validate checks that the band is well-formed.
func (b Band) Validate() error {
	if b.Lower.H > MaxHue || b.Upper.H > MaxHue {
		return fmt.Errorf("hue must be between 0 and %d", MaxHue)
	}
	if b.Lower.H > b.Upper.H || b.Lower.S > b.Upper.S || b.Lower.V > b.Upper.V {
		return fmt.Errorf("lower bound %v exceeds upper bound %v", b.Lower, b.Upper)
	}
	return nil
}

// Contains reports whether c lies within the band, bounds included.
func (b Band) Contains(c HSV) bool {
	return c.H >= b.Lower.H && c.H <= b.Upper.H &&
		c.S >= b.Lower.S && c.S <= b.Upper.S &&
		c.V >= b.Lower.V && c.V <= b.Upper.V
}

// ColorRange is the target cloak color. Secondary is an optional disjoint
// hue band, used for colors such as red that sit on both ends of the hue axis.
type ColorRange struct {
	Primary   Band
	Secondary *Band
}

// DefaultColorRange returns the blue cloak range.
func DefaultColorRange() ColorRange {
	return ColorRange{
		Primary: Band{
			Lower: HSV{H: 90, S: 50, V: 50},
			Upper: HSV{H: 130, S: 255, V: 255},
		},
	}
}

// Validate checks every band of the range.
func (r ColorRange) Validate() error {
	if err := r.Primary.Validate(); err != nil {
		return fmt.Errorf("primary band: %w", err)
	}
	if r.Secondary != nil {
		if err := r.Secondary.Validate(); err != nil {
			return fmt.Errorf("secondary band: %w", err)
		}
	}
	return nil
}

// Contains reports whether c falls in any band of the range.
func (r ColorRange) Contains(c HSV) bool {
	if r.Primary.Contains(c) {
		return true
	}
	return r.Secondary != nil && r.Secondary.Contains(c)
}
