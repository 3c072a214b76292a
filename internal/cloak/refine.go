// Morphological refinement of segmentation masks
package cloak

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Refinement defaults.
const (
	DefaultKernelSize       = 3
	DefaultOpenIterations   = 2
	DefaultDilateIterations = 4
)

// Refiner cleans a raw mask: an opening removes isolated specks, then a
// dilation closes small holes and regrows the edges the opening ate.
type Refiner struct {
	openIterations   int
	dilateIterations int
	kernel           gocv.Mat
}

// NewRefiner creates a refiner with a square rectangular structuring element.
func NewRefiner(kernelSize, openIterations, dilateIterations int) (*Refiner, error) {
	if kernelSize < 1 || kernelSize > 15 {
		return nil, fmt.Errorf("kernel_size must be between 1 and 15")
	}
	if openIterations < 0 || dilateIterations < 0 {
		return nil, fmt.Errorf("iterations must not be negative")
	}

	return &Refiner{
		openIterations:   openIterations,
		dilateIterations: dilateIterations,
		kernel:           gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize)),
	}, nil
}

// DefaultRefiner returns a 3x3 refiner opening twice and dilating four times.
func DefaultRefiner() *Refiner {
	r, _ := NewRefiner(DefaultKernelSize, DefaultOpenIterations, DefaultDilateIterations)
	return r
}

// Refine writes the refined version of mask to dst. The order is fixed:
// erode x open, dilate x open, then dilate x dilate.
func (r *Refiner) Refine(mask gocv.Mat, dst *gocv.Mat) error {
	if err := checkMask(mask); err != nil {
		return err
	}

	output := mask.Clone()

	steps := []struct {
		op    gocv.MorphType
		times int
	}{
		{gocv.MorphErode, r.openIterations},
		{gocv.MorphDilate, r.openIterations},
		{gocv.MorphDilate, r.dilateIterations},
	}

	for _, step := range steps {
		for i := 0; i < step.times; i++ {
			temp := gocv.NewMat()
			if err := gocv.MorphologyEx(output, &temp, step.op, r.kernel); err != nil {
				temp.Close()
				output.Close()
				return fmt.Errorf("morphology step failed: %w", err)
			}
			output.Close()
			output = temp
		}
	}

	defer output.Close()
	if err := output.CopyTo(dst); err != nil {
		return fmt.Errorf("failed to copy refined mask: %w", err)
	}
	return nil
}

// Close frees the structuring element.
func (r *Refiner) Close() error {
	return r.kernel.Close()
}
