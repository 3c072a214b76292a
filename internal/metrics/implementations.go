// Concrete implementations of per-frame metrics
package metrics

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Coverage is the fraction of mask pixels marking the cloak color.
type Coverage struct{}

func NewCoverage() *Coverage {
	return &Coverage{}
}

func (c *Coverage) Calculate(frame, mask, output gocv.Mat) (float64, error) {
	if mask.Empty() {
		return 0, fmt.Errorf("empty mask")
	}
	total := mask.Rows() * mask.Cols()
	return float64(gocv.CountNonZero(mask)) / float64(total), nil
}

func (c *Coverage) GetName() string {
	return "Cloaked area"
}

func (c *Coverage) GetDescription() string {
	return "Fraction of the frame replaced by the background"
}

// PSNR implements Peak Signal-to-Noise Ratio between the live frame and the
// cloaked output. An untouched frame scores +Inf.
type PSNR struct{}

func NewPSNR() *PSNR {
	return &PSNR{}
}

func (p *PSNR) Calculate(frame, mask, output gocv.Mat) (float64, error) {
	if frame.Empty() || output.Empty() {
		return 0, fmt.Errorf("empty images")
	}
	if frame.Rows() != output.Rows() || frame.Cols() != output.Cols() || frame.Channels() != output.Channels() {
		return 0, fmt.Errorf("image dimensions mismatch")
	}

	a := frame.ToBytes()
	b := output.ToBytes()

	sumSquaredDiff := 0.0
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sumSquaredDiff += diff * diff
	}

	mse := sumSquaredDiff / float64(len(a))
	if mse == 0 {
		return math.Inf(1), nil
	}

	maxVal := 255.0
	return 20 * math.Log10(maxVal/math.Sqrt(mse)), nil
}

func (p *PSNR) GetName() string {
	return "PSNR"
}

func (p *PSNR) GetDescription() string {
	return "Peak signal-to-noise ratio of the output against the live frame"
}

// FrameRateDescription labels the rate reported by FrameRate.
var FrameRateDescription = Description{
	Key:         "fps",
	Name:        "Frame rate",
	Description: "Smoothed number of cloaked frames shown per second",
}

// FrameRate tracks an exponentially smoothed frames-per-second figure.
type FrameRate struct {
	mu     sync.Mutex
	alpha  float64
	last   time.Time
	fps    float64
	frames int
	now    func() time.Time
}

// NewFrameRate creates a tracker; alpha in (0, 1] weights the newest sample.
func NewFrameRate(alpha float64) *FrameRate {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &FrameRate{alpha: alpha, now: time.Now}
}

// Tick records a frame and returns the smoothed rate.
func (f *FrameRate) Tick() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.now()
	if f.frames > 0 {
		if dt := t.Sub(f.last).Seconds(); dt > 0 {
			inst := 1 / dt
			if f.frames == 1 {
				f.fps = inst
			} else {
				f.fps = f.alpha*inst + (1-f.alpha)*f.fps
			}
		}
	}
	f.last = t
	f.frames++
	return f.fps
}

// Reset forgets previous frames.
func (f *FrameRate) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = 0
	f.fps = 0
}
