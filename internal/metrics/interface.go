// Per-frame statistics for the cloak effect
package metrics

import (
	"fmt"
	"sort"

	"gocv.io/x/gocv"
)

// Metric defines the interface for per-frame metrics
type Metric interface {
	// Calculate computes the metric for one processed frame.
	Calculate(frame, mask, output gocv.Mat) (float64, error)

	GetName() string

	GetDescription() string
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates an evaluator with the default metrics registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.Register("coverage", NewCoverage())
	e.Register("psnr", NewPSNR())
	return e
}

// Register registers a metric
func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names returns the registered metric names in sorted order.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Description labels a registered metric for display.
type Description struct {
	Key         string
	Name        string
	Description string
}

// Describe returns the registered metrics in key order.
func (e *Evaluator) Describe() []Description {
	names := e.Names()
	out := make([]Description, 0, len(names))
	for _, key := range names {
		m := e.metrics[key]
		out = append(out, Description{Key: key, Name: m.GetName(), Description: m.GetDescription()})
	}
	return out
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, frame, mask, output gocv.Mat) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(frame, mask, output)
}

// EvaluateFrame calculates every registered metric, skipping those that fail.
func (e *Evaluator) EvaluateFrame(frame, mask, output gocv.Mat) map[string]float64 {
	results := make(map[string]float64, len(e.metrics))
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(frame, mask, output); err == nil {
			results[name] = value
		}
	}
	return results
}
