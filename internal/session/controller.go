package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"invisibility-cloak/internal/cloak"
	"invisibility-cloak/internal/metrics"
)

var (
	// ErrBusy is returned while a background capture is in progress.
	ErrBusy = errors.New("background capture in progress")

	// ErrClosed is returned by operations started after Close.
	ErrClosed = errors.New("controller closed")

	// ErrDisplayStopped wraps errors returned by a Sink. A sink asking the
	// loop to end, such as a closed window, is a normal way to stop.
	ErrDisplayStopped = errors.New("display stopped the effect")
)

// Sink renders output frames. Show must not retain frame after returning.
type Sink interface {
	Show(frame gocv.Mat) error
}

// Controller owns the captured background and drives the cloak effect over a
// frame source. The source is read by one operation at a time: either a
// background capture or the live loop.
type Controller struct {
	mu            sync.Mutex
	state         State
	background    gocv.Mat
	hasBackground bool
	capturing     bool
	closed        bool
	cancel        context.CancelFunc
	cancelCapture context.CancelFunc
	lastOutput    gocv.Mat

	// active counts running captures and live loops; Close waits for it.
	active sync.WaitGroup

	source    cloak.FrameSource
	estimator *cloak.Estimator
	effect    *cloak.Effect
	evaluator *metrics.Evaluator
	fps       *metrics.FrameRate
	logger    *logrus.Logger

	// Callbacks
	onStateChanged func(State)
	onMetrics      func(map[string]float64)
}

// NewController creates a controller in the NoBackground state. It does not
// take ownership of source, estimator or effect.
func NewController(source cloak.FrameSource, estimator *cloak.Estimator, effect *cloak.Effect, logger *logrus.Logger) *Controller {
	return &Controller{
		state:      NoBackground,
		background: gocv.NewMat(),
		lastOutput: gocv.NewMat(),
		source:     source,
		estimator:  estimator,
		effect:     effect,
		evaluator:  metrics.NewEvaluator(),
		fps:        metrics.NewFrameRate(0.2),
		logger:     logger,
	}
}

// SetCallbacks sets the state change and per-frame metrics callbacks. They
// are called from the goroutine running the operation.
func (c *Controller) SetCallbacks(onStateChanged func(State), onMetrics func(map[string]float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChanged = onStateChanged
	c.onMetrics = onMetrics
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasBackground reports whether a background has been captured.
func (c *Controller) HasBackground() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasBackground
}

// IsCapturing reports whether a background capture is in progress.
func (c *Controller) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// MetricDescriptions labels every key reported to the metrics callback.
func (c *Controller) MetricDescriptions() []metrics.Description {
	return append(c.evaluator.Describe(), metrics.FrameRateDescription)
}

// HasOutput reports whether a cloaked frame has been rendered.
func (c *Controller) HasOutput() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastOutput.Empty()
}

// LastOutput returns a copy of the most recent cloaked frame.
func (c *Controller) LastOutput() (gocv.Mat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastOutput.Empty() {
		return gocv.NewMat(), false
	}
	return c.lastOutput.Clone(), true
}

// CaptureBackground samples the source and stores the estimated background.
// On failure any previously captured background is kept.
func (c *Controller) CaptureBackground(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.capturing {
		c.mu.Unlock()
		return ErrBusy
	}
	if _, err := Next(c.state, CaptureBackground); err != nil {
		c.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	c.capturing = true
	c.cancelCapture = cancel
	c.active.Add(1)
	c.mu.Unlock()

	defer c.active.Done()
	defer func() {
		cancel()
		c.mu.Lock()
		c.capturing = false
		c.cancelCapture = nil
		c.mu.Unlock()
	}()

	background, err := c.estimator.Estimate(ctx, c.source)
	if err != nil {
		background.Close()
		c.logger.WithError(err).Error("Background capture failed")
		return fmt.Errorf("background capture failed: %w", err)
	}

	c.mu.Lock()
	c.background.Close()
	c.background = background
	c.hasBackground = true
	state, _ := Next(c.state, CaptureBackground)
	c.state = state
	notify := c.onStateChanged
	c.mu.Unlock()

	c.logger.WithField("state", state).Info("Background stored")
	if notify != nil {
		notify(state)
	}
	return nil
}

// Run renders cloaked frames to sink until ctx is cancelled, Stop is called,
// the sink fails, or a frame cannot be read. A failed read ends the loop
// normally. Cancellation is checked between frames only.
func (c *Controller) Run(ctx context.Context, sink Sink) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.capturing {
		c.mu.Unlock()
		return ErrBusy
	}
	state, err := Next(c.state, StartEffect)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	background := c.background.Clone()
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = state
	notify := c.onStateChanged
	onMetrics := c.onMetrics
	c.active.Add(1)
	c.mu.Unlock()

	defer c.active.Done()
	defer background.Close()
	defer cancel()

	c.logger.Info("Starting cloak effect")
	if notify != nil {
		notify(state)
	}

	reason, err := c.loop(ctx, background, sink, onMetrics)

	c.mu.Lock()
	c.cancel = nil
	state, _ = Next(c.state, reason)
	c.state = state
	notify = c.onStateChanged
	c.mu.Unlock()

	entry := c.logger.WithFields(logrus.Fields{"reason": reason, "state": state})
	switch {
	case err == nil:
		entry.Info("Cloak effect ended")
	case errors.Is(err, ErrDisplayStopped):
		entry.WithError(err).Info("Cloak effect ended by display")
	default:
		entry.WithError(err).Error("Cloak effect ended")
	}
	if notify != nil {
		notify(state)
	}
	return err
}

func (c *Controller) loop(ctx context.Context, background gocv.Mat, sink Sink, onMetrics func(map[string]float64)) (Event, error) {
	frame := gocv.NewMat()
	defer frame.Close()
	out := gocv.NewMat()
	defer out.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	c.fps.Reset()

	for {
		select {
		case <-ctx.Done():
			return Stop, nil
		default:
		}

		if !c.source.Read(&frame) || frame.Empty() {
			c.logger.Info("Could not read frame, ending effect")
			return SourceExhausted, nil
		}

		if err := c.effect.Apply(frame, background, &out, &mask); err != nil {
			return Stop, err
		}

		if err := sink.Show(out); err != nil {
			return Stop, fmt.Errorf("%w: %w", ErrDisplayStopped, err)
		}

		c.mu.Lock()
		c.lastOutput.Close()
		c.lastOutput = out.Clone()
		c.mu.Unlock()

		if onMetrics != nil {
			m := c.evaluator.EvaluateFrame(frame, mask, out)
			m["fps"] = c.fps.Tick()
			onMetrics(m)
		}
	}
}

// Stop asks a running effect to finish after the current frame.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		c.logger.Debug("Stop requested with no effect running")
		return
	}
	c.logger.Info("Stop requested")
	c.cancel()
}

// Close stops the effect and any capture, waits for them to return, and
// releases the stored images. Once Close returns the source, estimator and
// effect are no longer used, so the caller may release them. Close must not
// be called from a Sink or a callback.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.cancelCapture != nil {
		c.cancelCapture()
	}
	c.mu.Unlock()

	c.active.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.background.Close()
	c.lastOutput.Close()
	c.background = gocv.NewMat()
	c.lastOutput = gocv.NewMat()
	c.hasBackground = false
	c.state = NoBackground
}
