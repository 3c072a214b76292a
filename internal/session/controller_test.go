package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"invisibility-cloak/internal/cloak"
)

var (
	blue  = []byte{255, 0, 0}
	gray  = []byte{128, 128, 128}
	black = []byte{20, 20, 20}
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func solid(t *testing.T, c []byte) gocv.Mat {
	t.Helper()
	const size = 16
	data := make([]byte, 0, size*size*3)
	for i := 0; i < size*size; i++ {
		data = append(data, c...)
	}
	m, err := gocv.NewMatFromBytes(size, size, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// scriptedSource plays frames in order, then fails every read. With loop set
// it replays the last frame forever.
type scriptedSource struct {
	mu     sync.Mutex
	frames []gocv.Mat
	loop   bool
	reads  int
}

func (s *scriptedSource) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.reads
	s.reads++
	if i >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return false
		}
		i = len(s.frames) - 1
	}
	s.frames[i].CopyTo(dst)
	return true
}

func (s *scriptedSource) push(frames ...gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

// recordingSink keeps the first pixel of every frame shown and can run a hook.
type recordingSink struct {
	pixels [][]byte
	onShow func(n int) error
}

func (s *recordingSink) Show(frame gocv.Mat) error {
	s.pixels = append(s.pixels, frame.ToBytes()[:3])
	if s.onShow != nil {
		return s.onShow(len(s.pixels))
	}
	return nil
}

func newTestController(t *testing.T, src cloak.FrameSource) *Controller {
	t.Helper()
	return newControllerWith(t, src, &cloak.Estimator{Frames: 3, Logger: quietLogger()}, quietLogger())
}

func newControllerWith(t *testing.T, src cloak.FrameSource, estimator *cloak.Estimator, logger *logrus.Logger) *Controller {
	t.Helper()
	effect, err := cloak.NewEffect(cloak.DefaultColorRange(), cloak.DefaultRefiner(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { effect.Close() })

	c := NewController(src, estimator, effect, logger)
	t.Cleanup(c.Close)
	return c
}

// guardedSource counts reads made after the owner declared it released.
type guardedSource struct {
	*scriptedSource
	released atomic.Bool
	reads    atomic.Int32
	misuse   atomic.Int32
}

func (g *guardedSource) Read(dst *gocv.Mat) bool {
	g.reads.Add(1)
	if g.released.Load() {
		g.misuse.Add(1)
	}
	time.Sleep(2 * time.Millisecond)
	return g.scriptedSource.Read(dst)
}

func capture(t *testing.T, c *Controller, src *scriptedSource) {
	t.Helper()
	src.push(solid(t, gray), solid(t, gray), solid(t, gray))
	require.NoError(t, c.CaptureBackground(context.Background()))
}

func TestRunRequiresBackground(t *testing.T) {
	c := newTestController(t, &scriptedSource{})

	err := c.Run(context.Background(), &recordingSink{})
	assert.ErrorIs(t, err, ErrNoBackground)
	assert.Equal(t, NoBackground, c.State())
}

func TestCaptureWithoutFrames(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)

	err := c.CaptureBackground(context.Background())
	assert.ErrorIs(t, err, cloak.ErrNoBackgroundFrames)
	assert.Equal(t, NoBackground, c.State())
	assert.False(t, c.HasBackground())
	assert.Equal(t, 3, src.reads)

	assert.ErrorIs(t, c.Run(context.Background(), &recordingSink{}), ErrNoBackground)
}

func TestFailedRecaptureKeepsBackground(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)
	capture(t, c, src)

	assert.ErrorIs(t, c.CaptureBackground(context.Background()), cloak.ErrNoBackgroundFrames)
	assert.True(t, c.HasBackground())
	assert.Equal(t, BackgroundReady, c.State())
}

func TestRunUntilSourceExhausted(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)
	capture(t, c, src)

	var states []State
	var frameMetrics []map[string]float64
	c.SetCallbacks(
		func(s State) { states = append(states, s) },
		func(m map[string]float64) { frameMetrics = append(frameMetrics, m) },
	)

	src.push(solid(t, blue), solid(t, black))
	sink := &recordingSink{}
	require.NoError(t, c.Run(context.Background(), sink))

	assert.Equal(t, [][]byte{gray, black}, sink.pixels)
	assert.Equal(t, []State{EffectRunning, Stopped}, states)
	assert.Equal(t, Stopped, c.State())

	var keys []string
	for _, d := range c.MetricDescriptions() {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"coverage", "psnr", "fps"}, keys)

	require.Len(t, frameMetrics, 2)
	assert.InDelta(t, 1.0, frameMetrics[0]["coverage"], 1e-9)
	assert.InDelta(t, 0.0, frameMetrics[1]["coverage"], 1e-9)
	assert.Contains(t, frameMetrics[1], "fps")
	assert.Contains(t, frameMetrics[1], "psnr")

	assert.True(t, c.HasOutput())
	out, ok := c.LastOutput()
	require.True(t, ok)
	defer out.Close()
	assert.Equal(t, black, out.ToBytes()[:3])
}

func TestStopEndsRun(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)
	capture(t, c, src)

	src.push(solid(t, blue))
	src.loop = true

	sink := &recordingSink{onShow: func(n int) error {
		if n == 3 {
			c.Stop()
		}
		return nil
	}}
	require.NoError(t, c.Run(context.Background(), sink))

	assert.Len(t, sink.pixels, 3)
	assert.Equal(t, Stopped, c.State())

	// The effect can be restarted from Stopped.
	sink = &recordingSink{onShow: func(n int) error {
		c.Stop()
		return nil
	}}
	require.NoError(t, c.Run(context.Background(), sink))
	assert.Len(t, sink.pixels, 1)
}

func TestCancelledContextEndsRun(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)
	capture(t, c, src)

	src.push(solid(t, black))
	src.loop = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{onShow: func(n int) error {
		if n == 2 {
			cancel()
		}
		return nil
	}}
	require.NoError(t, c.Run(ctx, sink))
	assert.Len(t, sink.pixels, 2)
	assert.Equal(t, Stopped, c.State())
}

func TestSinkErrorEndsRun(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)
	capture(t, c, src)

	src.push(solid(t, black))
	src.loop = true

	closed := errors.New("window closed")
	err := c.Run(context.Background(), &recordingSink{onShow: func(int) error { return closed }})
	assert.ErrorIs(t, err, closed)
	assert.ErrorIs(t, err, ErrDisplayStopped)
	assert.Equal(t, Stopped, c.State())
}

func TestRunEndLogLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src := &scriptedSource{}
	c := newControllerWith(t, src, &cloak.Estimator{Frames: 3, Logger: quietLogger()}, logger)
	capture(t, c, src)

	src.push(solid(t, black))
	err := c.Run(context.Background(), &recordingSink{onShow: func(int) error {
		return errors.New("window closed")
	}})
	require.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	hook.Reset()
	gray1, err := gocv.NewMatFromBytes(2, 2, gocv.MatTypeCV8UC1, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	defer gray1.Close()
	src.push(gray1)

	err = c.Run(context.Background(), &recordingSink{})
	assert.ErrorIs(t, err, cloak.ErrFrameType)
	assert.NotErrorIs(t, err, ErrDisplayStopped)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestCloseWaitsForRun(t *testing.T) {
	inner := &scriptedSource{loop: true}
	src := &guardedSource{scriptedSource: inner}
	c := newTestController(t, src)
	capture(t, c, inner)

	inner.push(solid(t, black))

	started := make(chan struct{})
	var once sync.Once
	sink := &recordingSink{onShow: func(int) error {
		once.Do(func() { close(started) })
		time.Sleep(5 * time.Millisecond)
		return nil
	}}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), sink) }()

	<-started
	c.Close()
	src.released.Store(true)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run still running after Close returned")
	}
	assert.Zero(t, src.misuse.Load())
	assert.Equal(t, NoBackground, c.State())

	assert.ErrorIs(t, c.Run(context.Background(), &recordingSink{}), ErrClosed)
	assert.ErrorIs(t, c.CaptureBackground(context.Background()), ErrClosed)
}

func TestCloseCancelsCapture(t *testing.T) {
	inner := &scriptedSource{loop: true}
	src := &guardedSource{scriptedSource: inner}
	inner.push(solid(t, gray))

	estimator := &cloak.Estimator{Frames: 1000, Interval: 10 * time.Millisecond, Logger: quietLogger()}
	c := newControllerWith(t, src, estimator, quietLogger())

	done := make(chan error, 1)
	go func() { done <- c.CaptureBackground(context.Background()) }()

	require.Eventually(t, func() bool { return src.reads.Load() > 0 }, time.Second, time.Millisecond)
	c.Close()
	src.released.Store(true)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("capture still running after Close returned")
	}
	assert.Zero(t, src.misuse.Load())
	assert.False(t, c.HasBackground())
	assert.False(t, c.IsCapturing())
}

func TestActionsRefusedWhileRunning(t *testing.T) {
	src := &scriptedSource{}
	c := newTestController(t, src)
	capture(t, c, src)

	src.push(solid(t, black))
	src.loop = true

	var captureErr, runErr error
	sink := &recordingSink{onShow: func(int) error {
		captureErr = c.CaptureBackground(context.Background())
		runErr = c.Run(context.Background(), &recordingSink{})
		c.Stop()
		return nil
	}}
	require.NoError(t, c.Run(context.Background(), sink))

	assert.ErrorIs(t, captureErr, ErrEffectRunning)
	assert.ErrorIs(t, runErr, ErrEffectRunning)
}

func TestStopWhenIdle(t *testing.T) {
	c := newTestController(t, &scriptedSource{})
	c.Stop()
	assert.Equal(t, NoBackground, c.State())

	_, ok := c.LastOutput()
	assert.False(t, ok)
	assert.False(t, c.HasOutput())
}
