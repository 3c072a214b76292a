package camera

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"invisibility-cloak/internal/config"
	cloakio "invisibility-cloak/internal/io"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func solid(t *testing.T, v byte) gocv.Mat {
	t.Helper()
	data := make([]byte, 2*2*3)
	for i := range data {
		data[i] = v
	}
	m, err := gocv.NewMatFromBytes(2, 2, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	return m
}

func TestStillsLoop(t *testing.T) {
	s := NewStills("test", []gocv.Mat{solid(t, 1), solid(t, 2)}, true)
	defer s.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	var got []byte
	for i := 0; i < 5; i++ {
		require.True(t, s.Read(&dst))
		got = append(got, dst.ToBytes()[0])
	}
	assert.Equal(t, []byte{1, 2, 1, 2, 1}, got)
}

func TestStillsExhausted(t *testing.T) {
	s := NewStills("test", []gocv.Mat{solid(t, 7)}, false)

	dst := gocv.NewMat()
	defer dst.Close()

	assert.True(t, s.Read(&dst))
	assert.False(t, s.Read(&dst))

	require.NoError(t, s.Close())
	assert.False(t, s.Read(&dst))
	assert.NoError(t, s.Close())
}

func TestStillsCloseWhileReading(t *testing.T) {
	s := NewStills("test", []gocv.Mat{solid(t, 3)}, true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		dst := gocv.NewMat()
		defer dst.Close()
		for s.Read(&dst) {
		}
	}()

	require.NoError(t, s.Close())
	<-done

	dst := gocv.NewMat()
	defer dst.Close()
	assert.False(t, s.Read(&dst))
}

func TestOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	frame := solid(t, 42)
	defer frame.Close()
	require.NoError(t, cloakio.NewImageLoader(quietLogger()).SaveImage(frame, filepath.Join(dir, "0001.png")))

	src, err := Open(config.Camera{Device: dir}, quietLogger())
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, dir, src.Name())

	dst := gocv.NewMat()
	defer dst.Close()
	require.True(t, src.Read(&dst))
	assert.Equal(t, frame.ToBytes(), dst.ToBytes())
}

func TestOpenUnavailable(t *testing.T) {
	_, err := Open(config.Camera{Device: filepath.Join(t.TempDir(), "missing.avi")}, quietLogger())
	assert.ErrorIs(t, err, ErrCaptureUnavailable)

	_, err = Open(config.Camera{Device: t.TempDir()}, quietLogger())
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
}
