package cloak

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type bgr [3]byte

var (
	blue  = bgr{255, 0, 0}
	green = bgr{0, 255, 0}
	red   = bgr{0, 0, 255}
	white = bgr{255, 255, 255}
	gray  = bgr{128, 128, 128}
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newFrame returns a rows x cols BGR frame filled with c.
func newFrame(t *testing.T, rows, cols int, c bgr) gocv.Mat {
	t.Helper()
	data := make([]byte, rows*cols*3)
	for i := 0; i < len(data); i += 3 {
		copy(data[i:i+3], c[:])
	}
	return fromBytes(t, rows, cols, gocv.MatTypeCV8UC3, data)
}

// newMask returns a rows x cols single channel image filled with v.
func newMask(t *testing.T, rows, cols int, v byte) gocv.Mat {
	t.Helper()
	data := make([]byte, rows*cols)
	for i := range data {
		data[i] = v
	}
	return fromBytes(t, rows, cols, gocv.MatTypeCV8UC1, data)
}

func fromBytes(t *testing.T, rows, cols int, mt gocv.MatType, data []byte) gocv.Mat {
	t.Helper()
	m, err := gocv.NewMatFromBytes(rows, cols, mt, data)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// setPixel returns a copy of frame with the pixel at (row, col) set to c.
func setPixel(t *testing.T, frame gocv.Mat, row, col int, c bgr) gocv.Mat {
	t.Helper()
	data := frame.ToBytes()
	i := (row*frame.Cols() + col) * 3
	copy(data[i:i+3], c[:])
	return fromBytes(t, frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3, data)
}

func pixelAt(m gocv.Mat, row, col int) bgr {
	data := m.ToBytes()
	i := (row*m.Cols() + col) * 3
	return bgr{data[i], data[i+1], data[i+2]}
}

func emptyMat(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMat()
	t.Cleanup(func() { m.Close() })
	return m
}
