package io

import (
	stdio "io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newLoader() *ImageLoader {
	l := logrus.New()
	l.SetOutput(stdio.Discard)
	return NewImageLoader(l)
}

func solidFrame(t *testing.T, b, g, r byte) gocv.Mat {
	t.Helper()
	data := make([]byte, 4*6*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = b, g, r
	}
	m, err := gocv.NewMatFromBytes(4, 6, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.png"))
	assert.True(t, IsSupportedImage("dir/B.JPG"))
	assert.False(t, IsSupportedImage("clip.mp4"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	il := newLoader()
	path := filepath.Join(t.TempDir(), "frame.png")

	frame := solidFrame(t, 10, 200, 30)
	require.NoError(t, il.SaveImage(frame, path))

	loaded, err := il.LoadImage(path)
	require.NoError(t, err)
	defer loaded.Close()

	// PNG is lossless.
	assert.Equal(t, frame.ToBytes(), loaded.ToBytes())
}

func TestSaveImageErrors(t *testing.T) {
	il := newLoader()
	empty := gocv.NewMat()
	defer empty.Close()

	assert.Error(t, il.SaveImage(empty, filepath.Join(t.TempDir(), "x.png")))
	assert.Error(t, il.SaveImage(solidFrame(t, 1, 2, 3), filepath.Join(t.TempDir(), "x.gif")))
}

func TestLoadDirSorted(t *testing.T) {
	il := newLoader()
	dir := t.TempDir()

	require.NoError(t, il.SaveImage(solidFrame(t, 2, 2, 2), filepath.Join(dir, "b.png")))
	require.NoError(t, il.SaveImage(solidFrame(t, 1, 1, 1), filepath.Join(dir, "a.png")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	mats, err := il.LoadDir(dir)
	require.NoError(t, err)
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	require.Len(t, mats, 2)
	assert.Equal(t, byte(1), mats[0].ToBytes()[0])
	assert.Equal(t, byte(2), mats[1].ToBytes()[0])
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := newLoader().LoadDir(t.TempDir())
	assert.Error(t, err)
}
