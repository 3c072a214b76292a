// Image loading and saving for still frames and snapshots
package io

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger *logrus.Logger
}

func NewImageLoader(logger *logrus.Logger) *ImageLoader {
	return &ImageLoader{
		logger: logger,
	}
}

// LoadImage reads a color image as an 8-bit BGR frame.
func (il *ImageLoader) LoadImage(path string) (gocv.Mat, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !IsSupportedImage(path) {
		return gocv.NewMat(), fmt.Errorf("unsupported image format: %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return gocv.NewMat(), fmt.Errorf("failed to load image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image loaded successfully")

	return mat, nil
}

// LoadDir loads every supported image in dir, in file name order. The
// caller owns the returned Mats.
func (il *ImageLoader) LoadDir(dir string) ([]gocv.Mat, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsSupportedImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	mats := make([]gocv.Mat, 0, len(names))
	for _, name := range names {
		mat, err := il.LoadImage(filepath.Join(dir, name))
		if err != nil {
			for _, m := range mats {
				m.Close()
			}
			return nil, err
		}
		mats = append(mats, mat)
	}

	if len(mats) == 0 {
		return nil, fmt.Errorf("no supported images in %s", dir)
	}
	return mats, nil
}

// SaveImage writes mat to path; the format follows the file extension.
func (il *ImageLoader) SaveImage(mat gocv.Mat, path string) error {
	il.logger.WithField("filepath", path).Debug("Saving image")

	if mat.Empty() {
		return fmt.Errorf("cannot save empty image")
	}

	if !IsSupportedImage(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
	}).Info("Image saved successfully")

	return nil
}

// IsSupportedImage reports whether path has an image extension gocv can
// read and write.
func IsSupportedImage(path string) bool {
	return slices.Contains(supportedFormats, strings.ToLower(filepath.Ext(path)))
}
