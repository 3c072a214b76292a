package cloak

import "errors"

var (
	// ErrNoBackgroundFrames is returned when background estimation retained
	// no frames at all.
	ErrNoBackgroundFrames = errors.New("could not capture any frame for background")

	// ErrSizeMismatch is returned when images combined by the pipeline do not
	// share dimensions.
	ErrSizeMismatch = errors.New("image dimensions mismatch")

	// ErrEmptyFrame is returned for empty input images.
	ErrEmptyFrame = errors.New("input image is empty")

	// ErrFrameType is returned for frames that are not 8-bit BGR.
	ErrFrameType = errors.New("frame must be 8-bit 3-channel BGR")

	// ErrMaskType is returned for masks that are not 8-bit single-channel.
	ErrMaskType = errors.New("mask must be 8-bit single-channel")
)
