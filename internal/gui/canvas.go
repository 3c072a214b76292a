// Live view of the cloaked stream
package gui

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// LiveView renders frames pushed by the session loop. It implements
// session.Sink and may be fed from any goroutine.
type LiveView struct {
	logger *logrus.Logger

	card  *widget.Card
	image *canvas.Image

	mu     sync.Mutex
	frames int
}

func NewLiveView(logger *logrus.Logger) *LiveView {
	lv := &LiveView{logger: logger}
	lv.initializeUI()
	return lv
}

func (lv *LiveView) initializeUI() {
	lv.image = canvas.NewImageFromImage(placeholder())
	lv.image.FillMode = canvas.ImageFillContain
	lv.image.ScaleMode = canvas.ImageScaleFastest
	lv.image.SetMinSize(fyne.NewSize(320, 240))

	lv.card = widget.NewCard("Live View", "", lv.image)
}

func (lv *LiveView) GetContainer() fyne.CanvasObject {
	return lv.card
}

// Show converts frame to an image.Image before handing it to the UI
// goroutine, so frame may be reused as soon as Show returns.
func (lv *LiveView) Show(frame gocv.Mat) error {
	img, err := frame.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}

	lv.mu.Lock()
	lv.frames++
	n := lv.frames
	lv.mu.Unlock()

	if n == 1 {
		lv.logger.WithFields(logrus.Fields{
			"width":  img.Bounds().Dx(),
			"height": img.Bounds().Dy(),
		}).Debug("First frame shown")
	}

	fyne.Do(func() {
		lv.setImage(img)
	})
	return nil
}

// Frames returns the number of frames shown since the last Clear.
func (lv *LiveView) Frames() int {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.frames
}

// Clear restores the placeholder. Call from the UI goroutine.
func (lv *LiveView) Clear() {
	lv.mu.Lock()
	lv.frames = 0
	lv.mu.Unlock()
	lv.setImage(placeholder())
}

func (lv *LiveView) setImage(img image.Image) {
	lv.image.File = ""
	lv.image.Resource = nil
	lv.image.Image = img
	lv.image.Refresh()
}

func placeholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	bg := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, bg)
		}
	}
	return img
}
