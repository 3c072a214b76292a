// Main application window
package gui

import (
	"context"
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"invisibility-cloak/internal/config"
	"invisibility-cloak/internal/io"
	"invisibility-cloak/internal/session"
)

// User-facing messages.
const (
	msgCapturing  = "Capturing background. Please move out of frame."
	msgCaptured   = "Background captured successfully!"
	msgStartHint  = "Click 'Start Cloak Effect' to start the effect."
	msgRunning    = "Cloak effect running."
	msgStopped    = "Cloak effect stopped."
	msgNoSnapshot = "no cloaked frame to save yet"
)

// Application is the main window around a session controller.
type Application struct {
	app    fyne.App
	window fyne.Window
	logger *logrus.Logger

	controller *session.Controller
	loader     *io.ImageLoader

	ctx    context.Context
	cancel context.CancelFunc

	// failedSamples counts unreadable samples of the current capture. UI
	// goroutine only.
	failedSamples int

	toolbar   *Toolbar
	liveView  *LiveView
	infoPanel *InfoPanel
	status    *StatusManager
}

// NewApplication builds the window. The controller's callbacks are replaced
// by the application's own.
func NewApplication(app fyne.App, controller *session.Controller, loader *io.ImageLoader, ui config.UI, logger *logrus.Logger) *Application {
	window := app.NewWindow("Invisibility Cloak")
	window.Resize(fyne.NewSize(ui.WindowWidth, ui.WindowHeight))
	window.CenterOnScreen()

	ctx, cancel := context.WithCancel(context.Background())

	a := &Application{
		app:        app,
		window:     window,
		logger:     logger,
		controller: controller,
		loader:     loader,
		ctx:        ctx,
		cancel:     cancel,
	}

	a.initializeGUI()
	a.setupLayout()
	a.setupCallbacks()
	a.refreshControls()

	return a
}

func (a *Application) initializeGUI() {
	a.toolbar = NewToolbar()
	a.liveView = NewLiveView(a.logger)
	a.infoPanel = NewInfoPanel(a.logger)
	a.status = NewStatusManager()
}

func (a *Application) setupLayout() {
	center := container.NewBorder(
		container.NewVBox(a.toolbar.GetContainer(), widget.NewSeparator()), // top
		a.status.GetWidget(), // bottom
		nil,                  // left
		nil,                  // right
		container.NewPadded(a.liveView.GetContainer()),
	)

	split := container.NewHSplit(center, a.infoPanel.GetContainer())
	split.SetOffset(0.75)

	a.window.SetContent(split)
}

func (a *Application) setupCallbacks() {
	a.controller.SetCallbacks(
		// onStateChanged
		func(s session.State) {
			fyne.Do(func() {
				a.infoPanel.SetState(s)
				a.refreshControls()
			})
		},
		// onMetrics
		func(m map[string]float64) {
			fyne.Do(func() {
				a.infoPanel.UpdateMetrics(m)
			})
		},
	)

	a.infoPanel.SetMetricDescriptions(a.controller.MetricDescriptions())
	a.toolbar.SetCallbacks(a.captureBackground, a.startEffect, a.stopEffect, a.saveSnapshot)
}

// ReportSampleFailure surfaces a failed background sample. It is meant for
// cloak.Estimator.OnSampleFailed and may be called from any goroutine.
func (a *Application) ReportSampleFailure(sample, total int, err error) {
	fyne.Do(func() {
		a.failedSamples++
		a.infoPanel.AddWarning(fmt.Sprintf("could not read frame %d/%d", sample, total))
	})
}

func (a *Application) captureBackground() {
	a.failedSamples = 0
	a.infoPanel.ClearWarnings()
	a.status.ShowInfo(msgCapturing)
	a.toolbar.SetState(a.controller.State(), true, a.controller.HasOutput())

	go func() {
		err := a.controller.CaptureBackground(a.ctx)
		if a.ctx.Err() != nil {
			return // window closing
		}
		fyne.Do(func() {
			a.refreshControls()
			if err != nil {
				a.showError("Background capture failed", err)
				return
			}
			if n := a.failedSamples; n > 0 {
				a.status.ShowWarning(fmt.Sprintf("%s %d samples could not be read. %s", msgCaptured, n, msgStartHint))
				return
			}
			a.status.ShowSuccess(msgCaptured + " " + msgStartHint)
		})
	}()
}

func (a *Application) startEffect() {
	a.infoPanel.Clear()
	a.liveView.Clear()
	a.status.ShowInfo(msgRunning)
	a.toolbar.SetState(session.EffectRunning, false, a.controller.HasOutput())

	go func() {
		err := a.controller.Run(a.ctx, a.liveView)
		if a.ctx.Err() != nil {
			return // window closing
		}
		fyne.Do(func() {
			a.refreshControls()
			if err != nil {
				a.showError("Cloak effect failed", err)
				return
			}
			a.status.ShowInfo(msgStopped)
		})
	}()
}

func (a *Application) stopEffect() {
	a.controller.Stop()
}

func (a *Application) saveSnapshot() {
	snapshot, ok := a.controller.LastOutput()
	if !ok {
		snapshot.Close()
		a.showError("No Snapshot", errors.New(msgNoSnapshot))
		return
	}

	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		defer snapshot.Close()
		if err != nil {
			a.showError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return // User cancelled
		}
		path := writer.URI().Path()
		// gocv writes by path; the dialog's writer is only used to pick it.
		writer.Close()

		if err := a.loader.SaveImage(snapshot, path); err != nil {
			a.showError("Failed to Save Snapshot", err)
			return
		}
		a.status.ShowSuccess(fmt.Sprintf("Snapshot saved to %s", path))
	}, a.window)

	fileDialog.SetFileName("cloak_snapshot.png")
	fileDialog.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp"}))
	fileDialog.Show()
}

func (a *Application) refreshControls() {
	a.toolbar.SetState(a.controller.State(), a.controller.IsCapturing(), a.controller.HasOutput())
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.status.ShowError(err)
}

// ShowAndRun shows the window and blocks until it is closed.
func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.controller.SetCallbacks(nil, nil)
	a.cancel()
	a.controller.Stop()
}
