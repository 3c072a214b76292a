// Session controls
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"invisibility-cloak/internal/session"
)

// Toolbar holds the buttons that drive a session. Buttons are enabled
// according to the session state.
type Toolbar struct {
	container *fyne.Container

	captureBtn *widget.Button
	startBtn   *widget.Button
	stopBtn    *widget.Button
	saveBtn    *widget.Button

	// Callbacks
	onCapture func()
	onStart   func()
	onStop    func()
	onSave    func()
}

func NewToolbar() *Toolbar {
	toolbar := &Toolbar{}
	toolbar.initializeUI()
	toolbar.SetState(session.NoBackground, false, false)
	return toolbar
}

func (tb *Toolbar) initializeUI() {
	titleLabel := widget.NewLabelWithStyle("Invisibility Cloak", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	tb.captureBtn = widget.NewButtonWithIcon("Capture Background", theme.MediaPhotoIcon(), func() {
		if tb.onCapture != nil {
			tb.onCapture()
		}
	})
	tb.captureBtn.Importance = widget.HighImportance

	tb.startBtn = widget.NewButtonWithIcon("Start Cloak Effect", theme.MediaPlayIcon(), func() {
		if tb.onStart != nil {
			tb.onStart()
		}
	})
	tb.startBtn.Importance = widget.HighImportance

	tb.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		if tb.onStop != nil {
			tb.onStop()
		}
	})

	tb.saveBtn = widget.NewButtonWithIcon("Save Snapshot", theme.DocumentSaveIcon(), func() {
		if tb.onSave != nil {
			tb.onSave()
		}
	})

	tb.container = container.NewHBox(
		titleLabel,
		widget.NewSeparator(),
		tb.captureBtn,
		tb.startBtn,
		tb.stopBtn,
		widget.NewSeparator(),
		tb.saveBtn,
	)
}

func (tb *Toolbar) GetContainer() fyne.CanvasObject {
	return tb.container
}

// SetState enables the buttons that make sense for state. While capturing
// only Save Snapshot may stay enabled.
func (tb *Toolbar) SetState(state session.State, capturing, hasOutput bool) {
	running := state == session.EffectRunning

	setEnabled(tb.captureBtn, !running && !capturing)
	setEnabled(tb.startBtn, !capturing && (state == session.BackgroundReady || state == session.Stopped))
	setEnabled(tb.stopBtn, running)
	setEnabled(tb.saveBtn, hasOutput)
}

func (tb *Toolbar) SetCallbacks(onCapture, onStart, onStop, onSave func()) {
	tb.onCapture = onCapture
	tb.onStart = onStart
	tb.onStop = onStop
	tb.onSave = onSave
}

func setEnabled(b *widget.Button, enabled bool) {
	if enabled {
		b.Enable()
	} else {
		b.Disable()
	}
}
