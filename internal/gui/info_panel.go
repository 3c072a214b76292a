// Status and metrics panels
package gui

import (
	"fmt"
	"slices"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"invisibility-cloak/internal/metrics"
	"invisibility-cloak/internal/session"
)

// maxWarnings is the number of capture warnings kept on screen.
const maxWarnings = 5

// InfoPanel shows the session state, capture warnings and live metrics.
type InfoPanel struct {
	logger *logrus.Logger

	container *fyne.Container

	stateLabel *widget.Label

	warningsCard    *widget.Card
	warningsContent *fyne.Container
	warnings        []string

	metricsCard    *widget.Card
	metricsContent *fyne.Container
	currentMetrics map[string]float64
	descriptions   map[string]metrics.Description
}

func NewInfoPanel(logger *logrus.Logger) *InfoPanel {
	panel := &InfoPanel{
		logger:         logger,
		currentMetrics: make(map[string]float64),
		descriptions:   make(map[string]metrics.Description),
	}

	panel.initializeUI()
	return panel
}

func (ip *InfoPanel) initializeUI() {
	ip.stateLabel = widget.NewLabelWithStyle(stateText(session.NoBackground), fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	stateCard := widget.NewCard("Session", "", ip.stateLabel)

	ip.warningsContent = container.NewVBox(widget.NewLabel("No capture warnings."))
	ip.warningsCard = widget.NewCard("Capture", "", ip.warningsContent)

	ip.metricsContent = container.NewVBox(
		widget.NewLabel("Live statistics will appear here while the effect runs."),
	)
	ip.metricsCard = widget.NewCard("Metrics", "", ip.metricsContent)

	scroll := container.NewScroll(container.NewVBox(
		stateCard,
		widget.NewSeparator(),
		ip.warningsCard,
		widget.NewSeparator(),
		ip.metricsCard,
	))
	scroll.SetMinSize(fyne.NewSize(280, 400))

	ip.container = container.NewBorder(nil, nil, nil, nil, scroll)
}

func (ip *InfoPanel) GetContainer() fyne.CanvasObject {
	return ip.container
}

// SetState shows s in the session card.
func (ip *InfoPanel) SetState(s session.State) {
	ip.stateLabel.SetText(stateText(s))
}

// AddWarning appends a capture warning, dropping the oldest beyond maxWarnings.
func (ip *InfoPanel) AddWarning(message string) {
	ip.warnings = append(ip.warnings, message)
	if len(ip.warnings) > maxWarnings {
		ip.warnings = ip.warnings[len(ip.warnings)-maxWarnings:]
	}

	ip.warningsContent.RemoveAll()
	for _, w := range ip.warnings {
		ip.warningsContent.Add(container.NewHBox(
			widget.NewIcon(theme.WarningIcon()),
			widget.NewLabel(w),
		))
	}
	ip.warningsContent.Refresh()
}

// ClearWarnings empties the capture card.
func (ip *InfoPanel) ClearWarnings() {
	ip.warnings = nil
	ip.warningsContent.RemoveAll()
	ip.warningsContent.Add(widget.NewLabel("No capture warnings."))
	ip.warningsContent.Refresh()
}

// Warnings returns the warnings currently shown.
func (ip *InfoPanel) Warnings() []string {
	return slices.Clone(ip.warnings)
}

// SetMetricDescriptions sets the labels shown next to metric values.
func (ip *InfoPanel) SetMetricDescriptions(ds []metrics.Description) {
	ip.descriptions = make(map[string]metrics.Description, len(ds))
	for _, d := range ds {
		ip.descriptions[d.Key] = d
	}
}

func (ip *InfoPanel) UpdateMetrics(metrics map[string]float64) {
	ip.currentMetrics = metrics
	ip.refreshMetricsDisplay()
}

func (ip *InfoPanel) refreshMetricsDisplay() {
	ip.metricsContent.RemoveAll()

	if len(ip.currentMetrics) == 0 {
		ip.metricsContent.Add(widget.NewLabel("Waiting for frames..."))
		ip.metricsContent.Refresh()
		return
	}

	names := make([]string, 0, len(ip.currentMetrics))
	for name := range ip.currentMetrics {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		d, ok := ip.descriptions[name]
		if !ok {
			d = metrics.Description{Key: name, Name: name}
		}
		ip.metricsContent.Add(widget.NewLabel(metricText(d.Name, name, ip.currentMetrics[name])))
		if d.Description != "" {
			ip.metricsContent.Add(widget.NewLabelWithStyle(d.Description, fyne.TextAlignLeading, fyne.TextStyle{Italic: true}))
		}
	}
	ip.metricsContent.Refresh()
}

func (ip *InfoPanel) Clear() {
	ip.currentMetrics = make(map[string]float64)
	ip.metricsContent.RemoveAll()
	ip.metricsContent.Add(widget.NewLabel("Live statistics will appear here while the effect runs."))
	ip.metricsContent.Refresh()
}

// metricText formats value according to the metric key.
func metricText(label, key string, value float64) string {
	switch key {
	case "coverage":
		return fmt.Sprintf("%s: %.1f%%", label, value*100)
	case "psnr":
		return fmt.Sprintf("%s: %.2f dB", label, value)
	case "fps":
		return fmt.Sprintf("%s: %.1f fps", label, value)
	default:
		return fmt.Sprintf("%s: %.3f", label, value)
	}
}

func stateText(s session.State) string {
	switch s {
	case session.NoBackground:
		return "No background captured"
	case session.BackgroundReady:
		return "Background ready"
	case session.EffectRunning:
		return "Cloak effect running"
	case session.Stopped:
		return "Cloak effect stopped"
	default:
		return s.String()
	}
}

// StatusManager shows the latest user-facing message with an icon.
type StatusManager struct {
	widget    *widget.Card
	label     *widget.Label
	container *fyne.Container
}

func NewStatusManager() *StatusManager {
	manager := &StatusManager{}
	manager.initializeUI()
	return manager
}

func (sm *StatusManager) initializeUI() {
	sm.label = widget.NewLabel("Ready")
	sm.container = container.NewHBox(
		widget.NewIcon(theme.InfoIcon()),
		sm.label,
	)
	sm.widget = widget.NewCard("", "", sm.container)
}

func (sm *StatusManager) GetWidget() fyne.CanvasObject {
	return sm.widget
}

// Text returns the message currently shown.
func (sm *StatusManager) Text() string {
	return sm.label.Text
}

func (sm *StatusManager) ShowInfo(message string) {
	sm.updateStatus(message, theme.InfoIcon())
}

func (sm *StatusManager) ShowSuccess(message string) {
	sm.updateStatus(message, theme.ConfirmIcon())
}

func (sm *StatusManager) ShowWarning(message string) {
	sm.updateStatus(message, theme.WarningIcon())
}

func (sm *StatusManager) ShowError(err error) {
	sm.updateStatus(fmt.Sprintf("Error: %s", err.Error()), theme.ErrorIcon())
}

func (sm *StatusManager) updateStatus(message string, icon fyne.Resource) {
	sm.label = widget.NewLabel(message)
	sm.container.RemoveAll()
	sm.container.Add(widget.NewIcon(icon))
	sm.container.Add(sm.label)
	sm.container.Refresh()
}
