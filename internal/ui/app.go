// Package ui is the fyne desktop front end.
//
// All widget state is touched on the fyne UI goroutine only. Recognition
// results come back from the worker on a channel; a drain goroutine hands
// each one to the UI goroutine with fyne.Do.
package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/config"
	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/logging"
	"github.com/ironsheep/snapsum/internal/numeric"
	"github.com/ironsheep/snapsum/internal/recognition"
)

const (
	appTitle   = "SnapSum"
	headerText = "Number recognition and sum"
	digitsDesc = "Recognized numbers (one per line, edit or add freely):"
)

// Recognizer is the part of the recognition worker the UI needs.
type Recognizer interface {
	Submit(req recognition.Request) (string, error)
	Results() <-chan recognition.Result
}

// App is the main window and the flows it opens.
type App struct {
	fyneApp fyne.App
	mainWin fyne.Window

	cfg    *config.Config
	worker Recognizer
	cache  *imaging.ImageCache
	log    *logrus.Entry

	chooseBtn  *widget.Button
	captureBtn *widget.Button
	digits     *widget.Entry
	sum        *widget.Entry
	status     *widget.Label
}

// New builds the main window on fa. Call Run to show it.
func New(fa fyne.App, cfg *config.Config, worker Recognizer) *App {
	a := &App{
		fyneApp: fa,
		mainWin: fa.NewWindow(appTitle),
		cfg:     cfg,
		worker:  worker,
		cache:   imaging.NewImageCache(),
		log:     logging.For("ui"),
	}
	a.build()
	return a
}

// Window returns the main window.
func (a *App) Window() fyne.Window {
	return a.mainWin
}

func (a *App) build() {
	header := widget.NewLabelWithStyle(headerText, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	a.chooseBtn = widget.NewButtonWithIcon("Choose image", theme.FolderOpenIcon(), a.chooseImage)
	a.captureBtn = widget.NewButtonWithIcon("Capture screen region", theme.ViewFullScreenIcon(), a.captureScreen)

	a.digits = widget.NewMultiLineEntry()
	a.digits.TextStyle = fyne.TextStyle{Monospace: true}
	a.digits.SetMinRowsVisible(10)
	a.digits.OnChanged = a.onDigitsChanged

	a.sum = widget.NewEntry()
	a.sum.TextStyle = fyne.TextStyle{Monospace: true}
	a.sum.Disable()

	a.status = widget.NewLabel("")
	a.status.Wrapping = fyne.TextWrapWord

	sumRow := container.NewBorder(nil, nil,
		widget.NewLabelWithStyle("Sum:", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		nil, a.sum)

	top := container.NewVBox(
		header,
		container.NewHBox(a.chooseBtn, a.captureBtn),
		widget.NewSeparator(),
		widget.NewLabel(digitsDesc),
	)
	bottom := container.NewVBox(sumRow, a.status)

	a.mainWin.SetContent(container.NewPadded(container.NewBorder(top, bottom, nil, nil, a.digits)))
	a.mainWin.Resize(fyne.NewSize(a.cfg.Window.Width, a.cfg.Window.Height))
}

// Run starts delivering results and blocks until the main window closes.
func (a *App) Run() {
	go a.drainResults()

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *App) drainResults() {
	for res := range a.worker.Results() {
		fyne.Do(func() {
			a.applyResult(res)
		})
	}
}

// onDigitsChanged recomputes the total whenever the list is edited.
func (a *App) onDigitsChanged(text string) {
	_, total := numeric.SumText(text)
	a.sum.SetText(numeric.FormatTotal(total))
	a.setStatus("Sum updated", widget.HighImportance)
}

func (a *App) applyResult(res recognition.Result) {
	a.setBusy(false)

	if !res.Success {
		a.setStatus(res.Status(), widget.DangerImportance)
		if res.Kind() == apperr.KindInput {
			dialog.ShowInformation("Error", res.ErrorMessage(), a.mainWin)
		}
		return
	}

	text := strings.Join(res.Numbers, "\n")
	if text != "" {
		text += "\n"
	}
	a.digits.SetText(text)
	a.sum.SetText(numeric.FormatTotal(res.Total))
	a.setStatus(res.Status(), widget.HighImportance)
}

func (a *App) setStatus(text string, importance widget.Importance) {
	a.status.Importance = importance
	a.status.SetText(text)
}

func (a *App) setBusy(busy bool) {
	if busy {
		a.chooseBtn.Disable()
		a.captureBtn.Disable()
		return
	}
	a.chooseBtn.Enable()
	a.captureBtn.Enable()
}

// recognize queues path on the worker. temporary hands ownership of the file
// to the worker, which deletes it; if the request cannot be queued the file
// is removed here.
func (a *App) recognize(path string, temporary bool) {
	if path == "" {
		a.showInputError(apperr.Input("choose an image first"))
		return
	}

	a.setStatus("Recognizing numbers...", widget.WarningImportance)
	a.setBusy(true)

	id, err := a.worker.Submit(recognition.Request{ImagePath: path, Temporary: temporary})
	if err != nil {
		if temporary {
			a.removeTemp(path)
		}
		a.setBusy(false)
		a.setStatus(fmt.Sprintf("Recognition failed: %v", err), widget.DangerImportance)
		return
	}
	a.log.WithFields(logrus.Fields{"id": id, "path": path}).Debug("recognition submitted")
}

func (a *App) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.WithError(err).WithField("path", path).Warn("failed to delete temp image")
	}
}

func (a *App) showInputError(err error) {
	a.setStatus(err.Error(), widget.DangerImportance)
	dialog.ShowInformation("Error", err.Error(), a.mainWin)
}

func (a *App) chooseImage() {
	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.showInputError(apperr.InputCause(err, "failed to open file dialog"))
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		a.openImage(path)
	}, a.mainWin)

	d.SetFilter(storage.NewExtensionFileFilter(imaging.SupportedExtensions))
	d.Show()
}

// openImage previews path for region selection.
func (a *App) openImage(path string) {
	if !imaging.IsSupported(path) {
		a.showInputError(apperr.Input("unsupported image type %q", filepath.Ext(path)))
		return
	}

	img, err := a.cache.Load(path)
	if err != nil {
		a.showInputError(apperr.InputCause(err, "failed to load image"))
		return
	}

	a.setStatus(fmt.Sprintf("Selected image: %s", filepath.Base(path)), widget.MediumImportance)
	if _, err := a.showPreview(path, img); err != nil {
		a.showInputError(err)
	}
}
