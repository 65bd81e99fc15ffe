package ui

import (
	"fmt"
	"image"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/selection"
)

const (
	previewTitle      = "Preview - drag to select the region to recognize"
	previewExtraSpace = 100
)

// preview is an open preview window. The selector works in preview pixels;
// confirm maps the committed rectangle back to the source image.
type preview struct {
	app    *App
	win    fyne.Window
	source image.Image
	view   *SelectableImage

	// handedOff is set once confirm passes the selection to the worker; the
	// main window then stays busy until the result arrives.
	handedOff bool
}

func (a *App) showPreview(path string, src image.Image) (*preview, error) {
	scaled, err := imaging.PreviewImage(src, a.cfg.ScaleFactor)
	if err != nil {
		return nil, apperr.InputCause(err, "failed to prepare preview")
	}

	p := &preview{
		app:    a,
		win:    a.fyneApp.NewWindow(fmt.Sprintf("%s - %s", previewTitle, filepath.Base(path))),
		source: src,
	}
	p.view = NewSelectableImage(scaled,
		selection.NewSelector(a.cfg.PreviewMinLength),
		a.cfg.OutlineColor(), a.cfg.Outline.Width)
	p.view.OnRejected = func(error) {
		dialog.ShowInformation("Region too small",
			"The selected region is too small, please select again.", p.win)
	}

	confirm := widget.NewButtonWithIcon("Recognize selection", theme.ConfirmIcon(), p.confirm)
	confirm.Importance = widget.HighImportance
	cancel := widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), p.win.Close)

	p.win.SetContent(container.NewBorder(nil,
		container.NewHBox(confirm, cancel), nil, nil,
		container.NewScroll(p.view)))

	size := scaled.Bounds()
	p.win.Resize(fyne.NewSize(float32(size.Dx()), float32(size.Dy()+previewExtraSpace)))

	// The main window stays usable but cannot start a second flow.
	a.setBusy(true)
	p.win.SetOnClosed(func() {
		if !p.handedOff {
			a.setBusy(false)
		}
	})

	p.win.Show()
	return p, nil
}

// confirm crops the committed selection from the source image and sends it
// for recognition.
func (p *preview) confirm() {
	r, ok := p.view.Committed()
	if !ok {
		dialog.ShowInformation("No region selected",
			"Drag a rectangle over the numbers first.", p.win)
		return
	}

	path, err := p.app.cropToTemp(p.source, r, p.app.cfg.ScaleFactor, "selected-region")
	if err != nil {
		dialog.ShowError(err, p.win)
		return
	}

	p.handedOff = true
	p.win.Close()
	p.app.recognize(path, true)
}

// cropToTemp maps r from display space to src, crops, preprocesses and
// writes the result to a temp PNG owned by the caller.
func (a *App) cropToTemp(src image.Image, r selection.Rect, scale float64, prefix string) (string, error) {
	out, mapped, err := imaging.ExtractRegion(src, r, scale, a.cfg.Preprocess)
	if err != nil {
		return "", apperr.InputCause(err, "invalid selection")
	}

	path, err := imaging.SaveTempPNG(out, a.cfg.TempDir, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to save selection: %w", err)
	}
	a.log.WithField("region", mapped.String()).Debug("selection cropped")
	return path, nil
}
