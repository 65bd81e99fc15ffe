package ui

import (
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/capture"
	"github.com/ironsheep/snapsum/internal/selection"
)

// hideDelay gives the window manager time to hide the main window before the
// screenshot is taken.
const hideDelay = 300 * time.Millisecond

// ScreenGrabber captures the screen; capture.Screen by default.
var ScreenGrabber = capture.Screen

func (a *App) captureScreen() {
	a.setBusy(true)
	a.mainWin.Hide()

	go func() {
		time.Sleep(hideDelay)
		shot, err := ScreenGrabber()

		fyne.Do(func() {
			if err != nil {
				a.endCapture()
				a.setStatus("Screen capture failed: "+err.Error(), widget.DangerImportance)
				dialog.ShowError(apperr.InputCause(err, "screen capture failed"), a.mainWin)
				return
			}
			a.showCaptureWindow(shot)
		})
	}()
}

// showCaptureWindow shows shot full screen. Releasing a large enough drag
// recognizes that region straight away; a right click or Escape cancels.
func (a *App) showCaptureWindow(shot image.Image) *SelectableImage {
	win := a.fyneApp.NewWindow("Capture")
	win.SetPadded(false)
	win.SetFullScreen(true)

	view := NewSelectableImage(shot,
		selection.NewSelector(a.cfg.CaptureMinLength),
		a.cfg.OutlineColor(), a.cfg.Outline.Width)

	// Every way out, including the window manager's close button, restores
	// the main window exactly once.
	finished := false
	finish := func() {
		if finished {
			return
		}
		finished = true
		a.endCapture()
	}
	win.SetOnClosed(finish)
	closeWin := func() {
		finish()
		win.Close()
	}

	view.OnSelected = func(r selection.Rect) {
		closeWin()

		// The selector already works in screenshot pixels.
		path, err := a.cropToTemp(shot, r, 1, "captured-screen-region")
		if err != nil {
			a.showInputError(err)
			return
		}
		a.setStatus("Captured screen region", widget.MediumImportance)
		a.recognize(path, true)
	}
	view.OnRejected = func(error) {
		closeWin()
		dialog.ShowInformation("Region too small",
			"The captured region is too small, please try again.", a.mainWin)
	}

	cancel := func() {
		delay := time.Duration(a.cfg.CaptureCancelDelayMS) * time.Millisecond
		if delay <= 0 {
			closeWin()
			return
		}
		time.AfterFunc(delay, func() {
			fyne.Do(closeWin)
		})
	}
	view.OnCancel = cancel
	win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			cancel()
		}
	})

	win.SetContent(view)
	win.Show()
	return view
}

func (a *App) endCapture() {
	a.mainWin.Show()
	a.setBusy(false)
}
