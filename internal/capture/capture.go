// Package capture grabs screenshots with robotgo.
//
// Capturing needs a display: X11 on Linux, and screen-recording permission
// on macOS. Both functions fail rather than return an empty image when the
// platform refuses.
package capture

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"

	"github.com/ironsheep/snapsum/internal/selection"
)

// Screen captures the whole main display at its physical resolution.
func Screen() (image.Image, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("no display available (screen size %dx%d)", w, h)
	}
	return grab(0, 0, w, h)
}

// Region captures r, given in screen pixels, from the main display.
func Region(r selection.Rect) (image.Image, error) {
	r = r.Normalize()
	if r.Empty() {
		return nil, fmt.Errorf("capture region %s is empty", r)
	}
	return grab(r.X1, r.Y1, r.Dx(), r.Dy())
}

func grab(x, y, w, h int) (image.Image, error) {
	bitmap := robotgo.CaptureScreen(x, y, w, h)
	if bitmap == nil {
		return nil, fmt.Errorf("screen capture of %dx%d at (%d,%d) failed", w, h, x, y)
	}
	defer robotgo.FreeBitmap(bitmap)

	img := robotgo.ToImage(bitmap)
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("screen capture returned an empty image")
	}
	return img, nil
}
