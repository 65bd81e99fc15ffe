package ui

import (
	"errors"
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/ironsheep/snapsum/internal/selection"
)

// SelectableImage shows an image and lets the user drag out a rectangle on
// it. Rectangles are reported in image pixels, whatever size the widget is
// drawn at.
type SelectableImage struct {
	widget.BaseWidget

	img      image.Image
	selector *selection.Selector

	outline      color.Color
	outlineWidth float32

	// OnSelected is called with each rectangle accepted by the selector.
	OnSelected func(selection.Rect)

	// OnRejected is called when a finished drag is too small.
	OnRejected func(error)

	// OnCancel is called on a secondary (right) click.
	OnCancel func()

	lastPos fyne.Position
}

var (
	_ desktop.Mouseable = (*SelectableImage)(nil)
	_ fyne.Draggable    = (*SelectableImage)(nil)
)

// NewSelectableImage creates the widget. Its minimum size is the image size
// in pixels, one pixel per fyne unit.
func NewSelectableImage(img image.Image, selector *selection.Selector, outline color.Color, outlineWidth float32) *SelectableImage {
	s := &SelectableImage{
		img:          img,
		selector:     selector,
		outline:      outline,
		outlineWidth: outlineWidth,
	}
	s.ExtendBaseWidget(s)
	return s
}

// Selector exposes the underlying selection state.
func (s *SelectableImage) Selector() *selection.Selector {
	return s.selector
}

// Image returns the displayed image.
func (s *SelectableImage) Image() image.Image {
	return s.img
}

// Committed returns the last accepted rectangle in image pixels.
func (s *SelectableImage) Committed() (selection.Rect, bool) {
	return s.selector.Committed()
}

// ToImage converts a widget position to image pixels. The image is stretched
// over the whole widget, so each axis scales on its own.
func (s *SelectableImage) ToImage(pos fyne.Position) selection.Point {
	b := s.img.Bounds()
	size := s.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return selection.Pt(int(pos.X), int(pos.Y))
	}

	x := int(pos.X * float32(b.Dx()) / size.Width)
	y := int(pos.Y * float32(b.Dy()) / size.Height)
	return selection.Pt(clampInt(x, 0, b.Dx()), clampInt(y, 0, b.Dy()))
}

func (s *SelectableImage) toWidget(r selection.Rect) (fyne.Position, fyne.Size) {
	b := s.img.Bounds()
	size := s.Size()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fyne.Position{}, fyne.Size{}
	}
	sx := size.Width / float32(b.Dx())
	sy := size.Height / float32(b.Dy())

	n := r.Normalize()
	return fyne.NewPos(float32(n.X1)*sx, float32(n.Y1)*sy),
		fyne.NewSize(float32(n.Dx())*sx, float32(n.Dy())*sy)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MouseDown starts a drag with the primary button and cancels with the
// secondary one.
func (s *SelectableImage) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonSecondary {
		if s.OnCancel != nil {
			s.OnCancel()
		}
		return
	}
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}

	s.lastPos = ev.Position
	s.selector.Begin(s.ToImage(ev.Position))
	s.Refresh()
}

// MouseUp finishes the drag at the release point.
func (s *SelectableImage) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	s.finish(ev.Position)
}

// Dragged follows the pointer.
func (s *SelectableImage) Dragged(ev *fyne.DragEvent) {
	s.lastPos = ev.Position
	if !s.selector.Active() {
		return
	}
	s.selector.Update(s.ToImage(ev.Position))
	s.Refresh()
}

// DragEnd finishes the drag at the last seen position. The driver may deliver
// it before or after MouseUp; whichever comes second finds no active drag.
func (s *SelectableImage) DragEnd() {
	s.finish(s.lastPos)
}

func (s *SelectableImage) finish(pos fyne.Position) {
	if !s.selector.Active() {
		return
	}

	r, err := s.selector.End(s.ToImage(pos))
	s.Refresh()

	switch {
	case errors.Is(err, selection.ErrRegionTooSmall):
		if s.OnRejected != nil {
			s.OnRejected(err)
		}
	case err == nil:
		if s.OnSelected != nil {
			s.OnSelected(r)
		}
	}
}

// MinSize is the image size.
func (s *SelectableImage) MinSize() fyne.Size {
	b := s.img.Bounds()
	return fyne.NewSize(float32(b.Dx()), float32(b.Dy()))
}

func (s *SelectableImage) CreateRenderer() fyne.WidgetRenderer {
	raster := canvas.NewImageFromImage(s.img)
	raster.FillMode = canvas.ImageFillStretch
	raster.ScaleMode = canvas.ImageScalePixels

	rect := canvas.NewRectangle(color.Transparent)
	rect.StrokeColor = s.outline
	rect.StrokeWidth = s.outlineWidth
	rect.Hide()

	return &selectableRenderer{
		widget:  s,
		raster:  raster,
		rect:    rect,
		objects: []fyne.CanvasObject{raster, rect},
	}
}

type selectableRenderer struct {
	widget  *SelectableImage
	raster  *canvas.Image
	rect    *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *selectableRenderer) Layout(size fyne.Size) {
	r.raster.Move(fyne.NewPos(0, 0))
	r.raster.Resize(size)
	r.placeRect()
}

// placeRect shows the drag in progress, or else the committed rectangle.
func (r *selectableRenderer) placeRect() {
	sel := r.widget.selector

	rect, ok := sel.Current()
	if !ok {
		rect, ok = sel.Committed()
	}
	if !ok {
		r.rect.Hide()
		return
	}

	pos, size := r.widget.toWidget(rect)
	r.rect.Move(pos)
	r.rect.Resize(size)
	r.rect.Show()
}

func (r *selectableRenderer) MinSize() fyne.Size {
	return r.widget.MinSize()
}

func (r *selectableRenderer) Refresh() {
	r.placeRect()
	r.rect.Refresh()
	r.raster.Refresh()
}

func (r *selectableRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *selectableRenderer) Destroy() {}
