package selection

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

const (
	// PreviewMinLength is the minimum width/height of a selection on the
	// scaled preview, in display pixels.
	PreviewMinLength = 10

	// CaptureMinLength is the minimum width/height of a screen-capture
	// selection, in screen pixels.
	CaptureMinLength = 10

	// DefaultScaleFactor is the enlargement applied to the preview.
	DefaultScaleFactor = 2.0
)

var (
	// ErrRegionTooSmall is returned by End when the finished rectangle is not
	// larger than the minimum length in both dimensions.
	ErrRegionTooSmall = errors.New("selected region is too small")

	// ErrNoSelection is returned by End when no drag is in progress.
	ErrNoSelection = errors.New("no selection in progress")
)

// Point is an integer coordinate pair.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Rect is an axis-aligned rectangle. A normalized Rect has X1 <= X2 and
// Y1 <= Y2.
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// RectFromPoints builds a normalized Rect spanning a and b.
func RectFromPoints(a, b Point) Rect {
	return Rect{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y}.Normalize()
}

// Normalize orders the corners so that X1 <= X2 and Y1 <= Y2.
func (r Rect) Normalize() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Dx returns the width of a normalized Rect.
func (r Rect) Dx() int { return r.X2 - r.X1 }

// Dy returns the height of a normalized Rect.
func (r Rect) Dy() int { return r.Y2 - r.Y1 }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	n := r.Normalize()
	return n.Dx() == 0 || n.Dy() == 0
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// ParseRect parses "x1,y1,x2,y2" into a normalized Rect. Spaces around the
// numbers are allowed.
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("region %q must be x1,y1,x2,y2", s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return Rect{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}.Normalize(), nil
}

// Selector tracks one drag at a time and remembers the last valid rectangle.
type Selector struct {
	minLength int

	active  bool
	anchor  Point
	current Rect

	committed *Rect
}

// NewSelector returns a Selector that rejects rectangles whose sides are not
// strictly longer than minLength.
func NewSelector(minLength int) *Selector {
	return &Selector{minLength: minLength}
}

// MinLength returns the configured minimum side length.
func (s *Selector) MinLength() int {
	return s.minLength
}

// Begin starts a new candidate rectangle anchored at p, discarding any drag
// that was still in progress.
func (s *Selector) Begin(p Point) {
	s.active = true
	s.anchor = p
	s.current = Rect{X1: p.X, Y1: p.Y, X2: p.X, Y2: p.Y}
}

// Update moves the corner opposite the anchor to p. It does nothing when no
// drag is in progress.
func (s *Selector) Update(p Point) {
	if !s.active {
		return
	}
	s.current = Rect{X1: s.anchor.X, Y1: s.anchor.Y, X2: p.X, Y2: p.Y}
}

// End finishes the drag with p as the second corner.
//
// On success the normalized rectangle is returned and becomes the committed
// selection. A rectangle that is too small is discarded, the previous
// commitment is cleared and ErrRegionTooSmall is returned. Either way the drag
// state is reset.
func (s *Selector) End(p Point) (Rect, error) {
	if !s.active {
		return Rect{}, ErrNoSelection
	}
	s.active = false

	r := RectFromPoints(s.anchor, p)
	s.current = Rect{}

	if r.Dx() <= s.minLength || r.Dy() <= s.minLength {
		s.committed = nil
		return Rect{}, fmt.Errorf("%w: %dx%d, need more than %d", ErrRegionTooSmall, r.Dx(), r.Dy(), s.minLength)
	}

	s.committed = &r
	return r, nil
}

// Active reports whether a drag is in progress.
func (s *Selector) Active() bool {
	return s.active
}

// Current returns the in-progress rectangle, unnormalized, so that the
// overlay follows the pointer. ok is false when idle.
func (s *Selector) Current() (r Rect, ok bool) {
	return s.current, s.active
}

// Committed returns the last rectangle accepted by End.
func (s *Selector) Committed() (Rect, bool) {
	if s.committed == nil {
		return Rect{}, false
	}
	return *s.committed, true
}

// Reset clears both the drag and the committed rectangle.
func (s *Selector) Reset() {
	s.active = false
	s.current = Rect{}
	s.committed = nil
}

// MapToSource converts a display-space rectangle to source-image space by
// dividing each coordinate by scale and truncating toward zero. The result is
// normalized, so a rectangle and its corner-swapped twin map identically.
func MapToSource(r Rect, scale float64) (Rect, error) {
	if scale <= 0 {
		return Rect{}, fmt.Errorf("scale factor must be positive, got %v", scale)
	}
	n := r.Normalize()
	return Rect{
		X1: int(float64(n.X1) / scale),
		Y1: int(float64(n.Y1) / scale),
		X2: int(float64(n.X2) / scale),
		Y2: int(float64(n.Y2) / scale),
	}, nil
}

// Clamp limits r to bounds. The result may be empty when r lies entirely
// outside bounds.
func Clamp(r Rect, bounds image.Rectangle) Rect {
	clamped := r.Normalize().Image().Intersect(bounds)
	return Rect{X1: clamped.Min.X, Y1: clamped.Min.Y, X2: clamped.Max.X, Y2: clamped.Max.Y}
}
