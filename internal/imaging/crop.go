package imaging

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/snapsum/internal/selection"
)

// CropRect extracts r, given in source-image coordinates relative to the
// image origin, and returns it as a new image anchored at (0,0).
func CropRect(img image.Image, r selection.Rect) (*image.NRGBA, error) {
	bounds := img.Bounds()
	r = r.Normalize()

	if r.X1 < 0 || r.Y1 < 0 || r.X2 > bounds.Dx() || r.Y2 > bounds.Dy() {
		return nil, fmt.Errorf("crop region %s outside image bounds %dx%d", r, bounds.Dx(), bounds.Dy())
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region %s: zero area", r)
	}

	return imaging.Crop(img, r.Image().Add(bounds.Min)), nil
}

// PreviewImage enlarges (or shrinks) img by scale for display.
func PreviewImage(img image.Image, scale float64) (*image.NRGBA, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("scale factor must be positive, got %v", scale)
	}
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("scaled preview %dx%d is empty", w, h)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// SaveTempPNG writes img to a new PNG file in dir (the system temp directory
// when dir is empty) and returns its path. The caller owns the file.
func SaveTempPNG(img image.Image, dir, prefix string) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create temp dir: %w", err)
		}
	}

	f, err := os.CreateTemp(dir, prefix+"-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}

	return path, nil
}

// ExtractRegion maps r from a view scaled by scale back to src, clamps it to
// src, crops and applies opts. It also returns the clamped source rectangle.
func ExtractRegion(src image.Image, r selection.Rect, scale float64, opts PreprocessOptions) (image.Image, selection.Rect, error) {
	mapped, err := selection.MapToSource(r, scale)
	if err != nil {
		return nil, selection.Rect{}, err
	}
	b := src.Bounds()
	mapped = selection.Clamp(mapped, image.Rect(0, 0, b.Dx(), b.Dy()))

	cropped, err := CropRect(src, mapped)
	if err != nil {
		return nil, mapped, err
	}
	if !opts.Enabled() {
		return cropped, mapped, nil
	}
	return Preprocess(cropped, opts), mapped, nil
}
