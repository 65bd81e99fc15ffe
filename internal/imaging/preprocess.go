package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// PreprocessOptions controls the cleanup applied to a crop before OCR.
// The zero value leaves the image untouched.
type PreprocessOptions struct {
	// Grayscale converts to luminance first.
	Grayscale bool `json:"grayscale"`

	// Contrast is a bild contrast change in [-1, 1]; 0 disables it.
	Contrast float64 `json:"contrast"`

	// Threshold binarizes at this gray level; 0 disables it.
	Threshold uint8 `json:"threshold"`

	// Upscale enlarges small crops before recognition; values <= 1 disable it.
	Upscale float64 `json:"upscale"`
}

// Enabled reports whether any step is switched on.
func (o PreprocessOptions) Enabled() bool {
	return o.Grayscale || o.Contrast != 0 || o.Threshold > 0 || o.Upscale > 1
}

// Preprocess applies the enabled steps in a fixed order: upscale, grayscale,
// contrast, threshold.
func Preprocess(img image.Image, opts PreprocessOptions) image.Image {
	out := img

	if opts.Upscale > 1 {
		b := out.Bounds()
		out = imaging.Resize(out, int(float64(b.Dx())*opts.Upscale), 0, imaging.CatmullRom)
	}
	if opts.Grayscale {
		out = effect.Grayscale(out)
	}
	if opts.Contrast != 0 {
		out = adjust.Contrast(out, opts.Contrast)
	}
	if opts.Threshold > 0 {
		out = segment.Threshold(out, opts.Threshold)
	}

	return out
}
