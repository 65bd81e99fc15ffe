// Package imaging loads, previews, crops and prepares images for OCR.
//
// All coordinates are 0-based source-image pixels with (0,0) at the top-left.
// Regions use an inclusive top-left corner and an exclusive bottom-right
// corner, matching image.Rectangle.
//
// # Pipeline
//
// The desktop flow uses the functions in this order:
//
//  1. ImageCache.Load decodes the picked file (PNG, JPEG, GIF, BMP, TIFF).
//  2. PreviewImage enlarges it by the scale factor for display.
//  3. ExtractRegion maps the selection back to source coordinates, clamps
//     it, crops it with CropRect and runs Preprocess, which optionally
//     upscales, grayscales, boosts contrast and thresholds the crop.
//  4. SaveTempPNG writes the result for the OCR engine, which needs a path.
//     The recognition worker deletes the file once the engine has read it.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless.
package imaging
