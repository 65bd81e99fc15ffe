// Package ocr turns an image file into recognized text tokens.
//
// The rest of the program treats recognition as an opaque collaborator behind
// the Engine interface: an engine receives the path of an image and returns
// one result per recognized page. Results may come in different shapes
// depending on where they were produced, so callers never inspect them
// directly and instead go through RecTexts, which normalizes every supported
// shape to a flat list of strings.
//
// # Result Shapes
//
// RecTexts accepts:
//   - any value with a RecTexts() []string method
//   - Prediction and *Prediction
//   - map[string]any with a "rec_texts" key holding []string or []any
//
// Anything else is skipped and logged at warn level. DecodePredictions reads
// the JSON form of the map shape, as written by PaddleOCR's save_to_json.
//
// # Tesseract
//
// Tesseract is the built-in engine, backed by gosseract/v2. It keeps one
// client for its whole lifetime, so it must only be used from one goroutine
// at a time; the recognition worker guarantees this.
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//   - Windows: https://github.com/UB-Mannheim/tesseract/wiki
//
// Language data files are required for each configured language
// (tesseract-ocr-<lang> packages, or a directory given as TessdataPrefix).
package ocr
