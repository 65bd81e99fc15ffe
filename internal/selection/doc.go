// Package selection turns pointer-drag events over a displayed image into a
// validated rectangle in source-image coordinates.
//
// # Coordinate Spaces
//
// The preview shows the source image enlarged by a scale factor. Pointer
// events arrive in display space; the crop is taken in source space:
//
//	source = display / scale   (truncated toward zero)
//
// The screen-capture overlay shows the screenshot at scale 1, so both spaces
// coincide there.
//
// # Drag Lifecycle
//
// A Selector goes through Begin (pointer down), any number of Update calls
// (pointer move) and End (pointer up). End normalizes the corners and rejects
// rectangles whose width or height is not strictly greater than the minimum
// length. Several drag cycles may happen before the user confirms; Committed
// returns the last rectangle that passed validation.
//
// A Selector is meant to be driven from a single UI goroutine and is not safe
// for concurrent use.
package selection
