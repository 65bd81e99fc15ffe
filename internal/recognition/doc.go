// Package recognition runs OCR requests on a single background goroutine.
//
// A Worker owns exactly one ocr.Engine. The engine is built by a factory on
// the first request, not when the worker starts, so opening the window is
// never delayed by model loading; every later request reuses it. Requests
// are processed one at a time in submission order and none can be cancelled
// once started.
//
// There are two ways to submit work:
//
//   - Submit queues a request and returns immediately. Its Result arrives on
//     Results(). The desktop app drains that channel and hands each result to
//     the UI thread with fyne.Do.
//   - Recognize queues a request and waits for that request's own Result.
//     The CLI, the MCP server and the directory watcher use it.
//
// Callers using Submit must keep draining Results, otherwise the worker
// blocks once the channel buffer fills.
//
// A Result is either a success carrying the accepted tokens and their total
// or a failure carrying the error. A panic inside the engine is recovered and
// reported as a failure; the worker keeps serving.
package recognition
