package recognition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/logging"
	"github.com/ironsheep/snapsum/internal/numeric"
	"github.com/ironsheep/snapsum/internal/ocr"
)

// ErrClosed is returned when submitting to a closed worker.
var ErrClosed = errors.New("recognition worker closed")

// EngineFactory builds the engine on first use.
type EngineFactory func() (ocr.Engine, error)

// Options tunes a Worker. The zero value is usable.
type Options struct {
	// QueueSize bounds both the request queue and the Results buffer.
	// Defaults to 16.
	QueueSize int

	// SignedNumbers accepts signed decimals in OCR output by using
	// numeric.ExtractNumbers. By default only unsigned digit tokens are
	// kept (numeric.FilterDigitTokens).
	SignedNumbers bool
}

type job struct {
	req   Request
	reply chan Result
}

// Worker serializes recognition requests onto one goroutine that owns the
// OCR engine.
type Worker struct {
	factory EngineFactory
	engine  ocr.Engine
	filter  func([]string) []numeric.Number
	log     *logrus.Entry

	jobs    chan job
	results chan Result
	done    chan struct{}

	mu       sync.RWMutex
	closed   bool
	closeErr error
}

// NewWorker starts a worker. factory is called on the first request, and
// again on later requests only if it failed before.
func NewWorker(factory EngineFactory, opts Options) *Worker {
	size := opts.QueueSize
	if size <= 0 {
		size = 16
	}

	filter := numeric.FilterDigitTokens
	if opts.SignedNumbers {
		filter = numeric.ExtractNumbers
	}

	w := &Worker{
		factory: factory,
		filter:  filter,
		log:     logging.For("recognition"),
		jobs:    make(chan job, size),
		results: make(chan Result, size),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Results delivers the results of Submit calls in submission order. It is
// closed after Close has drained the queue.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Submit queues req and returns its ID without waiting. The result arrives
// on Results.
func (w *Worker) Submit(req Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := w.enqueue(context.Background(), job{req: req}); err != nil {
		return "", err
	}
	return req.ID, nil
}

// Recognize queues req and waits for its result. Cancelling ctx stops the
// wait, including a wait for room in a full queue, but not a recognition
// that has already been queued: that one still runs to completion.
func (w *Worker) Recognize(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	reply := make(chan Result, 1)
	if err := w.enqueue(ctx, job{req: req, reply: reply}); err != nil {
		return Result{}, err
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// enqueue holds the read lock while it waits so Close cannot close jobs
// under a pending send.
func (w *Worker) enqueue(ctx context.Context, j job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting requests, waits for queued ones to finish and closes
// the engine. It is safe to call more than once.
func (w *Worker) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	<-w.done
	return w.closeErr
}

func (w *Worker) run() {
	defer close(w.done)
	defer close(w.results)

	for j := range w.jobs {
		res := w.process(j.req)
		if j.reply != nil {
			j.reply <- res
		} else {
			w.results <- res
		}
	}

	if w.engine != nil {
		if err := w.engine.Close(); err != nil {
			w.closeErr = fmt.Errorf("failed to close OCR engine: %w", err)
		}
		w.engine = nil
	}
	w.log.Debug("worker stopped")
}

func (w *Worker) process(req Request) (res Result) {
	start := time.Now()
	log := w.log.WithFields(logrus.Fields{"id": req.ID, "path": req.ImagePath})

	res = Result{ID: req.ID, ImagePath: req.ImagePath}

	if req.Temporary {
		defer func() {
			if err := os.Remove(req.ImagePath); err != nil && !os.IsNotExist(err) {
				log.WithError(err).Warn("failed to delete temp image")
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("OCR engine panicked")
			res = Result{
				ID:        req.ID,
				ImagePath: req.ImagePath,
				Elapsed:   time.Since(start),
				Err:       apperr.Recognition(fmt.Errorf("%v", r), "OCR engine panicked"),
			}
		}
	}()

	numbers, err := w.recognize(req.ImagePath)
	res.Elapsed = time.Since(start)
	if err != nil {
		log.WithError(err).Warn("recognition failed")
		res.Err = err
		return res
	}

	res.Success = true
	res.Numbers = numeric.Texts(numbers)
	res.Total = numeric.Sum(numeric.Values(numbers))

	log.WithFields(logrus.Fields{
		"count":   len(numbers),
		"total":   res.Total,
		"elapsed": res.Elapsed.Round(time.Millisecond),
	}).Info("recognition finished")
	return res
}

func (w *Worker) recognize(path string) ([]numeric.Number, error) {
	if path == "" {
		return nil, apperr.Input("no image selected")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, apperr.InputCause(err, "image file not found")
	}

	if w.engine == nil {
		engine, err := w.factory()
		if err != nil {
			return nil, apperr.Recognition(err, "failed to load OCR engine")
		}
		w.engine = engine
		w.log.Debug("OCR engine loaded")
	}

	results, err := w.engine.Predict(path)
	if err != nil {
		return nil, apperr.Recognition(err, "OCR failed")
	}

	return w.filter(ocr.RecTexts(results)), nil
}
