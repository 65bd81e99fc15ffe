// Package watch recognizes images as they are dropped into a directory.
//
// Files are recognized once they have been quiet (no create or write event)
// for the debounce interval, so a copy still in progress is not picked up
// half written.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/logging"
	"github.com/ironsheep/snapsum/internal/recognition"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Recognizer runs one recognition and waits for the result.
type Recognizer interface {
	Recognize(ctx context.Context, req recognition.Request) (recognition.Result, error)
}

// Options tunes a Watcher.
type Options struct {
	// Debounce is how long a file must be quiet before it is recognized.
	Debounce time.Duration

	// Existing also recognizes the images already in the directory, in name
	// order, before watching for new ones.
	Existing bool
}

// Watcher recognizes supported images that appear in one directory.
type Watcher struct {
	dir  string
	rec  Recognizer
	opts Options
	log  *logrus.Entry
}

// New returns a Watcher for dir. Call Run to start it.
func New(dir string, rec Recognizer, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		dir:  dir,
		rec:  rec,
		opts: opts,
		log:  logging.For("watch").WithField("dir", dir),
	}
}

// Run watches until ctx is cancelled, passing every result to handle in the
// order the files settled. It returns nil when ctx is cancelled and an error
// if the directory cannot be watched or the recognizer stops accepting work.
func (w *Watcher) Run(ctx context.Context, handle func(recognition.Result)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.WithField("debounce", w.opts.Debounce).Info("watching for images")

	if w.opts.Existing {
		files, err := ListImages(w.dir)
		if err != nil {
			return err
		}
		for _, path := range files {
			if err := w.recognize(ctx, path, handle); err != nil {
				return ignoreCancel(err)
			}
		}
	}

	pending := newDebouncer(w.opts.Debounce)
	ticker := time.NewTicker(w.opts.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(pending, ev)

		case now := <-ticker.C:
			for _, path := range pending.ready(now) {
				if err := w.recognize(ctx, path, handle); err != nil {
					return ignoreCancel(err)
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) handleEvent(pending *debouncer, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		pending.remove(ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if !accept(ev.Name) {
			return
		}
		pending.touch(ev.Name, time.Now())
	}
}

func (w *Watcher) recognize(ctx context.Context, path string, handle func(recognition.Result)) error {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil
	}

	w.log.WithField("path", path).Debug("recognizing")
	res, err := w.rec.Recognize(ctx, recognition.Request{ImagePath: path})
	if err != nil {
		return err
	}
	handle(res)
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// accept reports whether name is a visible file with a supported image
// extension.
func accept(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imaging.IsSupported(base)
}

// ListImages returns the supported images directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !accept(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// debouncer tracks when each pending file was last touched.
type debouncer struct {
	quiet   time.Duration
	touched map[string]time.Time
}

func newDebouncer(quiet time.Duration) *debouncer {
	return &debouncer{quiet: quiet, touched: make(map[string]time.Time)}
}

func (d *debouncer) touch(path string, at time.Time) {
	d.touched[path] = at
}

func (d *debouncer) remove(path string) {
	delete(d.touched, path)
}

func (d *debouncer) len() int {
	return len(d.touched)
}

// ready removes and returns the files quiet for at least the interval, in
// name order.
func (d *debouncer) ready(now time.Time) []string {
	var out []string
	for path, at := range d.touched {
		if now.Sub(at) >= d.quiet {
			out = append(out, path)
		}
	}
	for _, path := range out {
		delete(d.touched, path)
	}
	sort.Strings(out)
	return out
}
