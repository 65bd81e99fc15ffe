package watch

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/snapsum/internal/recognition"
)

type fakeRecognizer struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, req recognition.Request) (recognition.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return recognition.Result{}, f.err
	}
	f.paths = append(f.paths, req.ImagePath)
	return recognition.Result{ID: "r", ImagePath: req.ImagePath, Success: true, Numbers: []string{"1"}, Total: 1}, nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.Black)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

// startWatcher runs w until the test ends and returns the result stream.
func startWatcher(t *testing.T, w *Watcher) <-chan recognition.Result {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan recognition.Result, 16)
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx, func(res recognition.Result) { results <- res })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not stop after cancel")
		}
	})
	return results
}

func waitResult(t *testing.T, results <-chan recognition.Result) recognition.Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a result")
	}
	return recognition.Result{}
}

func TestDebouncer_Ready(t *testing.T) {
	d := newDebouncer(100 * time.Millisecond)
	base := time.Now()

	d.touch("/in/b.png", base)
	d.touch("/in/a.png", base)
	d.touch("/in/c.png", base.Add(80*time.Millisecond))

	if got := d.ready(base.Add(50 * time.Millisecond)); len(got) != 0 {
		t.Errorf("nothing should be ready yet, got %v", got)
	}

	got := d.ready(base.Add(100 * time.Millisecond))
	want := []string{"/in/a.png", "/in/b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ready: got %v, want %v", got, want)
	}
	if d.len() != 1 {
		t.Errorf("pending: got %d, want 1", d.len())
	}
}

func TestDebouncer_TouchRestartsInterval(t *testing.T) {
	d := newDebouncer(100 * time.Millisecond)
	base := time.Now()

	d.touch("/in/a.png", base)
	d.touch("/in/a.png", base.Add(90*time.Millisecond))

	if got := d.ready(base.Add(150 * time.Millisecond)); len(got) != 0 {
		t.Errorf("a write should restart the quiet interval, got %v", got)
	}
	if got := d.ready(base.Add(190 * time.Millisecond)); len(got) != 1 {
		t.Errorf("ready after quiet interval: got %v", got)
	}
}

func TestDebouncer_Remove(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	base := time.Now()

	d.touch("/in/a.png", base)
	d.remove("/in/a.png")

	if got := d.ready(base.Add(time.Second)); len(got) != 0 {
		t.Errorf("removed file should not be ready, got %v", got)
	}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"/in/receipt.png", true},
		{"/in/RECEIPT.JPG", true},
		{"/in/notes.txt", false},
		{"/in/.hidden.png", false},
		{"/in/noext", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accept(tt.name); got != tt.want {
				t.Errorf("accept(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("1"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub.png"), 0o755)

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := ListImages(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestWatcher_NewImage(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecognizer{}
	results := startWatcher(t, New(dir, rec, Options{Debounce: 50 * time.Millisecond}))

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("42"), 0o644)
	path := filepath.Join(dir, "receipt.png")
	writePNG(t, path)

	res := waitResult(t, results)
	if res.ImagePath != path {
		t.Errorf("path: got %s, want %s", res.ImagePath, path)
	}

	select {
	case extra := <-results:
		t.Errorf("unexpected extra result for %s", extra.ImagePath)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_Existing(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))

	rec := &fakeRecognizer{}
	results := startWatcher(t, New(dir, rec, Options{Debounce: 50 * time.Millisecond, Existing: true}))

	first := waitResult(t, results)
	second := waitResult(t, results)
	if filepath.Base(first.ImagePath) != "a.png" || filepath.Base(second.ImagePath) != "b.png" {
		t.Errorf("order: got %s, %s", first.ImagePath, second.ImagePath)
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), &fakeRecognizer{}, Options{})

	if err := w.Run(context.Background(), func(recognition.Result) {}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestWatcher_RecognizerClosed(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))

	w := New(dir, &fakeRecognizer{err: recognition.ErrClosed}, Options{Existing: true})
	err := w.Run(context.Background(), func(recognition.Result) {})
	if err != recognition.ErrClosed {
		t.Errorf("err: got %v, want ErrClosed", err)
	}
}

func TestNew_DefaultDebounce(t *testing.T) {
	w := New(".", &fakeRecognizer{}, Options{})
	if w.opts.Debounce != DefaultDebounce {
		t.Errorf("debounce: got %v, want %v", w.opts.Debounce, DefaultDebounce)
	}
}
