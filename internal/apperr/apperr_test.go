package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("tesseract exploded")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"input", Input("file %q missing", "a.png"), KindInput},
		{"input cause", InputCause(cause, "bad image"), KindInput},
		{"recognition", Recognition(cause, "ocr failed"), KindRecognition},
		{"config", Config(cause, "bad scale"), KindConfig},
		{"wrapped", fmt.Errorf("outer: %w", Input("no image selected")), KindInput},
		{"plain", cause, KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Recognition(cause, "ocr failed")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Error() != "ocr failed: boom" {
		t.Errorf("Error(): got %q", err.Error())
	}
}

func TestError_NoCause(t *testing.T) {
	err := Input("no image selected")
	if err.Error() != "no image selected" {
		t.Errorf("Error(): got %q", err.Error())
	}
	if !IsInput(err) {
		t.Error("IsInput should be true")
	}
}
