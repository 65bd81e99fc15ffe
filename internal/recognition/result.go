package recognition

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/numeric"
)

// Request asks for one image to be recognized.
type Request struct {
	// ID correlates the Result with the request. A UUID is assigned when empty.
	ID string

	// ImagePath is the image handed to the engine.
	ImagePath string

	// Temporary marks ImagePath as a scratch file owned by the worker once
	// the request is queued. It is deleted when recognition finishes,
	// whether it succeeded or not. A request that could not be queued
	// leaves the file with the caller.
	Temporary bool
}

// Result is the outcome of one Request.
type Result struct {
	ID        string
	ImagePath string
	Success   bool
	Numbers   []string
	Total     float64
	Elapsed   time.Duration

	// Err is set when Success is false.
	Err error
}

// ErrorMessage returns the failure message, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Kind classifies a failed result.
func (r Result) Kind() apperr.Kind {
	if r.Err == nil {
		return ""
	}
	return apperr.KindOf(r.Err)
}

// Status is the one-line message shown after recognition.
func (r Result) Status() string {
	if !r.Success {
		return fmt.Sprintf("Recognition failed: %s", r.ErrorMessage())
	}
	return fmt.Sprintf("Recognition finished in %.2f s, total: %s",
		r.Elapsed.Seconds(), numeric.FormatTotal(r.Total))
}

type successJSON struct {
	ID          string   `json:"id"`
	ImagePath   string   `json:"image_path,omitempty"`
	Success     bool     `json:"success"`
	Numbers     []string `json:"numbers"`
	Total       float64  `json:"total"`
	ElapsedTime float64  `json:"elapsed_time"`
}

type failureJSON struct {
	ID        string `json:"id"`
	ImagePath string `json:"image_path,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
}

// MarshalJSON writes the success form {success, numbers, total, elapsed_time}
// or the failure form {success, error, kind}, both with id and image_path.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureJSON{
			ID:        r.ID,
			ImagePath: r.ImagePath,
			Error:     r.ErrorMessage(),
			Kind:      string(r.Kind()),
		})
	}

	numbers := r.Numbers
	if numbers == nil {
		numbers = []string{}
	}
	return json.Marshal(successJSON{
		ID:          r.ID,
		ImagePath:   r.ImagePath,
		Success:     true,
		Numbers:     numbers,
		Total:       r.Total,
		ElapsedTime: r.Elapsed.Seconds(),
	})
}
