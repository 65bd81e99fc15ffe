package ocr

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ironsheep/snapsum/internal/logging"
)

// Engine recognizes text in an image file.
type Engine interface {
	// Predict runs recognition on the image at imagePath. Each returned
	// element is one result in any shape RecTexts understands.
	Predict(imagePath string) ([]any, error)

	// Close releases the engine. The engine must not be used afterwards.
	Close() error
}

// Prediction is the result shape produced by the built-in engines.
type Prediction struct {
	InputPath string    `json:"input_path,omitempty"`
	RecTexts  []string  `json:"rec_texts"`
	RecScores []float64 `json:"rec_scores,omitempty"`
}

type recTexter interface {
	RecTexts() []string
}

// RecTexts flattens the recognized texts of every result, in order.
// Results of an unknown shape contribute nothing.
func RecTexts(results []any) []string {
	texts := make([]string, 0)
	for i, r := range results {
		t, ok := recTextsOf(r)
		if !ok {
			logging.For("ocr").WithField("index", i).
				Warnf("skipping OCR result of unsupported type %T", r)
			continue
		}
		texts = append(texts, t...)
	}
	return texts
}

func recTextsOf(r any) ([]string, bool) {
	switch v := r.(type) {
	case recTexter:
		return v.RecTexts(), true
	case Prediction:
		return v.RecTexts, true
	case *Prediction:
		if v == nil {
			return nil, false
		}
		return v.RecTexts, true
	case map[string]any:
		return mapTexts(v["rec_texts"])
	}
	return nil, false
}

func mapTexts(raw any) ([]string, bool) {
	switch t := raw.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// DecodePredictions reads a JSON document holding either a single result
// object or an array of them. Each element is returned as map[string]any so
// that RecTexts treats it like any other map-shaped result.
func DecodePredictions(r io.Reader) ([]any, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode OCR results: %w", err)
	}

	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err == nil {
		out := make([]any, len(many))
		for i, m := range many {
			out[i] = m
		}
		return out, nil
	}

	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("OCR results must be an object or an array of objects: %w", err)
	}
	return []any{one}, nil
}
