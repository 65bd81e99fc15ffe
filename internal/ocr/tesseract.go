package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/snapsum/internal/logging"
)

// Granularity selects what one recognized token is.
//
// Word granularity suits receipts and columns of figures where each number is
// its own word. Line granularity keeps "1 234.50" together as one token, which
// the digit filter then rejects, so it is mainly useful with signed-number
// parsing of whole lines.
type Granularity string

const (
	// GranularityWord yields one token per word.
	GranularityWord Granularity = "word"

	// GranularityLine yields one token per text line.
	GranularityLine Granularity = "line"
)

// TesseractOptions configures a Tesseract engine.
type TesseractOptions struct {
	// Language is a Tesseract language code, or several joined by "+".
	// Defaults to "eng".
	Language string

	// TessdataPrefix points at a directory of .traineddata files. Empty uses
	// the system installation.
	TessdataPrefix string

	// Whitelist restricts the characters Tesseract may emit. Empty allows all.
	Whitelist string

	// PageSegMode is a Tesseract page segmentation mode (0-13). Zero keeps the
	// library default.
	PageSegMode int

	// Granularity defaults to GranularityWord.
	Granularity Granularity
}

// Tesseract is an Engine backed by a single long-lived gosseract client.
//
// A Tesseract is not safe for concurrent use. The recognition worker owns one
// and calls it from a single goroutine; loading the language model is the
// expensive part, so the client is created once and reused for every image.
type Tesseract struct {
	client *gosseract.Client
	level  gosseract.PageIteratorLevel
}

// NewTesseract creates a Tesseract client and applies opts.
//
// Parameters:
//   - opts: Language, tessdata location, character whitelist, page
//     segmentation mode and token granularity. The zero value recognizes
//     English words with the system language data.
//
// Returns:
//   - *Tesseract: A ready engine. Call Close when done.
//   - error: Non-nil if the granularity is unknown, the page segmentation mode
//     is outside 0-13, or Tesseract rejects the language data, whitelist or
//     mode. The client is released before returning an error.
//
// # Language Data
//
// Language codes are joined with "+" (e.g., "eng+deu"). The corresponding
// .traineddata files must exist under TessdataPrefix, or in the system
// installation when the prefix is empty.
func NewTesseract(opts TesseractOptions) (*Tesseract, error) {
	level, err := iteratorLevel(opts.Granularity)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	if opts.PageSegMode != 0 {
		if opts.PageSegMode < 0 || opts.PageSegMode > 13 {
			client.Close()
			return nil, fmt.Errorf("page segmentation mode %d out of range 0-13", opts.PageSegMode)
		}
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}

	logging.For("ocr").WithFields(logrus.Fields{
		"language":    lang,
		"granularity": opts.Granularity,
		"psm":         opts.PageSegMode,
		"version":     client.Version(),
	}).Debug("tesseract client ready")

	return &Tesseract{client: client, level: level}, nil
}

func iteratorLevel(g Granularity) (gosseract.PageIteratorLevel, error) {
	switch g {
	case "", GranularityWord:
		return gosseract.RIL_WORD, nil
	case GranularityLine:
		return gosseract.RIL_TEXTLINE, nil
	}
	return 0, fmt.Errorf("unknown OCR granularity %q (want word or line)", g)
}

// Predict performs OCR on an image file.
//
// Parameters:
//   - imagePath: Path to the image file. Supports PNG, JPEG, TIFF, BMP.
//
// Returns:
//   - []any: A single *Prediction whose RecTexts are the non-empty tokens in
//     reading order and whose RecScores are their confidences (0.0 to 1.0).
//   - error: Non-nil if the image cannot be loaded or OCR fails.
//
// # Error Handling
//
// If bounding box extraction fails (which can happen with some Tesseract
// configurations), the plain text is split into lines instead. RecTexts then
// holds one token per non-blank line and RecScores is left empty.
func (t *Tesseract) Predict(imagePath string) ([]any, error) {
	if err := t.client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	pred := &Prediction{
		InputPath: imagePath,
		RecTexts:  []string{},
	}

	boxes, err := t.client.GetBoundingBoxes(t.level)
	if err != nil {
		logging.For("ocr").WithError(err).Debug("bounding boxes unavailable, using plain text")

		text, err := t.client.Text()
		if err != nil {
			return nil, fmt.Errorf("OCR failed: %w", err)
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				pred.RecTexts = append(pred.RecTexts, line)
			}
		}
		return []any{pred}, nil
	}

	pred.RecScores = make([]float64, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		pred.RecTexts = append(pred.RecTexts, word)
		pred.RecScores = append(pred.RecScores, box.Confidence/100.0)
	}

	return []any{pred}, nil
}

// Close releases the underlying client. Calling it again, or calling Version
// afterwards, is harmless.
func (t *Tesseract) Close() error {
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Version reports the linked Tesseract library version (e.g., "5.3.0"), or an
// empty string once the engine is closed.
func (t *Tesseract) Version() string {
	if t.client == nil {
		return ""
	}
	return t.client.Version()
}
