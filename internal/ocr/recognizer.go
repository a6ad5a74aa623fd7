package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Recognizer reads a single page with a fixed Config.
type Recognizer struct {
	engine Engine
	cfg    Config
}

func NewRecognizer(engine Engine, cfg Config) *Recognizer {
	return &Recognizer{engine: engine, cfg: cfg}
}

// Config returns a copy of the recognizer's settings.
func (r *Recognizer) Config() Config {
	return r.cfg
}

// Recognize runs the engine on image and returns the normalized text wrapped
// in <page_N> markers. index is 1-based. A trailing page break (form feed)
// in the engine output is dropped.
func (r *Recognizer) Recognize(ctx context.Context, index int, image []byte) (string, error) {
	raw, err := r.engine.RecognizeText(ctx, image, r.cfg)
	if err != nil {
		return "", &PageError{Page: index, Err: err}
	}
	return Tag(index, Normalize(strings.TrimRight(raw, "\f"))), nil
}

// Tag wraps text in the page delimiters used by every output.
func Tag(index int, text string) string {
	return fmt.Sprintf("<page_%d>\n%s\n</page_%d>", index, text, index)
}

// errorMarker is the page body substituted for a failed page when partial
// results are requested.
func errorMarker(err error) string {
	return fmt.Sprintf("[ocr error: %v]", err)
}
