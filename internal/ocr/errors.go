package ocr

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned when Process is called with options it cannot
// honour, such as a negative page limit.
var ErrInvalidOptions = errors.New("invalid process options")

// DocumentError reports that the document could not be rasterized. No page
// was recognized.
type DocumentError struct {
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("rasterize document: %v", e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// PageError reports a recognition failure for a single 1-based page.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("recognize page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Stage names the pipeline stage an error came from: "rasterize",
// "recognize" or "" for anything else.
func Stage(err error) string {
	var docErr *DocumentError
	if errors.As(err, &docErr) {
		return "rasterize"
	}
	var pageErr *PageError
	if errors.As(err, &pageErr) {
		return "recognize"
	}
	return ""
}
