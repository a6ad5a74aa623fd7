package raster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Page is one rendered page image.
type Page struct {
	Number int    // 1-based physical page number
	Data   []byte // encoded image bytes
	Format string // MIME type of Data, e.g. image/png
}

// ErrUnsupported is returned for documents no rasterizer can handle.
var ErrUnsupported = errors.New("unsupported document type")

// ErrEmpty is returned when a document renders to zero pages.
var ErrEmpty = errors.New("document has no pages")

// SupportedTypes lists the MIME types accepted by Auto.
var SupportedTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/tiff":      true,
}

// DetectType sniffs the MIME type of doc.
func DetectType(doc []byte) string {
	return mimetype.Detect(doc).String()
}

// IsSupported reports whether doc's sniffed type can be rasterized.
func IsSupported(doc []byte) bool {
	return SupportedTypes[baseType(DetectType(doc))]
}

// Auto dispatches on the sniffed content type: PDFs go to PDF, single images
// are passed through as a one-page document.
type Auto struct {
	PDF *PDF
}

func NewAuto(pdf *PDF) *Auto {
	return &Auto{PDF: pdf}
}

func (a *Auto) Rasterize(ctx context.Context, doc []byte, limit int) ([]Page, error) {
	if len(doc) == 0 {
		return nil, ErrEmpty
	}
	mt := baseType(DetectType(doc))
	switch mt {
	case "application/pdf":
		return a.PDF.Rasterize(ctx, doc, limit)
	case "image/png", "image/jpeg", "image/tiff":
		return []Page{{Number: 1, Data: doc, Format: mt}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mt)
	}
}

// baseType strips MIME parameters such as "; charset=utf-8".
func baseType(mt string) string {
	base, _, _ := strings.Cut(mt, ";")
	return strings.TrimSpace(base)
}
