package ocr

import (
	"context"
	"time"

	"github.com/dgallion1/pdfocr/internal/raster"
)

// Engine turns one encoded page image into raw recognized text. Calls are
// synchronous and must be safe for concurrent use.
type Engine interface {
	Name() string
	RecognizeText(ctx context.Context, image []byte, cfg Config) (string, error)
}

// Rasterizer renders a document into page images in physical page order.
// limit is a hint: when positive, pages after limit may be skipped.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc []byte, limit int) ([]raster.Page, error)
}

// PageRecorder receives the outcome of each page recognition: the engine
// that ran it, its wall time and its error, if any.
type PageRecorder interface {
	RecordPage(engine string, elapsed time.Duration, err error)
}
