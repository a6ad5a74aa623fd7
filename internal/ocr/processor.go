package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options control a single Process call.
type Options struct {
	// MaxPages limits processing to the first MaxPages pages. Zero means no
	// limit; negative values are rejected.
	MaxPages int
	// Workers caps concurrent page recognitions. Values <= 0 use DefaultWorkers.
	Workers int
	// PageTimeout bounds each page recognition. Zero means no deadline.
	PageTimeout time.Duration
	// ContinueOnError replaces a failed page's text with an error marker
	// instead of failing the whole document.
	ContinueOnError bool
	// OnStart is called once with the number of pages about to be recognized.
	OnStart func(pageCount int)
	// OnPage is called once per finished page (successful or not) from the
	// worker goroutine that handled it.
	OnPage func(page int, err error)
}

// Result is the ordered output of one Process call.
// len(Pages) == PageCount and Pages[i] belongs to page i+1.
type Result struct {
	Pages     []string `json:"pages"`
	PageCount int      `json:"page_count"`
	// Failed lists 1-based pages replaced by an error marker. Only set when
	// Options.ContinueOnError is used.
	Failed []int `json:"failed,omitempty"`
}

// Processor rasterizes documents and recognizes their pages in parallel.
// It holds no per-call state and is safe for concurrent use.
type Processor struct {
	rasterizer Rasterizer
	recognizer *Recognizer
	log        *slog.Logger
	recorder   PageRecorder
}

// ProcessorOption configures optional collaborators.
type ProcessorOption func(*Processor)

// WithLogger sets the processor's logger.
func WithLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.log = log }
}

// WithPageRecorder reports every page recognition to rec.
func WithPageRecorder(rec PageRecorder) ProcessorOption {
	return func(p *Processor) { p.recorder = rec }
}

func NewProcessor(rasterizer Rasterizer, engine Engine, cfg Config, opts ...ProcessorOption) *Processor {
	p := &Processor{
		rasterizer: rasterizer,
		recognizer: NewRecognizer(engine, cfg),
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the recognition settings shared by every page.
func (p *Processor) Config() Config {
	return p.recognizer.Config()
}

// Process converts doc into per-page tagged text.
//
// A rasterization failure returns a *DocumentError. A page failure returns a
// *PageError and no pages, unless opts.ContinueOnError is set. In every case
// Process waits for in-flight recognitions before returning.
func (p *Processor) Process(ctx context.Context, doc []byte, opts Options) (*Result, error) {
	if opts.MaxPages < 0 {
		return nil, fmt.Errorf("%w: max pages %d", ErrInvalidOptions, opts.MaxPages)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	start := time.Now()
	pages, err := p.rasterizer.Rasterize(ctx, doc, opts.MaxPages)
	if err != nil {
		return nil, &DocumentError{Err: err}
	}
	if opts.MaxPages > 0 && len(pages) > opts.MaxPages {
		pages = pages[:opts.MaxPages]
	}
	pageCount := len(pages)
	p.log.Debug("rasterized document", "pages", pageCount, "duration_ms", time.Since(start).Milliseconds())

	if opts.OnStart != nil {
		opts.OnStart(pageCount)
	}

	texts := make([]string, pageCount)
	failed := make([]bool, pageCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range pages {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			index := i + 1
			text, err := p.recognizePage(gctx, index, pages[i].Data, opts.PageTimeout)
			if opts.OnPage != nil {
				opts.OnPage(index, err)
			}
			if err != nil {
				if !opts.ContinueOnError || ctx.Err() != nil {
					return err
				}
				p.log.Warn("page failed, continuing", "page", index, "error", err)
				var pageErr *PageError
				if errors.As(err, &pageErr) {
					err = pageErr.Err
				}
				texts[i] = Tag(index, errorMarker(err))
				failed[i] = true
				return nil
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The loop may stop dispatching because the caller's context ended while
	// every started task still succeeded.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Pages: texts, PageCount: pageCount}
	for i, f := range failed {
		if f {
			res.Failed = append(res.Failed, i+1)
		}
	}
	p.log.Info("document processed",
		"pages", pageCount,
		"failed", len(res.Failed),
		"workers", workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) recognizePage(ctx context.Context, index int, image []byte, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := p.recognizer.Recognize(ctx, index, image)
	elapsed := time.Since(start)
	if p.recorder != nil {
		p.recorder.RecordPage(p.recognizer.engine.Name(), elapsed, err)
	}
	p.log.Debug("page recognized", "page", index, "duration_ms", elapsed.Milliseconds(), "error", err)
	return text, err
}
