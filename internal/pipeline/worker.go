package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/dgallion1/pdfocr/internal/archive"
	"github.com/dgallion1/pdfocr/internal/cache"
	"github.com/dgallion1/pdfocr/internal/doctree"
	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/dgallion1/pdfocr/internal/render"
)

// Deps are the collaborators shared by every worker.
type Deps struct {
	Rasterizer ocr.Rasterizer
	Engine     ocr.Engine
	Cache      *cache.Results   // optional
	Archive    archive.Sink     // optional
	Stats      ocr.PageRecorder // optional
}

// archiveFormats are uploaded for every finished job.
var archiveFormats = []string{"txt", "json"}

// Worker processes a single document job.
type Worker struct {
	deps        Deps
	log         *slog.Logger
	pageTimeout time.Duration
}

func NewWorker(deps Deps, log *slog.Logger, pageTimeout time.Duration) *Worker {
	return &Worker{
		deps:        deps,
		log:         log,
		pageTimeout: pageTimeout,
	}
}

// Process runs OCR for a job and moves it to a terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	data := job.FileData()
	opts := job.Options

	// Phase 1: Cache lookup
	job.SetStatus(StatusProcessing, "rasterizing")
	hash := cache.ContentHashHex(data)
	job.SetContentHash(hash)
	key := cache.Key(hash, opts.Config, opts.MaxPages)
	if res, ok := w.deps.Cache.Get(key); ok {
		log.Info("result cache hit", "pages", res.PageCount)
		job.SetResult(res, true)
		w.finish(ctx, job, res, log)
		return
	}

	// Phase 2: Rasterize and recognize pages.
	var opt []ocr.ProcessorOption
	opt = append(opt, ocr.WithLogger(log))
	if w.deps.Stats != nil {
		opt = append(opt, ocr.WithPageRecorder(w.deps.Stats))
	}
	p := ocr.NewProcessor(w.deps.Rasterizer, w.deps.Engine, opts.Config, opt...)

	res, err := p.Process(ctx, data, ocr.Options{
		MaxPages:        opts.MaxPages,
		Workers:         opts.Workers,
		PageTimeout:     w.pageTimeout,
		ContinueOnError: opts.ContinueOnError,
		OnStart: func(n int) {
			job.SetTotalPages(n)
			job.SetPhase("recognizing")
		},
		OnPage: func(_ int, err error) {
			job.IncrPagesProcessed(err != nil)
		},
	})
	if err != nil {
		stage := ocr.Stage(err)
		if stage == "" {
			stage = "processing"
		}
		log.Error("ocr failed", "stage", stage, "error", err)
		job.AddError(err.Error())
		job.ReleaseData()
		job.SetStatus(StatusFailed, stage)
		return
	}

	for _, page := range res.Failed {
		job.AddError(fmt.Sprintf("page %d: %s", page, doctree.Untag(page, res.Pages[page-1])))
	}
	w.deps.Cache.Add(key, res)
	job.SetResult(res, false)
	w.finish(ctx, job, res, log)
}

// finish archives the result when a sink is configured and sets the final
// status. An archive failure is recorded but does not fail the job.
func (w *Worker) finish(ctx context.Context, job *Job, res *ocr.Result, log *slog.Logger) {
	if w.deps.Archive != nil {
		job.SetStatus(StatusArchiving, "archiving")
		tree := doctree.FromPages(job.Title, res.Pages, res.Failed)
		for _, format := range archiveFormats {
			if err := w.archive(ctx, job.ID, format, tree, log); err != nil {
				log.Error("archive failed", "format", format, "error", err)
				job.AddError(fmt.Sprintf("archive %s: %s", format, err))
			}
		}
	}

	if len(res.Failed) > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "pages", res.PageCount, "failed_pages", len(res.Failed), "cached", job.Snapshot().Cached)
}

func (w *Worker) archive(ctx context.Context, jobID, format string, tree *doctree.DocTree, log *slog.Logger) error {
	r, err := render.ForFormat(format)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, tree); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	key := path.Join(jobID, "result"+r.Extension())
	return withRetry(ctx, func() error {
		return w.deps.Archive.Put(ctx, key, buf.Bytes(), r.ContentType())
	}, func(attempt int, err error) {
		log.Warn("retryable archive error", "key", key, "attempt", attempt, "error", err)
	})
}
