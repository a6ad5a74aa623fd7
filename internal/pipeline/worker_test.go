package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdfocr/internal/cache"
	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/dgallion1/pdfocr/internal/raster"
)

// stubRasterizer splits the document on "|" into one page per segment.
type stubRasterizer struct {
	err error
}

func (r *stubRasterizer) Rasterize(_ context.Context, doc []byte, _ int) ([]raster.Page, error) {
	if r.err != nil {
		return nil, r.err
	}
	var pages []raster.Page
	for i, part := range strings.Split(string(doc), "|") {
		pages = append(pages, raster.Page{Number: i + 1, Data: []byte(part), Format: "image/png"})
	}
	return pages, nil
}

// stubEngine upper-cases the page payload; payloads starting with "bad" fail.
type stubEngine struct {
	calls atomic.Int32
	delay time.Duration
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) RecognizeText(ctx context.Context, image []byte, _ ocr.Config) (string, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if strings.HasPrefix(string(image), "bad") {
		return "", errors.New("unreadable")
	}
	return strings.ToUpper(string(image)), nil
}

// memSink records archived objects and can fail a number of times first.
type memSink struct {
	mu       sync.Mutex
	failures int
	attempts int
	objects  map[string]string
	types    map[string]string
}

func (s *memSink) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("transient")
	}
	if s.objects == nil {
		s.objects = map[string]string{}
		s.types = map[string]string{}
	}
	s.objects[key] = string(data)
	s.types[key] = contentType
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fastBackoff(t *testing.T) {
	t.Helper()
	old := backoffUnit
	backoffUnit = time.Millisecond
	t.Cleanup(func() { backoffUnit = old })
}

func TestWorker_Completed(t *testing.T) {
	engine := &stubEngine{}
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: engine}, quietLogger(), 0)
	job := NewJob("doc.pdf", "Doc", []byte("one|two|three"), JobOptions{Config: ocr.DefaultConfig(), Workers: 2})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.Progress.TotalPages)
	assert.Equal(t, 3, snap.Progress.PagesProcessed)
	assert.Nil(t, job.FileData())
	res := job.Result()
	require.NotNil(t, res)
	assert.Equal(t, []string{
		"<page_1>\nONE\n</page_1>",
		"<page_2>\nTWO\n</page_2>",
		"<page_3>\nTHREE\n</page_3>",
	}, res.Pages)
	assert.NotEmpty(t, snap.Phase)
}

func TestWorker_MaxPages(t *testing.T) {
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: &stubEngine{}}, quietLogger(), 0)
	job := NewJob("doc.pdf", "", []byte("a|b|c|d"), JobOptions{MaxPages: 2})

	w.Process(context.Background(), job)

	require.NotNil(t, job.Result())
	assert.Equal(t, 2, job.Result().PageCount)
	assert.Equal(t, 2, job.Snapshot().Progress.TotalPages)
}

func TestWorker_RasterizeFailure(t *testing.T) {
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{err: errors.New("corrupt")}, Engine: &stubEngine{}}, quietLogger(), 0)
	job := NewJob("doc.pdf", "", []byte("x"), JobOptions{})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "rasterize", snap.Phase)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "corrupt")
	assert.Nil(t, job.Result())
	assert.Nil(t, job.FileData())
}

func TestWorker_PageFailureFailsJob(t *testing.T) {
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: &stubEngine{}}, quietLogger(), 0)
	job := NewJob("doc.pdf", "", []byte("ok|bad page|ok"), JobOptions{})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "recognize", snap.Phase)
	assert.Nil(t, job.Result())
}

func TestWorker_ContinueOnErrorIsPartial(t *testing.T) {
	c, err := cache.New(8)
	require.NoError(t, err)
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: &stubEngine{}, Cache: c}, quietLogger(), 0)
	job := NewJob("doc.pdf", "", []byte("ok|bad page|ok"), JobOptions{ContinueOnError: true})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusPartial, snap.Status)
	assert.Equal(t, 1, snap.Progress.PagesFailed)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Equal(t, "page 2: [ocr error: unreadable]", snap.Progress.Errors[0])
	assert.Equal(t, []int{2}, job.Result().Failed)
	assert.Equal(t, 0, c.Len(), "partial results are not cached")
}

func TestWorker_CacheHit(t *testing.T) {
	c, err := cache.New(8)
	require.NoError(t, err)
	engine := &stubEngine{}
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: engine, Cache: c}, quietLogger(), 0)

	first := NewJob("doc.pdf", "", []byte("a|b"), JobOptions{Config: ocr.DefaultConfig()})
	w.Process(context.Background(), first)
	require.Equal(t, int32(2), engine.calls.Load())

	second := NewJob("copy.pdf", "", []byte("a|b"), JobOptions{Config: ocr.DefaultConfig(), Workers: 7})
	w.Process(context.Background(), second)

	assert.Equal(t, int32(2), engine.calls.Load(), "cache hit must not recognize again")
	assert.Equal(t, StatusCompleted, second.Snapshot().Status)
	assert.True(t, second.Snapshot().Cached)
	assert.Equal(t, first.Result().Pages, second.Result().Pages)
	assert.Equal(t, first.ContentHash, second.ContentHash)

	// Different settings miss the cache.
	third := NewJob("doc.pdf", "", []byte("a|b"), JobOptions{Config: ocr.Config{Language: "deu", PageSegMode: 3, EngineMode: 1}})
	w.Process(context.Background(), third)
	assert.Equal(t, int32(4), engine.calls.Load())
	assert.False(t, third.Snapshot().Cached)
}

func TestWorker_ArchivesWithRetry(t *testing.T) {
	fastBackoff(t)
	sink := &memSink{failures: 2}
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: &stubEngine{}, Archive: sink}, quietLogger(), 0)
	job := NewJob("doc.pdf", "Doc", []byte("a|b"), JobOptions{})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Empty(t, snap.Progress.Errors)
	require.Len(t, sink.objects, 2)
	assert.Equal(t, "<page_1>\nA\n</page_1>\n<page_2>\nB\n</page_2>\n", sink.objects[job.ID+"/result.txt"])
	assert.Contains(t, sink.objects[job.ID+"/result.json"], `"page_count": 2`)
	assert.Equal(t, "application/json", sink.types[job.ID+"/result.json"])
}

func TestWorker_ArchiveFailureKeepsResult(t *testing.T) {
	fastBackoff(t)
	sink := &memSink{failures: 100}
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: &stubEngine{}, Archive: sink}, quietLogger(), 0)
	job := NewJob("doc.pdf", "", []byte("a"), JobOptions{})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Len(t, snap.Progress.Errors, 2)
	assert.Equal(t, 2*MaxRetries, sink.attempts)
	assert.NotNil(t, job.Result())
}

func TestWorker_PageTimeout(t *testing.T) {
	w := NewWorker(Deps{Rasterizer: &stubRasterizer{}, Engine: &stubEngine{delay: time.Second}}, quietLogger(), 20*time.Millisecond)
	job := NewJob("doc.pdf", "", []byte("a|b"), JobOptions{ContinueOnError: true})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusPartial, snap.Status)
	assert.Equal(t, 2, snap.Progress.PagesFailed)
}
