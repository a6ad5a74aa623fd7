package ocr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/pdfocr/internal/raster"
)

// fakeEngine returns canned text per image payload and tracks concurrency.
type fakeEngine struct {
	texts  map[string]string
	errs   map[string]error
	delays map[string]time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32

	mu  sync.Mutex
	cfg Config
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) RecognizeText(ctx context.Context, image []byte, cfg Config) (string, error) {
	e.calls.Add(1)
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		old := e.maxActive.Load()
		if n <= old || e.maxActive.CompareAndSwap(old, n) {
			break
		}
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	key := string(image)
	if d := e.delays[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := e.errs[key]; err != nil {
		return "", err
	}
	return e.texts[key], nil
}

func (e *fakeEngine) lastConfig() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// fakeRasterizer turns each payload into one page.
type fakeRasterizer struct {
	payloads []string
	err      error

	mu        sync.Mutex
	lastLimit int
}

func (r *fakeRasterizer) Rasterize(ctx context.Context, doc []byte, limit int) ([]raster.Page, error) {
	r.mu.Lock()
	r.lastLimit = limit
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	pages := make([]raster.Page, len(r.payloads))
	for i, p := range r.payloads {
		pages[i] = raster.Page{Number: i + 1, Data: []byte(p), Format: "image/png"}
	}
	return pages, nil
}

// payloads returns n distinct page payloads "p1".."pn".
func payloads(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i+1)
	}
	return out
}

type pageSink struct {
	n      atomic.Int32
	failed atomic.Int32

	mu      sync.Mutex
	engines map[string]int
}

func (s *pageSink) RecordPage(engine string, _ time.Duration, err error) {
	s.n.Add(1)
	if err != nil {
		s.failed.Add(1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engines == nil {
		s.engines = map[string]int{}
	}
	s.engines[engine]++
}
