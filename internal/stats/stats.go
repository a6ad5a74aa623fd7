// Package stats aggregates page recognition outcomes per engine over a
// rolling time window.
package stats

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Pages records page recognitions. It satisfies ocr.PageRecorder.
type Pages struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	engines map[string][]page
}

type page struct {
	at      time.Time
	elapsed time.Duration
	failed  bool
}

// Summary describes the pages recognized within the window.
type Summary struct {
	Pages          int     `json:"pages"`
	Failed         int     `json:"failed"`
	PagesPerMinute float64 `json:"pages_per_minute"`
	// Latency covers successful pages only.
	Latency Latency `json:"latency_ms"`
}

// Latency holds page recognition times in milliseconds.
type Latency struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

// Report is the whole window: totals plus one Summary per engine.
type Report struct {
	Window string `json:"window"`
	Summary
	Engines map[string]Summary `json:"engines"`
}

// NewPages keeps samples for window (one hour when window <= 0).
func NewPages(window time.Duration) *Pages {
	if window <= 0 {
		window = time.Hour
	}
	return &Pages{
		window:  window,
		now:     time.Now,
		engines: map[string][]page{},
	}
}

// RecordPage adds one page recognized by engine. A non-nil err marks the
// page failed.
func (p *Pages) RecordPage(engine string, elapsed time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.expireLocked(now)
	p.engines[engine] = append(p.engines[engine], page{
		at:      now,
		elapsed: max(elapsed, 0),
		failed:  err != nil,
	})
}

// Report summarizes the pages still inside the window.
func (p *Pages) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expireLocked(p.now())
	rep := Report{
		Window:  p.window.String(),
		Engines: make(map[string]Summary, len(p.engines)),
	}
	var all []page
	for name, pages := range p.engines {
		rep.Engines[name] = p.summarize(pages)
		all = append(all, pages...)
	}
	rep.Summary = p.summarize(all)
	return rep
}

// expireLocked drops samples older than the window. Samples are appended in
// time order, so each engine's slice is trimmed from the front.
func (p *Pages) expireLocked(now time.Time) {
	cutoff := now.Add(-p.window)
	for name, pages := range p.engines {
		keep := slices.IndexFunc(pages, func(pg page) bool { return !pg.at.Before(cutoff) })
		switch keep {
		case -1:
			delete(p.engines, name)
		case 0:
		default:
			p.engines[name] = append(pages[:0], pages[keep:]...)
		}
	}
}

func (p *Pages) summarize(pages []page) Summary {
	s := Summary{
		Pages:          len(pages),
		PagesPerMinute: float64(len(pages)) / p.window.Minutes(),
	}
	ok := make([]time.Duration, 0, len(pages))
	for _, pg := range pages {
		if pg.failed {
			s.Failed++
			continue
		}
		ok = append(ok, pg.elapsed)
	}
	if len(ok) == 0 {
		return s
	}
	slices.Sort(ok)

	var total time.Duration
	for _, d := range ok {
		total += d
	}
	s.Latency = Latency{
		Min:  ms(ok[0]),
		Max:  ms(ok[len(ok)-1]),
		Mean: ms(total) / float64(len(ok)),
		P50:  ms(nearestRank(ok, 50)),
		P95:  ms(nearestRank(ok, 95)),
		P99:  ms(nearestRank(ok, 99)),
	}
	return s
}

// nearestRank returns the smallest sample with at least pct percent of the
// samples at or below it. sorted must be non-empty and ascending.
func nearestRank(sorted []time.Duration, pct float64) time.Duration {
	rank := int(math.Ceil(pct * float64(len(sorted)) / 100))
	return sorted[min(max(rank, 1), len(sorted))-1]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
