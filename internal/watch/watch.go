// Package watch implements the hot-folder mode: documents dropped into a
// directory are recognized and the text is written next to them.
package watch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/pdfocr/internal/doctree"
	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/dgallion1/pdfocr/internal/render"
)

// DefaultSettle is how long a file must stay unchanged before it is read.
const DefaultSettle = 500 * time.Millisecond

// Extensions lists the file types picked up from the folder.
var Extensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// Processor is satisfied by *ocr.Processor.
type Processor interface {
	Process(ctx context.Context, doc []byte, opts ocr.Options) (*ocr.Result, error)
}

// Folder watches one directory.
type Folder struct {
	Dir      string
	Settle   time.Duration
	Options  ocr.Options
	Renderer render.Renderer

	proc Processor
	log  *slog.Logger
}

// New returns a Folder writing plain text output.
func New(dir string, proc Processor, opts ocr.Options, log *slog.Logger) *Folder {
	return &Folder{
		Dir:      dir,
		Settle:   DefaultSettle,
		Options:  opts,
		Renderer: &render.TextRenderer{},
		proc:     proc,
		log:      log,
	}
}

// OutputPath is where the result for a document is written.
func (f *Folder) OutputPath(doc string) string {
	return strings.TrimSuffix(doc, filepath.Ext(doc)) + f.Renderer.Extension()
}

// Run processes documents already in the folder that have no output yet,
// then handles new or rewritten documents until ctx is done.
func (f *Folder) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", f.Dir, err)
	}
	f.log.Info("watching folder", "dir", f.Dir)

	if err := f.processExisting(ctx); err != nil {
		return err
	}

	settle := newSettler(f.Settle)
	defer settle.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !Extensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			settle.touch(ctx, event.Name)

		case p := <-settle.ready:
			if !settle.claim(p) {
				continue
			}
			if err := f.ProcessFile(ctx, p.name); err != nil {
				f.log.Error("process file", "file", p.name, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Error("watch error", "error", err)
		}
	}
}

// pendingFile is a document waiting for its settle timer.
type pendingFile struct {
	name  string
	timer *time.Timer
}

// settler delays each file until no event has touched it for the settle
// period. It is owned by the Run loop and is not safe for concurrent use.
type settler struct {
	delay   time.Duration
	ready   chan *pendingFile
	pending map[string]*pendingFile
}

func newSettler(delay time.Duration) *settler {
	return &settler{
		delay:   delay,
		ready:   make(chan *pendingFile),
		pending: map[string]*pendingFile{},
	}
}

// touch starts or restarts the settle timer for name. A timer that already
// fired cannot be re-armed, so it is replaced and its delivery goes stale.
func (s *settler) touch(ctx context.Context, name string) {
	if p, ok := s.pending[name]; ok && p.timer.Stop() {
		p.timer.Reset(s.delay)
		return
	}
	p := &pendingFile{name: name}
	s.pending[name] = p
	p.timer = time.AfterFunc(s.delay, func() {
		select {
		case s.ready <- p:
		case <-ctx.Done():
		}
	})
}

// claim reports whether p is still the current timer for its file and, if
// so, forgets it.
func (s *settler) claim(p *pendingFile) bool {
	if s.pending[p.name] != p {
		return false
	}
	delete(s.pending, p.name)
	return true
}

func (s *settler) stop() {
	for _, p := range s.pending {
		p.timer.Stop()
	}
}

func (f *Folder) processExisting(ctx context.Context) error {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !Extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		doc := filepath.Join(f.Dir, e.Name())
		if _, err := os.Stat(f.OutputPath(doc)); err == nil {
			continue
		}
		if err := f.ProcessFile(ctx, doc); err != nil {
			f.log.Error("process file", "file", doc, "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// ProcessFile recognizes one document and writes its output file. The
// output is written to a temporary file and renamed into place.
func (f *Folder) ProcessFile(ctx context.Context, doc string) error {
	start := time.Now()
	data, err := os.ReadFile(doc)
	if err != nil {
		return err
	}
	res, err := f.proc.Process(ctx, data, f.Options)
	if err != nil {
		return err
	}

	title := strings.TrimSuffix(filepath.Base(doc), filepath.Ext(doc))
	var buf bytes.Buffer
	if err := f.Renderer.Render(&buf, doctree.FromPages(title, res.Pages, res.Failed)); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	out := f.OutputPath(doc)
	tmp, err := os.CreateTemp(filepath.Dir(out), ".pdfocr-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	f.log.Info("document written",
		"file", doc,
		"output", out,
		"pages", res.PageCount,
		"failed", len(res.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
