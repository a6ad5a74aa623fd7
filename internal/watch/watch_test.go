package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/dgallion1/pdfocr/internal/render"
)

// pageProcessor returns one page holding the document bytes.
type pageProcessor struct {
	calls atomic.Int32
	err   error
}

func (p *pageProcessor) Process(_ context.Context, doc []byte, _ ocr.Options) (*ocr.Result, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &ocr.Result{Pages: []string{ocr.Tag(1, string(doc))}, PageCount: 1}, nil
}

func newFolder(t *testing.T, proc Processor) *Folder {
	t.Helper()
	f := New(t.TempDir(), proc, ocr.Options{}, slog.New(slog.DiscardHandler))
	f.Settle = 20 * time.Millisecond
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestOutputPath(t *testing.T) {
	f := New("/in", &pageProcessor{}, ocr.Options{}, slog.New(slog.DiscardHandler))
	assert.Equal(t, "/in/scan.txt", f.OutputPath("/in/scan.pdf"))
	f.Renderer = &render.MarkdownRenderer{}
	assert.Equal(t, "/in/scan.md", f.OutputPath("/in/scan.PDF"))
}

func TestProcessFile(t *testing.T) {
	f := newFolder(t, &pageProcessor{})
	doc := filepath.Join(f.Dir, "invoice.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("total 42"), 0o644))

	require.NoError(t, f.ProcessFile(context.Background(), doc))
	assert.Equal(t, "<page_1>\ntotal 42\n</page_1>\n", readFile(t, filepath.Join(f.Dir, "invoice.txt")))

	leftovers, err := filepath.Glob(filepath.Join(f.Dir, ".pdfocr-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestProcessFile_ErrorWritesNothing(t *testing.T) {
	f := newFolder(t, &pageProcessor{err: errors.New("rasterize failed")})
	doc := filepath.Join(f.Dir, "broken.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("x"), 0o644))

	assert.Error(t, f.ProcessFile(context.Background(), doc))
	assert.NoFileExists(t, filepath.Join(f.Dir, "broken.txt"))
}

func TestRun_ExistingAndNewFiles(t *testing.T) {
	proc := &pageProcessor{}
	f := newFolder(t, proc)

	// Already processed: must be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(f.Dir, "done.pdf"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.Dir, "done.txt"), []byte("kept"), 0o644))
	// Waiting: processed at startup.
	require.NoError(t, os.WriteFile(filepath.Join(f.Dir, "waiting.png"), []byte("queued"), 0o644))
	// Ignored type.
	require.NoError(t, os.WriteFile(filepath.Join(f.Dir, "notes.md"), []byte("skip"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	waiting := filepath.Join(f.Dir, "waiting.txt")
	require.Eventually(t, func() bool {
		_, err := os.Stat(waiting)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(f.Dir, "new.pdf"), []byte("fresh"), 0o644))
	fresh := filepath.Join(f.Dir, "new.txt")
	require.Eventually(t, func() bool {
		_, err := os.Stat(fresh)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, "kept", readFile(t, filepath.Join(f.Dir, "done.txt")))
	assert.Equal(t, "<page_1>\nfresh\n</page_1>\n", readFile(t, fresh))
	assert.NoFileExists(t, filepath.Join(f.Dir, "notes.txt"))
	assert.GreaterOrEqual(t, proc.calls.Load(), int32(2))
}

func TestRun_MissingDir(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "absent"), &pageProcessor{}, ocr.Options{}, slog.New(slog.DiscardHandler))
	assert.Error(t, f.Run(context.Background()))
}

func TestSettler_EventAfterFireIsProcessedOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSettler(5 * time.Millisecond)
	defer s.stop()

	s.touch(ctx, "scan.pdf")
	// Nobody reads ready, so the fired timer stays blocked on delivery,
	// as it does while the loop is busy recognizing another file.
	time.Sleep(30 * time.Millisecond)
	s.touch(ctx, "scan.pdf")

	claimed := 0
	for range 2 {
		select {
		case p := <-s.ready:
			if s.claim(p) {
				claimed++
			}
		case <-time.After(time.Second):
			t.Fatal("expected a delivery")
		}
	}
	assert.Equal(t, 1, claimed)

	select {
	case p := <-s.ready:
		t.Fatalf("unexpected extra delivery for %s", p.name)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, s.pending)
}

func TestSettler_RestartsPendingTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSettler(40 * time.Millisecond)
	defer s.stop()

	start := time.Now()
	s.touch(ctx, "a.pdf")
	time.Sleep(20 * time.Millisecond)
	s.touch(ctx, "a.pdf")

	p := <-s.ready
	assert.True(t, s.claim(p))
	assert.Equal(t, "a.pdf", p.name)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
