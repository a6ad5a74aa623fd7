package raster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

const DefaultDPI = 200

// PDF renders PDF documents with poppler's pdftoppm.
type PDF struct {
	Tool string // pdftoppm executable, resolved through PATH when relative
	DPI  int
}

func NewPDF(tool string, dpi int) *PDF {
	if tool == "" {
		tool = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PDF{Tool: tool, DPI: dpi}
}

// Rasterize renders every page of doc, or the first limit pages when limit is
// positive, as PNG images in page order.
func (r *PDF) Rasterize(ctx context.Context, doc []byte, limit int) ([]Page, error) {
	// A failed inspection is not fatal: pdftoppm is more lenient than the Go
	// parser and reports its own errors.
	if n, err := CountPages(doc); err == nil && n == 0 {
		return nil, ErrEmpty
	}

	// pdftoppm needs a seekable file, so the document goes to a temp dir.
	dir, err := os.MkdirTemp("", "pdfocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, doc, 0o600); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	args := []string{"-png", "-r", strconv.Itoa(r.DPI)}
	if limit > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(limit))
	}
	args = append(args, input, prefix)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Tool, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrEmpty
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumberFromName(matches[i]) < pageNumberFromName(matches[j])
	})

	pages := make([]Page, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, Page{
			Number: pageNumberFromName(path),
			Data:   data,
			Format: "image/png",
		})
	}
	return pages, nil
}

// CountPages parses doc and returns its page count.
func CountPages(doc []byte) (n int, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed inputs.
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("inspect pdf: %v", r)
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return 0, fmt.Errorf("inspect pdf: %w", err)
	}
	return reader.NumPage(), nil
}

// pageNumberFromName parses "page-07.png" style names produced by pdftoppm,
// which zero-pads the number to the width of the last page.
func pageNumberFromName(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
