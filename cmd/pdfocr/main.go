// Command pdfocr recognizes the text of a scanned PDF or image and prints it
// page by page. With -watch it keeps running and converts every document
// dropped into a folder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dgallion1/pdfocr/internal/config"
	"github.com/dgallion1/pdfocr/internal/doctree"
	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/dgallion1/pdfocr/internal/ocr/tesseract"
	"github.com/dgallion1/pdfocr/internal/raster"
	"github.com/dgallion1/pdfocr/internal/render"
	"github.com/dgallion1/pdfocr/internal/watch"
)

type options struct {
	ocr         ocr.Config
	maxPages    int
	workers     int
	engine      string
	tesseract   string
	pdftoppm    string
	dpi         int
	format      string
	output      string
	watchDir    string
	partial     bool
	pageTimeout time.Duration
	verbose     bool
}

func main() {
	opts, args, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, args, log); err != nil {
		log.Error("pdfocr failed", "stage", ocr.Stage(err), "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseFlags(argv []string) (options, []string, error) {
	cfg := config.Load()
	var opts options

	fs := flag.NewFlagSet("pdfocr", flag.ContinueOnError)
	fs.StringVar(&opts.ocr.Language, "lang", cfg.Language, "tesseract language(s), e.g. eng or eng+deu")
	fs.IntVar(&opts.ocr.PageSegMode, "psm", cfg.PageSegMode, "page segmentation mode (0-13)")
	fs.IntVar(&opts.ocr.EngineMode, "oem", cfg.EngineMode, "OCR engine mode (0-3)")
	fs.IntVar(&opts.maxPages, "max-pages", cfg.MaxPages, "process at most this many pages (0 = all)")
	fs.IntVar(&opts.workers, "workers", cfg.PageWorkers, "pages recognized concurrently")
	fs.StringVar(&opts.engine, "engine", cfg.Engine, "ocr engine ("+strings.Join(tesseract.Engines(), ", ")+")")
	fs.StringVar(&opts.tesseract, "tesseract", cfg.TesseractPath, "tesseract executable")
	fs.StringVar(&opts.pdftoppm, "pdftoppm", cfg.PdftoppmPath, "pdftoppm executable")
	fs.IntVar(&opts.dpi, "dpi", cfg.RasterDPI, "rasterization resolution")
	fs.StringVar(&opts.format, "format", "", "write a txt, md, html, docx or json export instead of the page report")
	fs.StringVar(&opts.output, "o", "", "output file (default stdout)")
	fs.StringVar(&opts.watchDir, "watch", "", "watch a folder and write <name>.txt next to each document")
	fs.BoolVar(&opts.partial, "partial", false, "keep going when a page fails and mark it in the output")
	fs.DurationVar(&opts.pageTimeout, "timeout", cfg.PageTimeout, "per-page recognition timeout (0 = none)")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: pdfocr [flags] <file.pdf>\n       pdfocr [flags] -watch <dir>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(argv); err != nil {
		return opts, nil, err
	}
	if err := opts.ocr.Validate(); err != nil {
		return opts, nil, err
	}
	if opts.maxPages < 0 {
		return opts, nil, fmt.Errorf("-max-pages must not be negative")
	}
	if !render.IsSupportedFormat(opts.format) {
		return opts, nil, fmt.Errorf("unsupported -format %q", opts.format)
	}
	if opts.watchDir == "" && fs.NArg() != 1 {
		fs.Usage()
		return opts, nil, fmt.Errorf("expected exactly one input file")
	}
	return opts, fs.Args(), nil
}

func run(ctx context.Context, opts options, args []string, log *slog.Logger) error {
	engine, err := tesseract.New(opts.engine, tesseract.Options{Path: opts.tesseract})
	if err != nil {
		return err
	}
	rasterizer := raster.NewAuto(raster.NewPDF(opts.pdftoppm, opts.dpi))
	proc := ocr.NewProcessor(rasterizer, engine, opts.ocr, ocr.WithLogger(log))
	procOpts := ocr.Options{
		MaxPages:        opts.maxPages,
		Workers:         opts.workers,
		PageTimeout:     opts.pageTimeout,
		ContinueOnError: opts.partial,
	}

	if opts.watchDir != "" {
		folder := watch.New(opts.watchDir, proc, procOpts, log)
		if opts.format != "" {
			if folder.Renderer, err = render.ForFormat(opts.format); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", opts.watchDir)
		return folder.Run(ctx)
	}

	input := args[0]
	doc, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := proc.Process(ctx, doc, procOpts)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var out io.Writer = os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if opts.format == "" {
		return writeReport(out, res, elapsed)
	}
	r, err := render.ForFormat(opts.format)
	if err != nil {
		return err
	}
	title := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return r.Render(out, doctree.FromPages(title, res.Pages, res.Failed))
}

// writeReport prints the page count, every tagged page, a separator and the
// elapsed time.
func writeReport(w io.Writer, res *ocr.Result, elapsed time.Duration) error {
	if _, err := fmt.Fprintf(w, "Total Pages: %d\n\n", res.PageCount); err != nil {
		return err
	}
	for _, page := range res.Pages {
		if _, err := fmt.Fprintln(w, page); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s\nTime taken: %.2f seconds\n", strings.Repeat("-", 100), elapsed.Seconds())
	return err
}
