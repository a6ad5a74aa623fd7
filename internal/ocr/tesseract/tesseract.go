// Package tesseract provides ocr.Engine implementations backed by Tesseract.
// The default engine drives the tesseract binary; building with the
// "gosseract" tag adds an in-process engine using libtesseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/pdfocr/internal/ocr"
)

// Options configure engine construction.
type Options struct {
	// Path to the tesseract executable for the CLI engine.
	Path string
}

// Factory builds an engine from options.
type Factory func(Options) (ocr.Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"cli": func(o Options) (ocr.Engine, error) { return NewCLI(o.Path), nil },
	}
)

// Register makes an engine available to New under name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Engines lists registered engine names.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the engine registered under name. An empty name selects "cli".
func New(name string, opts Options) (ocr.Engine, error) {
	if name == "" {
		name = "cli"
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ocr engine %q (available: %s)", name, strings.Join(Engines(), ", "))
	}
	return f(opts)
}

// CLI runs one tesseract process per page, piping the image through stdin
// and reading text from stdout.
type CLI struct {
	path string
}

func NewCLI(path string) *CLI {
	if path == "" {
		path = "tesseract"
	}
	return &CLI{path: path}
}

func (e *CLI) Name() string { return "tesseract-cli" }

// RecognizeText implements ocr.Engine. The process is killed when ctx ends.
func (e *CLI) RecognizeText(ctx context.Context, image []byte, cfg ocr.Config) (string, error) {
	args := []string{"stdin", "stdout"}
	if cfg.Language != "" {
		args = append(args, "-l", cfg.Language)
	}
	args = append(args, strings.Fields(cfg.EngineArgs())...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return trimPageSeparator(stdout.String()), nil
}

// trimPageSeparator drops the form feed tesseract appends after each page.
func trimPageSeparator(out string) string {
	return strings.TrimRight(out, "\f")
}
