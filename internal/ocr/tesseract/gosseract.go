//go:build gosseract

package tesseract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

func init() {
	Register("gosseract", func(Options) (ocr.Engine, error) { return NewGosseract(), nil })
}

// Gosseract recognizes pages in-process through libtesseract. A client is
// created per call because gosseract clients are not safe for concurrent use.
type Gosseract struct {
	clientFactory func() *gosseract.Client
}

func NewGosseract() *Gosseract {
	return &Gosseract{clientFactory: gosseract.NewClient}
}

func (e *Gosseract) Name() string { return "gosseract" }

func (e *Gosseract) RecognizeText(ctx context.Context, image []byte, cfg ocr.Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer c.Close()

	if cfg.Language != "" {
		if err := c.SetLanguage(strings.Split(cfg.Language, "+")...); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("set psm: %w", err)
	}
	if err := c.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), strconv.Itoa(cfg.EngineMode)); err != nil {
		return "", fmt.Errorf("set oem: %w", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
