package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pdfocr/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func textImage(t *testing.T, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString(text)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNew_DefaultIsCLI(t *testing.T) {
	e, err := New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, "tesseract-cli", e.Name())
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("does-not-exist", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cli")
}

func TestEngines_IncludesCLI(t *testing.T) {
	assert.Contains(t, Engines(), "cli")
}

func TestCLI_MissingBinary(t *testing.T) {
	e := NewCLI("/nonexistent/tesseract")
	_, err := e.RecognizeText(context.Background(), []byte("x"), ocr.DefaultConfig())
	assert.Error(t, err)
}

func TestCLI_RecognizeText(t *testing.T) {
	ensureTesseractAvailable(t)

	raw, err := NewCLI("").RecognizeText(context.Background(), textImage(t, "Hello PDF"), ocr.DefaultConfig())
	require.NoError(t, err)
	got := strings.ToLower(raw)
	assert.Contains(t, got, "hello")
	assert.Contains(t, got, "pdf")
}

func TestTrimPageSeparator(t *testing.T) {
	assert.Equal(t, "Hello PDF\n", trimPageSeparator("Hello PDF\n\f"))
	assert.Equal(t, "a\fb\n", trimPageSeparator("a\fb\n"))
	assert.Equal(t, "", trimPageSeparator("\f"))
}

func TestCLI_NoPageSeparator(t *testing.T) {
	ensureTesseractAvailable(t)

	raw, err := NewCLI("").RecognizeText(context.Background(), textImage(t, "Hello PDF"), ocr.DefaultConfig())
	require.NoError(t, err)
	assert.NotContains(t, raw, "\f")
}

func TestCLI_CanceledContext(t *testing.T) {
	ensureTesseractAvailable(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	_, err := NewCLI("").RecognizeText(ctx, textImage(t, "Hello"), ocr.DefaultConfig())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCLI_InvalidLanguage(t *testing.T) {
	ensureTesseractAvailable(t)

	cfg := ocr.DefaultConfig()
	cfg.Language = "zz-not-a-language"
	_, err := NewCLI("").RecognizeText(context.Background(), textImage(t, "Hello"), cfg)
	assert.Error(t, err)
}
