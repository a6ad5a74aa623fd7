// Package render exports recognized documents in the formats offered by the
// API and the CLI.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/pdfocr/internal/doctree"
)

// Renderer writes a DocTree in one output format.
type Renderer interface {
	Render(w io.Writer, tree *doctree.DocTree) error
	ContentType() string
	Extension() string
}

// SupportedFormats lists the format names ForFormat accepts.
var SupportedFormats = map[string]bool{
	"txt":      true,
	"text":     true,
	"json":     true,
	"md":       true,
	"markdown": true,
	"html":     true,
	"docx":     true,
}

// ForFormat returns the renderer for a format name. An empty name selects
// plain text.
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "txt", "text":
		return &TextRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "md", "markdown":
		return &MarkdownRenderer{}, nil
	case "html":
		return &HTMLRenderer{}, nil
	case "docx":
		return &DOCXRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// IsSupportedFormat checks if a format name is supported.
func IsSupportedFormat(format string) bool {
	return format == "" || SupportedFormats[strings.ToLower(format)]
}
