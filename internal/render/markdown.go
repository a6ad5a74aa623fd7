package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/pdfocr/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
	nethtml "golang.org/x/net/html"
)

// MarkdownRenderer writes one "## Page N" section per page.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) ContentType() string { return "text/markdown; charset=utf-8" }
func (r *MarkdownRenderer) Extension() string   { return ".md" }

func (r *MarkdownRenderer) Render(w io.Writer, tree *doctree.DocTree) error {
	_, err := w.Write(markdownSource(tree))
	return err
}

func markdownSource(tree *doctree.DocTree) []byte {
	var buf bytes.Buffer
	if tree.Title != "" {
		fmt.Fprintf(&buf, "# %s\n\n", tree.Title)
	}
	for _, n := range tree.Children {
		fmt.Fprintf(&buf, "## %s\n\n", n.Title)
		text := strings.TrimSpace(n.Text)
		if text == "" {
			buf.WriteString("_No text recognized._\n\n")
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

// HTMLRenderer converts the markdown export to HTML with goldmark. Line breaks
// inside a page are kept as <br> so OCR lines stay visible.
type HTMLRenderer struct{}

func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }
func (r *HTMLRenderer) Extension() string   { return ".html" }

func (r *HTMLRenderer) Render(w io.Writer, tree *doctree.DocTree) error {
	md := goldmark.New(
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	var body bytes.Buffer
	if err := md.Convert(markdownSource(tree), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	title := tree.Title
	if title == "" {
		title = "OCR result"
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		nethtml.EscapeString(title), body.String())
	return err
}
