package render

import (
	"encoding/json"
	"io"

	"github.com/dgallion1/pdfocr/internal/doctree"
)

// TextRenderer writes the tagged page texts separated by newlines.
type TextRenderer struct{}

func (r *TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }
func (r *TextRenderer) Extension() string   { return ".txt" }

func (r *TextRenderer) Render(w io.Writer, tree *doctree.DocTree) error {
	if _, err := io.WriteString(w, tree.Tagged()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// JSONRenderer writes {"title", "page_count", "pages", "failed"} with the
// tagged page texts.
type JSONRenderer struct{}

func (r *JSONRenderer) ContentType() string { return "application/json" }
func (r *JSONRenderer) Extension() string   { return ".json" }

func (r *JSONRenderer) Render(w io.Writer, tree *doctree.DocTree) error {
	pages := make([]string, len(tree.Children))
	for i, n := range tree.Children {
		pages[i] = n.Tagged
	}
	failed := tree.Failed
	if failed == nil {
		failed = []int{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"title":      tree.Title,
		"page_count": tree.PageCount,
		"pages":      pages,
		"failed":     failed,
	})
}
