package render

import (
	"io"
	"strings"

	"github.com/dgallion1/pdfocr/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXRenderer writes a Word document with a bold heading per page followed
// by one paragraph per recognized line.
type DOCXRenderer struct{}

func (r *DOCXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}
func (r *DOCXRenderer) Extension() string { return ".docx" }

func (r *DOCXRenderer) Render(w io.Writer, tree *doctree.DocTree) error {
	doc := docx.New().WithDefaultTheme()
	if tree.Title != "" {
		doc.AddParagraph().AddText(tree.Title).Bold().Size("36")
	}
	for _, n := range tree.Children {
		doc.AddParagraph().AddText(n.Title).Bold().Size("28")
		for _, line := range strings.Split(n.Text, "\n") {
			doc.AddParagraph().AddText(line)
		}
	}
	_, err := doc.WriteTo(w)
	return err
}
