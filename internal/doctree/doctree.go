package doctree

import (
	"fmt"
	"strings"
)

// DocTree is the root of a recognized document.
type DocTree struct {
	Title     string     // Document title (from the upload filename)
	PageCount int        // Pages processed
	Failed    []int      // Pages that carry an error marker instead of text
	Children  []*DocNode // One node per page, in page order
}

// DocNode is the recognized text of one page.
type DocNode struct {
	Title  string // "Page N"
	Text   string // Normalized text without page markers
	Tagged string // Text as emitted by the pipeline, markers included
	Page   int    // 1-based page number
}

// FromPages builds a tree from tagged page texts, where pages[i] is page i+1.
func FromPages(title string, pages []string, failed []int) *DocTree {
	tree := &DocTree{
		Title:     title,
		PageCount: len(pages),
		Failed:    failed,
		Children:  make([]*DocNode, 0, len(pages)),
	}
	for i, tagged := range pages {
		n := i + 1
		tree.Children = append(tree.Children, &DocNode{
			Title:  fmt.Sprintf("Page %d", n),
			Text:   Untag(n, tagged),
			Tagged: tagged,
			Page:   n,
		})
	}
	return tree
}

// Untag strips the <page_N> markers for page n. Text without the expected
// markers is returned unchanged.
func Untag(n int, tagged string) string {
	open := fmt.Sprintf("<page_%d>\n", n)
	closing := fmt.Sprintf("\n</page_%d>", n)
	if !strings.HasPrefix(tagged, open) || !strings.HasSuffix(tagged, closing) || len(tagged) < len(open)+len(closing) {
		return tagged
	}
	return tagged[len(open) : len(tagged)-len(closing)]
}

// Tagged joins every page's tagged text with newlines, the plain text output
// format of the service.
func (t *DocTree) Tagged() string {
	parts := make([]string, len(t.Children))
	for i, n := range t.Children {
		parts[i] = n.Tagged
	}
	return strings.Join(parts, "\n")
}
