package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/akademi4eg/aka-assistant/internal/errors"
)

// Kind is the source format of a document.
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindPDF      Kind = "pdf"
)

// KindOf picks the source format from the file extension.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".md", ".markdown":
		return KindMarkdown
	default:
		return KindText
	}
}

// FromFile loads a document, choosing the parser by extension.
func FromFile(path string) (*Document, error) {
	if KindOf(path) == KindPDF {
		return FromPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}
	if KindOf(path) == KindMarkdown {
		return FromMarkdown(data), nil
	}
	return New(string(data)), nil
}

// FromMarkdown keeps the readable text of a markdown source: headings,
// paragraphs, list items and code. Markup and raw HTML are dropped.
func FromMarkdown(src []byte) *Document {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return New(buf.String())
}

// FromPDF extracts the plain text of every page.
func FromPDF(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("open pdf %s: %v", path, err))
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("extract pdf text %s: %v", path, err))
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read pdf text: %w", err))
	}
	return New(buf.String()), nil
}
