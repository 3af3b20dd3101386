package report

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/nao1215/a11yscan/internal/model"
)

// htmlConverter renders GitHub flavoured Markdown. The <details> blocks
// emitted by MarkdownWriter are raw HTML, so unsafe rendering is enabled.
var htmlConverter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #767676; padding: 0.25rem 0.75rem; text-align: left; }
code { background: #f2f2f2; padding: 0 0.25rem; }
</style>
</head>
<body>
<main>
`

const htmlTail = `</main>
</body>
</html>
`

// HTMLWriter outputs reports as a standalone HTML page.
// The body is the Markdown report rendered with goldmark.
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report as an HTML document.
func (w *HTMLWriter) Write(report *model.RunReport) (int, error) {
	var src bytes.Buffer
	if _, err := NewMarkdownWriter(&src).Write(report); err != nil {
		return 0, fmt.Errorf("failed to build markdown: %w", err)
	}

	var body bytes.Buffer
	if err := htmlConverter.Convert(src.Bytes(), &body); err != nil {
		return 0, fmt.Errorf("failed to render html: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, htmlHead, html.EscapeString("Accessibility Report: "+report.Target))
	out.Write(body.Bytes())
	out.WriteString(htmlTail)

	return w.output.Write(out.Bytes())
}
