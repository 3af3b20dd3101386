// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - TextWriter: human-readable terminal output, coloured with lipgloss
//   - JSONWriter and FullJSONWriter: structured output for tool integration
//   - MarkdownWriter: a shareable summary built with nao1215/markdown
//   - HTMLWriter: the Markdown report rendered to a standalone page
//   - JUnitWriter: JUnit XML so CI systems can display every check
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter.
package report
