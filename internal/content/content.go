// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// content.go - Text format detection and conversion for file content.
//
// Text uploaded to OneDrive can be stored as written or converted from Markdown
// to a standalone HTML document. Downloaded HTML can be handed back as raw
// markup, Markdown or plain text.
//
// Usage Example:
//   format := content.DetectTextFormat(text)
//   if format == content.FormatMarkdown {
//       doc := content.MarkdownToHTML(text)
//   }
//
//   md, err := content.HTMLToMarkdown(htmlBody)

package content

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jaytaylor/html2text"
	nethtml "golang.org/x/net/html"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// TextFormat represents the format of text content
type TextFormat int

const (
	FormatPlain TextFormat = iota
	FormatMarkdown
	FormatHTML
)

// String returns the string representation of TextFormat
func (f TextFormat) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatMarkdown:
		return "markdown"
	case FormatHTML:
		return "html"
	default:
		return "unknown"
	}
}

// ParseTextFormat maps a format name onto a TextFormat. "text" and "ascii" mean plain.
func ParseTextFormat(name string) (TextFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "plain", "text", "ascii":
		return FormatPlain, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return FormatPlain, fmt.Errorf("unknown text format %q: must be one of plain, markdown, html", name)
}

var (
	htmlTagPattern      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	markdownLinePattern = []*regexp.Regexp{
		regexp.MustCompile(`^#{1,6}\s`),             // headers
		regexp.MustCompile(`^[-*+]\s`),              // unordered lists
		regexp.MustCompile(`^\d+\.\s`),              // ordered lists
		regexp.MustCompile(`^>\s`),                  // blockquotes
		regexp.MustCompile("^```|^~~~"),             // fenced code
		regexp.MustCompile(`^(---+|\*\*\*+|___+)$`), // horizontal rules
		regexp.MustCompile(`^\|.*\|`),               // tables
		regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),   // inline links
	}
)

// DetectTextFormat analyzes text content to determine if it's HTML, Markdown, or plain text
func DetectTextFormat(text string) TextFormat {
	text = strings.TrimSpace(text)
	if text == "" {
		return FormatPlain
	}
	if htmlTagPattern.MatchString(text) {
		return FormatHTML
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, pattern := range markdownLinePattern {
			if pattern.MatchString(line) {
				return FormatMarkdown
			}
		}
	}
	return FormatPlain
}

// MarkdownToHTML renders Markdown as a standalone HTML document. The title is
// taken from the first heading.
func MarkdownToHTML(markdownText string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	body := string(markdown.ToHTML([]byte(markdownText), p, renderer))

	title := ExtractTitle(body)
	logging.ContentLogger.Debug("Converted markdown to HTML",
		"markdown_length", len(markdownText),
		"html_length", len(body),
		"title", title)
	return wrapDocument(title, body)
}

// PlainToHTML escapes plain text into a document with one paragraph per
// non-empty line.
func PlainToHTML(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, html.EscapeString(line))
		}
	}
	var body strings.Builder
	for _, line := range lines {
		body.WriteString("<p>")
		body.WriteString(line)
		body.WriteString("</p>\n")
	}
	return wrapDocument("", body.String())
}

// ToHTML converts text of any detected format to an HTML document.
func ToHTML(text string) (string, TextFormat) {
	format := DetectTextFormat(text)
	switch format {
	case FormatHTML:
		return text, format
	case FormatMarkdown:
		return MarkdownToHTML(text), format
	default:
		return PlainToHTML(text), format
	}
}

func wrapDocument(title, body string) string {
	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if title != "" {
		doc.WriteString("<title>")
		doc.WriteString(html.EscapeString(title))
		doc.WriteString("</title>\n")
	}
	doc.WriteString("</head>\n<body>\n")
	doc.WriteString(body)
	doc.WriteString("</body>\n</html>\n")
	return doc.String()
}

// HTMLToMarkdown converts HTML to CommonMark.
func HTMLToMarkdown(htmlContent string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdownText, err := converter.ConvertString(htmlContent)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	logging.ContentLogger.Debug("Converted HTML to markdown", "html_length", len(htmlContent), "markdown_length", len(markdownText))
	return markdownText, nil
}

// HTMLToText converts HTML to readable plain text, keeping tables aligned.
func HTMLToText(htmlContent string) (string, error) {
	text, err := html2text.FromString(htmlContent, html2text.Options{PrettyTables: true})
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to text: %w", err)
	}
	logging.ContentLogger.Debug("Converted HTML to text", "html_length", len(htmlContent), "text_length", len(text))
	return text, nil
}

// ExtractTitle returns the <title> of an HTML document, or the text of its
// first h1 to h6 heading, or "" when it has neither.
func ExtractTitle(htmlContent string) string {
	doc, err := nethtml.Parse(strings.NewReader(htmlContent))
	if err != nil {
		logging.ContentLogger.Debug("Failed to parse HTML for title", "error", err)
		return ""
	}

	var title, heading string
	var traverse func(*nethtml.Node)
	traverse = func(n *nethtml.Node) {
		if title != "" {
			return
		}
		if n.Type == nethtml.ElementNode {
			switch n.Data {
			case "title":
				title = strings.TrimSpace(textOf(n))
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				if heading == "" {
					heading = strings.TrimSpace(textOf(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	if title != "" {
		return title
	}
	return heading
}

func textOf(n *nethtml.Node) string {
	if n.Type == nethtml.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}
