// Package ingestion extracts plain text from uploaded resume files so the
// content can be fed through the conversation pipeline.
package ingestion

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// MaxUploadBytes caps the size of an imported file.
const MaxUploadBytes = 5 << 20

// Extract converts an uploaded file to plain text, dispatching on the file
// extension. Supported formats: .txt, .md, .html, .htm, .pdf.
func Extract(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &ExtractionError{Filename: filename, Message: "empty file"}
	}
	if len(data) > MaxUploadBytes {
		return "", &ExtractionError{Filename: filename, Message: "file too large"}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return normalizeText(string(data)), nil
	case ".html", ".htm":
		return extractHTML(filename, data)
	case ".pdf":
		return extractPDF(filename, data)
	default:
		return "", &ExtractionError{Filename: filename, Message: "unsupported file type"}
	}
}

// extractHTML pulls visible text from an HTML page, skipping script, style
// and navigation chrome.
func extractHTML(filename string, data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", &ExtractionError{Filename: filename, Message: "failed to parse HTML", Cause: err}
	}

	doc.Find("script, style, nav, noscript").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	root.Find("h1, h2, h3, h4, p, li, td, div").Each(func(_ int, s *goquery.Selection) {
		// Only leaf-ish nodes; containers repeat their children's text.
		if s.Children().Filter("div, p, ul, ol, table").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		if text := strings.TrimSpace(root.Text()); text != "" {
			parts = append(parts, text)
		}
	}

	return normalizeText(strings.Join(parts, "\n")), nil
}

func extractPDF(filename string, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Filename: filename, Message: "failed to read PDF", Cause: err}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Filename: filename, Message: "failed to extract PDF text", Cause: err}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", &ExtractionError{Filename: filename, Message: "failed to read PDF text", Cause: err}
	}

	return normalizeText(buf.String()), nil
}

// normalizeText collapses runs of blank lines and trims trailing whitespace
// per line.
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
