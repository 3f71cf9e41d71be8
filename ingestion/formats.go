package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// DocumentFormat enumerates supported course document payload formats.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = ""
	// FormatText represents plain-text course scripts.
	FormatText DocumentFormat = "text"
	// FormatPDF represents PDF course scripts.
	FormatPDF DocumentFormat = "pdf"
)

// DetectFormat infers a document format from the provided path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return FormatText
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

// ReadDocument loads a course file as text, extracting plain text from PDFs.
func ReadDocument(path string) (string, error) {
	switch DetectFormat(path) {
	case FormatText:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return normalizeNewlines(string(data)), nil
	case FormatPDF:
		return readPDF(path)
	default:
		return "", fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
}

func readPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizeNewlines(buf.String()), nil
}

func normalizeNewlines(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}
