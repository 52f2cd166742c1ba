package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Document is the text content of one knowledge-base file.
type Document struct {
	Path  string
	Title string
	Text  string
}

var ErrUnsupported = errors.New("unsupported file type")

// ExtractText detects file type and returns text via direct extraction or OCR.
func ExtractText(path string) (Document, error) {
	doc := Document{Path: path, Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return doc, err
		}
		doc.Text = string(b)
		return doc, nil
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return doc, err
		}
		defer f.Close()
		title, text, err := ExtractHTML(f)
		if err != nil {
			return doc, err
		}
		if title != "" {
			doc.Title = title
		}
		doc.Text = text
		return doc, nil
	case ".pdf":
		text, err := ExtractTextFromPDF(path)
		if errors.Is(err, ErrFileTooLarge) {
			return doc, err
		}
		if err == nil && strings.TrimSpace(text) != "" {
			doc.Text = text
			return doc, nil
		}
		// no usable text layer, rasterize and OCR
		doc.Text, err = ExtractTextWithOCR(path)
		return doc, err
	case ".png", ".jpg", ".jpeg":
		var err error
		doc.Text, err = ExtractTextWithOCR(path)
		return doc, err
	default:
		return doc, ErrUnsupported
	}
}
