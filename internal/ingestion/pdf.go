package ingestion

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// MaxPDFSize caps the size of PDFs read into memory for text extraction.
var MaxPDFSize int64 = 64 << 20

var ErrFileTooLarge = errors.New("file too large")

// ExtractTextFromPDF returns the text layer of a PDF, one blank-line
// separated block per page so chunking keeps page boundaries. An empty result
// with a nil error means the document has no text layer and needs OCR.
func ExtractTextFromPDF(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxPDFSize {
		return "", fmt.Errorf("%s: %w (%d bytes, limit %d)", path, ErrFileTooLarge, info.Size(), MaxPDFSize)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%s page %d: %w", path, i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) > 0 {
		return strings.Join(pages, "\n\n"), nil
	}

	// Some encoders confuse the pure Go reader; poppler usually copes.
	if out, err := exec.Command("pdftotext", "-layout", path, "-").Output(); err == nil {
		return strings.TrimSpace(string(out)), nil
	}
	return "", nil
}
