package ingestion

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// OCRLanguages are the tesseract languages used for scanned documents.
var OCRLanguages = []string{"heb", "eng"}

// ExtractTextWithOCR runs OCR on images or scanned PDFs.
// For PDFs we convert pages to PNGs using pdftoppm (poppler).
func ExtractTextWithOCR(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return runTesseract(path)
	}

	tmpDir, err := os.MkdirTemp("", "hmo_pdfimg")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	if err := exec.Command("pdftoppm", "-png", path, prefix).Run(); err != nil {
		return "", fmt.Errorf("pdftoppm convert failed: %w", err)
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	var combined strings.Builder
	for _, m := range matches {
		t, err := runTesseract(m)
		if err != nil {
			continue
		}
		combined.WriteString(t)
		combined.WriteString("\n")
	}
	return strings.TrimSpace(combined.String()), nil
}

func runTesseract(imgPath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(OCRLanguages...); err != nil {
		return "", err
	}
	if err := client.SetImage(imgPath); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
