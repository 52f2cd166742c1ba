package ingestion

import (
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

var allowedExt = []string{".html", ".htm", ".pdf", ".txt", ".md", ".png", ".jpg", ".jpeg"}

// Supported reports whether ExtractText can read files with this name.
func Supported(name string) bool {
	return slices.Contains(allowedExt, strings.ToLower(filepath.Ext(name)))
}

// LoadLocalFiles walks root and returns the supported files in lexical order.
func LoadLocalFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if Supported(path) {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
