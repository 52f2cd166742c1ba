package processing

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// ChunkText splits into paragraph chunks and limits size.
func ChunkText(text string) []string {
	return ChunkTextSize(text, DefaultChunkSize, DefaultChunkOverlap)
}

// ChunkTextSize splits text on blank lines and cuts paragraphs longer than
// size runes into windows that overlap by overlap runes.
func ChunkTextSize(text string, size, overlap int) []string {
	if overlap >= size {
		overlap = 0
	}
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, splitLong(p, size, overlap)...)
	}
	return out
}

func splitLong(s string, max, overlap int) []string {
	if utf8.RuneCountInString(s) <= max {
		return []string{s}
	}
	runes := []rune(s)
	var res []string
	for i := 0; i < len(runes); i += max - overlap {
		end := i + max
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			res = append(res, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return res
}
