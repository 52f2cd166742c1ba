package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Divas-Gupta30/hmo-assistant/internal/ingestion"
	"github.com/Divas-Gupta30/hmo-assistant/internal/processing"
	"github.com/Divas-Gupta30/hmo-assistant/internal/storage"
)

// Store receives embedded chunks.
type Store interface {
	Insert(ctx context.Context, doc storage.Document) error
}

// Indexer turns knowledge-base files into embedded chunks.
type Indexer struct {
	Embedder processing.Embedder
	Store    Store
	Logger   *slog.Logger
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Files   int
	Chunks  int
	Skipped []string
}

// IndexFiles extracts, chunks, embeds and stores every file. Files that cannot be
// read are skipped and reported; store and embedding failures abort the run.
func (ix *Indexer) IndexFiles(ctx context.Context, files []string, origin string) (IndexReport, error) {
	logger := ix.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var report IndexReport
	for _, f := range files {
		logger.Info("indexing", "file", f)
		doc, err := ingestion.ExtractText(f)
		if err != nil {
			logger.Warn("skip file", "file", f, "error", err)
			report.Skipped = append(report.Skipped, f)
			continue
		}
		chunks := processing.ChunkText(doc.Text)
		if len(chunks) == 0 {
			report.Skipped = append(report.Skipped, f)
			continue
		}
		embs, err := processing.EmbedChunks(ctx, ix.Embedder, chunks)
		if err != nil {
			return report, fmt.Errorf("embedding %s: %w", f, err)
		}
		now := time.Now().UTC()
		for i := range chunks {
			err := ix.Store.Insert(ctx, storage.Document{
				Content: chunks[i],
				Metadata: processing.Metadata{
					Path:        f,
					Source:      filepath.Base(f),
					Origin:      origin,
					Title:       doc.Title,
					ChunkID:     i,
					TotalChunks: len(chunks),
					ImportedAt:  now,
				},
				Embedding: embs[i],
			})
			if err != nil {
				return report, fmt.Errorf("db insert %s: %w", f, err)
			}
		}
		report.Files++
		report.Chunks += len(chunks)
	}
	return report, nil
}
