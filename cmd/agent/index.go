package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Divas-Gupta30/hmo-assistant/internal/ingestion"
	"github.com/Divas-Gupta30/hmo-assistant/internal/knowledge"
)

// IndexCmd builds the knowledge index.
// Usage: agent index --path ./data/phase2_data [--drive-folder <id>] [--reset]
type IndexCmd struct {
	Path        string `short:"p" long:"path" description:"folder with knowledge-base files" default:"./data"`
	DriveFolder string `long:"drive-folder" description:"Google Drive folder id to index (defaults to GOOGLE_DRIVE_FOLDER_ID)"`
	Reset       bool   `long:"reset" description:"remove previously indexed chunks first"`
}

func (c *IndexCmd) Execute(_ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	vs, err := a.vectorStore(ctx)
	if err != nil {
		return err
	}
	if c.Reset {
		if err := vs.Reset(ctx); err != nil {
			return fmt.Errorf("resetting index: %w", err)
		}
	}
	ix := &knowledge.Indexer{Embedder: a.embedder(), Store: vs, Logger: a.logger}

	var total knowledge.IndexReport
	if c.Path != "" {
		a.logger.Info("starting indexing", "path", c.Path)
		files, err := ingestion.LoadLocalFiles(c.Path)
		if err != nil {
			return fmt.Errorf("load files: %w", err)
		}
		report, err := ix.IndexFiles(ctx, files, "local")
		if err != nil {
			return err
		}
		total = merge(total, report)
	}

	folder := c.DriveFolder
	if folder == "" {
		folder = a.cfg.DriveFolderID
	}
	if folder != "" {
		src, err := ingestion.NewDriveSource(ctx)
		if err != nil {
			return err
		}
		dir, err := os.MkdirTemp("", "hmo_drive")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		a.logger.Info("downloading drive folder", "folder", folder)
		files, err := src.Fetch(ctx, folder, dir)
		if err != nil {
			return err
		}
		report, err := ix.IndexFiles(ctx, files, "gdrive")
		if err != nil {
			return err
		}
		total = merge(total, report)
	}

	fmt.Printf("Indexing complete: %d files, %d chunks, %d skipped.\n", total.Files, total.Chunks, len(total.Skipped))
	return nil
}

func merge(a, b knowledge.IndexReport) knowledge.IndexReport {
	a.Files += b.Files
	a.Chunks += b.Chunks
	a.Skipped = append(a.Skipped, b.Skipped...)
	return a
}
