package processing

import "time"

// Metadata describes where a chunk of the knowledge base came from.
type Metadata struct {
	Path        string    `json:"file_path"`
	Source      string    `json:"source"` // file name
	Origin      string    `json:"origin"` // "local" or "gdrive"
	Title       string    `json:"title"`
	ChunkID     int       `json:"chunk_id"`
	TotalChunks int       `json:"total_chunks"`
	ImportedAt  time.Time `json:"imported_at"`
}
