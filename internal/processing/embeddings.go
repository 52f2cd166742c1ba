package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Embedder turns text into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EmbedChunks produces embeddings for each chunk.
func EmbedChunks(ctx context.Context, e Embedder, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks")
	}
	out, err := e.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(out) != len(chunks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(out))
	}
	return out, nil
}

// QueryEmbedding produces an embedding for a query string.
func QueryEmbedding(ctx context.Context, e Embedder, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	out, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(out))
	}
	return out[0], nil
}

// request struct for Ollama API
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// response struct from Ollama API
type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaEmbedder calls a local Ollama server, one request per text.
type OllamaEmbedder struct {
	URL   string
	Model string
	Dim   int

	HTTPClient *http.Client
}

func NewOllamaEmbedder(baseURL, model string, dim int) *OllamaEmbedder {
	return &OllamaEmbedder{
		URL:        strings.TrimRight(baseURL, "/") + "/api/embeddings",
		Model:      model,
		Dim:        dim,
		HTTPClient: http.DefaultClient,
	}
}

func (o *OllamaEmbedder) Dimension() int { return o.Dim }

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := o.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed embedding chunk %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

// embedOne calls Ollama local API and returns the embedding vector.
func (o *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	data, err := json.Marshal(ollamaRequest{Model: o.Model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error: %s", string(body))
	}

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, fmt.Errorf("failed decode response: %w", err)
	}
	if len(oResp.Embedding) != o.Dim {
		return nil, fmt.Errorf("expected embedding dim %d, got %d", o.Dim, len(oResp.Embedding))
	}
	return oResp.Embedding, nil
}
