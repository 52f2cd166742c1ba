package processing

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

// maxBatch bounds the inputs per embeddings request.
const maxBatch = 256

// OpenAIEmbedder calls the embeddings API of OpenAI or an Azure OpenAI deployment.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dim    int
}

func NewAzureEmbedder(endpoint, apiVersion, apiKey, deployment string, dim int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(azure.WithEndpoint(endpoint, apiVersion), azure.WithAPIKey(apiKey)),
		model:  deployment,
		dim:    dim,
	}
}

func NewOpenAIEmbedder(apiKey, model string, dim int, opts ...option.RequestOption) *OpenAIEmbedder {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  model,
		dim:    dim,
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.model),
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings request: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Data))
		}
		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if int(d.Index) >= len(batch) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			if len(d.Embedding) != e.dim {
				return nil, fmt.Errorf("expected embedding dim %d, got %d", e.dim, len(d.Embedding))
			}
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			batch[d.Index] = vec
		}
		out = append(out, batch...)
	}
	return out, nil
}
