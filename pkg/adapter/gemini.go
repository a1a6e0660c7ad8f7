package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiEmbedder computes embeddings through the Gemini API SDK.
type GeminiEmbedder struct {
	client         *genai.Client
	embeddingModel string
}

type GeminiOption func(*GeminiEmbedder)

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.embeddingModel = model
	}
}

func NewGeminiEmbedder(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiEmbedder{
		client:         client,
		embeddingModel: "gemini-embedding-001",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("embedding response carried no vector")
	}
	return resp.Embeddings[0].Values, nil
}
