package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const defaultEmbeddingsPath = "/embeddings"

// Embedder is the opaque embedding capability the memory pipeline depends
// on. Implementations may be remote or on-device; failures must be
// returned, never panicked, because the memory path is best-effort.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	setting  model.OpenAISetting
	embModel string
	client   *http.Client
	roulette *KeyRoulette
}

func NewOpenAIEmbedder(setting model.OpenAISetting, embeddingModel string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		setting:  setting,
		embModel: embeddingModel,
		client:   newHTTPClient(setting.Proxy),
		roulette: NewKeyRoulette(),
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := json.Marshal(map[string]any{
		"model": e.embModel,
		"input": text,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal embedding request")
	}

	path := e.setting.EmbeddingsPath
	if path == "" {
		path = defaultEmbeddingsPath
	}
	url := strings.TrimRight(e.setting.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.roulette.Next(e.setting.APIKey))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, model.WrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, model.NewHTTPError(resp.StatusCode, string(body))
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, model.NewProtocolError("malformed embedding response")
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, model.NewProtocolError("embedding response carried no vector")
	}
	return out.Data[0].Embedding, nil
}
