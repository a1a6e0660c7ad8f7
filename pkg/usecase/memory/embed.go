package memory

import (
	"context"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
)

// ComputeEmbeddingUseCase wraps the embedding capability with the memory
// path's best-effort contract: failures are logged and yield nil, never
// an error, so callers on the chat path need no failure handling.
type ComputeEmbeddingUseCase struct {
	embedder adapter.Embedder
}

func NewComputeEmbeddingUseCase(embedder adapter.Embedder) *ComputeEmbeddingUseCase {
	return &ComputeEmbeddingUseCase{embedder: embedder}
}

func (uc *ComputeEmbeddingUseCase) Compute(ctx context.Context, text string) []float32 {
	vector, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("failed to compute embedding", "error", err)
		return nil
	}
	return vector
}
