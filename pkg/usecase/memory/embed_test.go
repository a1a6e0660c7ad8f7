package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/ermine/pkg/usecase/memory"
	"github.com/m-mizutani/gt"
)

type mockEmbedder struct {
	vector   []float32
	err      error
	embedded []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.embedded = append(m.embedded, text)
	return m.vector, nil
}

func TestComputeEmbedding(t *testing.T) {
	emb := &mockEmbedder{vector: []float32{0.5, 0.5}}
	uc := memory.NewComputeEmbeddingUseCase(emb)

	got := uc.Compute(context.Background(), "我喜欢猫")
	gt.Equal(t, got, []float32{0.5, 0.5})
	gt.A(t, emb.embedded).Length(1)
}

func TestComputeEmbeddingFailureYieldsNil(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("embedding service down")}
	uc := memory.NewComputeEmbeddingUseCase(emb)

	got := uc.Compute(context.Background(), "我喜欢猫")
	gt.A(t, got).Length(0)
}
