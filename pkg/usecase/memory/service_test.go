package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/usecase/memory"
	"github.com/m-mizutani/gt"
)

func newTestService(gen *mockGenerator, emb *mockEmbedder, repo *mockRepo) *memory.Service {
	filter := memory.NewFilterUseCase(gen, testSetting, "gpt-test")
	return memory.NewService(context.Background(), filter, emb, repo)
}

func TestServiceSavesCondensedMemoryWithFreshEmbedding(t *testing.T) {
	gen := &mockGenerator{reply: `{"shouldSave":true,"messages":[{"index":0,"content":"User likes cats"}]}`}
	emb := &mockEmbedder{vector: []float32{1, 0}}
	repo := &mockRepo{}
	svc := newTestService(gen, emb, repo)

	// the precomputed vector belongs to the original wording, not the
	// condensed one the classifier produces
	svc.ObserveWithEmbedding("记住我喜欢猫", []float32{9, 9})
	svc.Flush()
	svc.Wait()

	gt.A(t, repo.embeddings).Length(1)
	gt.Equal(t, repo.embeddings[0].Text, "User likes cats")
	gt.Equal(t, repo.embeddings[0].Vector, []float32{1, 0})
	gt.Equal(t, emb.embedded, []string{"User likes cats"})
}

func TestServiceReusesPrecomputedEmbedding(t *testing.T) {
	gen := &mockGenerator{reply: `{"shouldSave":true,"messages":[{"index":0,"content":""}]}`}
	emb := &mockEmbedder{vector: []float32{1, 0}}
	repo := &mockRepo{}
	svc := newTestService(gen, emb, repo)

	svc.ObserveWithEmbedding("记住我喜欢猫", []float32{9, 9})
	svc.Flush()
	svc.Wait()

	gt.A(t, repo.embeddings).Length(1)
	gt.Equal(t, repo.embeddings[0].Text, "记住我喜欢猫")
	gt.Equal(t, repo.embeddings[0].Vector, []float32{9, 9})
	gt.A(t, emb.embedded).Length(0)
}

func TestServiceObserveIgnoresTransientChatter(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, &mockEmbedder{}, &mockRepo{})

	svc.Observe("今天天气怎么样")
	svc.Flush()
	svc.Wait()

	gt.Equal(t, gen.calls, 0)
}

func TestServiceRecall(t *testing.T) {
	repo := &mockRepo{embeddings: []*model.Embedding{
		{ID: 1, Text: "likes cats", Vector: []float32{1, 0}},
		{ID: 2, Text: "lives in Tokyo", Vector: []float32{0, 1}},
	}}
	emb := &mockEmbedder{vector: []float32{1, 0}}
	svc := newTestService(&mockGenerator{}, emb, repo)

	scored, err := svc.Recall(context.Background(), "cats?", 1)
	gt.NoError(t, err)
	gt.A(t, scored).Length(1)
	gt.Equal(t, scored[0].Embedding.Text, "likes cats")
}

func TestServiceRecallDegradesOnEmbedFailure(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("embedding service down")}
	svc := newTestService(&mockGenerator{}, emb, &mockRepo{})

	scored, err := svc.Recall(context.Background(), "anything", 3)
	gt.NoError(t, err)
	gt.A(t, scored).Length(0)
}
