package memory

import (
	"context"
	"math"
	"sort"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// SearchUseCase retrieves the stored memories most similar to a query
// vector. The store is scanned in full; memory counts here are in the
// hundreds, not millions.
type SearchUseCase struct {
	repo repository.Repository
}

func NewSearchUseCase(repo repository.Repository) *SearchUseCase {
	return &SearchUseCase{repo: repo}
}

// Search returns up to topK embeddings ordered by descending cosine
// similarity to query.
func (uc *SearchUseCase) Search(ctx context.Context, query []float32, topK int) ([]*model.ScoredEmbedding, error) {
	if topK <= 0 {
		return nil, nil
	}

	all, err := uc.repo.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]*model.ScoredEmbedding, 0, len(all))
	for _, emb := range all {
		scored = append(scored, &model.ScoredEmbedding{
			Embedding: emb,
			Score:     CosineSimilarity(query, emb.Vector),
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
