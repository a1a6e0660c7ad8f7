package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/gt"
)

func newTestRepo(t *testing.T) *repository.SQLite {
	t.Helper()
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "memory.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.PutEmbedding(ctx, &model.Embedding{
		Text:   "user likes cats",
		Vector: []float32{0.1, 0.2, 0.3},
	})
	gt.NoError(t, err)
	gt.True(t, id > 0)

	got, err := repo.GetEmbedding(ctx, id)
	gt.NoError(t, err)
	gt.Equal(t, got.ID, id)
	gt.Equal(t, got.Text, "user likes cats")
	gt.A(t, got.Vector).Length(3)
	gt.Equal(t, got.Vector[1], float32(0.2))
	gt.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		_, err := repo.PutEmbedding(ctx, &model.Embedding{Text: text, Vector: []float32{1}})
		gt.NoError(t, err)
	}

	all, err := repo.ListEmbeddings(ctx)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)
	gt.Equal(t, all[0].Text, "first")
	gt.Equal(t, all[2].Text, "third")
}

func TestSQLiteDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.PutEmbedding(ctx, &model.Embedding{Text: "gone soon", Vector: []float32{1}})
	gt.NoError(t, err)

	gt.NoError(t, repo.DeleteEmbedding(ctx, id))

	_, err = repo.GetEmbedding(ctx, id)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrEmbeddingNotFound))

	err = repo.DeleteEmbedding(ctx, id)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrEmbeddingNotFound))
}

func TestSQLiteGetUnknownID(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetEmbedding(context.Background(), 9999)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrEmbeddingNotFound))
}
