package repository

import (
	"context"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrEmbeddingNotFound = goerr.New("embedding not found")

// Repository persists long-term memory embeddings.
type Repository interface {
	// PutEmbedding stores an embedding and returns the storage-assigned id.
	PutEmbedding(ctx context.Context, emb *model.Embedding) (int64, error)

	// GetEmbedding retrieves one embedding by id. Returns
	// ErrEmbeddingNotFound when no such entry exists.
	GetEmbedding(ctx context.Context, id int64) (*model.Embedding, error)

	// ListEmbeddings retrieves every stored embedding. The similarity
	// search is a full scan over this listing.
	ListEmbeddings(ctx context.Context) ([]*model.Embedding, error)

	// DeleteEmbedding removes one embedding by id.
	DeleteEmbedding(ctx context.Context, id int64) error

	// Close releases the underlying storage handle.
	Close() error
}
