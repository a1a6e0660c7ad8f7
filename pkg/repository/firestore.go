package repository

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const memoryCollection = "memories"

// Firestore stores embeddings in a Cloud Firestore collection. It is
// the remote alternative to SQLite for users who sync memories across
// machines.
type Firestore struct {
	client *firestore.Client
}

type embeddingDoc struct {
	ID        int64              `firestore:"id"`
	Text      string             `firestore:"text"`
	Vector    firestore.Vector32 `firestore:"vector"`
	CreatedAt time.Time          `firestore:"created_at"`
}

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) PutEmbedding(ctx context.Context, emb *model.Embedding) (int64, error) {
	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// Document IDs double as the numeric embedding ID. UnixNano keeps
	// them unique enough for a single-user memory store.
	id := time.Now().UnixNano()
	doc := embeddingDoc{
		ID:        id,
		Text:      emb.Text,
		Vector:    firestore.Vector32(emb.Vector),
		CreatedAt: createdAt,
	}

	ref := r.client.Collection(memoryCollection).Doc(strconv.FormatInt(id, 10))
	if _, err := ref.Set(ctx, doc); err != nil {
		return 0, goerr.Wrap(err, "failed to save embedding", goerr.V("id", id))
	}
	return id, nil
}

func (r *Firestore) GetEmbedding(ctx context.Context, id int64) (*model.Embedding, error) {
	snap, err := r.client.Collection(memoryCollection).Doc(strconv.FormatInt(id, 10)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(ErrEmbeddingNotFound, "no such embedding", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get embedding", goerr.V("id", id))
	}

	var doc embeddingDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode embedding document", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (r *Firestore) ListEmbeddings(ctx context.Context) ([]*model.Embedding, error) {
	iter := r.client.Collection(memoryCollection).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []*model.Embedding
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list embeddings")
		}

		var doc embeddingDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedding document",
				goerr.V("doc", snap.Ref.ID))
		}
		out = append(out, doc.toModel())
	}
	return out, nil
}

func (r *Firestore) DeleteEmbedding(ctx context.Context, id int64) error {
	ref := r.client.Collection(memoryCollection).Doc(strconv.FormatInt(id, 10))
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return goerr.Wrap(ErrEmbeddingNotFound, "no such embedding", goerr.V("id", id))
	} else if err != nil {
		return goerr.Wrap(err, "failed to check embedding", goerr.V("id", id))
	}

	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V("id", id))
	}
	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (d *embeddingDoc) toModel() *model.Embedding {
	return &model.Embedding{
		ID:        d.ID,
		Text:      d.Text,
		Vector:    []float32(d.Vector),
		CreatedAt: d.CreatedAt,
	}
}
