package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
)

// Service runs the long-term memory pipeline: trigger filter, batch
// buffer, LLM classification, embedding, persistence. Everything past
// the trigger check is asynchronous so chat latency never pays for it.
type Service struct {
	filter *FilterUseCase
	search *SearchUseCase
	embed  *ComputeEmbeddingUseCase
	repo   repository.Repository
	buffer *Buffer

	wg sync.WaitGroup

	// base context for background work, detached from any single chat
	// request so cancelling a stream does not abort a save.
	baseCtx context.Context
}

func NewService(ctx context.Context, filter *FilterUseCase, embedder adapter.Embedder, repo repository.Repository) *Service {
	svc := &Service{
		filter:  filter,
		search:  NewSearchUseCase(repo),
		embed:   NewComputeEmbeddingUseCase(embedder),
		repo:    repo,
		baseCtx: ctx,
	}
	svc.buffer = NewBuffer(svc.onFlush)
	return svc
}

// Observe feeds a user message into the pipeline. It returns
// immediately; failures downstream are logged, never surfaced to chat.
func (s *Service) Observe(text string) {
	s.ObserveWithEmbedding(text, nil)
}

// ObserveWithEmbedding is Observe with a precomputed vector, saving a
// second embedding call when the chat path already has one.
func (s *Service) ObserveWithEmbedding(text string, vector []float32) {
	if !ShouldSaveAsMemory(text) {
		return
	}
	s.buffer.Add(model.BufferedMemoryItem{Text: text, Vector: vector})
}

// Flush forces classification of any buffered candidates, e.g. when a
// session ends before the buffer fills.
func (s *Service) Flush() {
	s.buffer.Flush()
}

// Wait blocks until background classification and saves finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Recall embeds query and returns the topK most similar stored
// memories. A failed query embedding degrades to no recalls.
func (s *Service) Recall(ctx context.Context, query string, topK int) ([]*model.ScoredEmbedding, error) {
	vector := s.embed.Compute(ctx, query)
	if len(vector) == 0 {
		return nil, nil
	}
	return s.search.Search(ctx, vector, topK)
}

func (s *Service) onFlush(items []model.BufferedMemoryItem) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.saveBatch(s.baseCtx, items)
	}()
}

func (s *Service) saveBatch(ctx context.Context, items []model.BufferedMemoryItem) {
	logger := logging.From(ctx)

	kept, err := s.filter.Filter(ctx, items)
	if err != nil {
		logger.Warn("memory classification failed, batch dropped",
			"error", err, "candidates", len(items))
		return
	}
	if len(kept) == 0 {
		logger.Debug("classifier kept no memory candidates", "candidates", len(items))
		return
	}

	for _, item := range kept {
		vector := item.Vector
		if len(vector) == 0 {
			if vector = s.embed.Compute(ctx, item.Text); len(vector) == 0 {
				logger.Warn("memory skipped without embedding", "text", item.Text)
				continue
			}
		}

		id, err := s.repo.PutEmbedding(ctx, &model.Embedding{
			Text:      item.Text,
			Vector:    vector,
			CreatedAt: time.Now(),
		})
		if err != nil {
			logger.Warn("failed to save memory", "error", err, "text", item.Text)
			continue
		}
		logger.Info("saved memory", "id", id, "text", item.Text)
	}
}
