package chat

import (
	"context"
	"iter"
	"strings"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase dispatches chat requests to the configured provider and
// normalizes the streamed output. One instance serves the whole
// process; per-request state lives in the task ID.
type UseCase struct {
	sse       *adapter.SSEClient
	chunkSize int
}

type Option func(*UseCase)

// WithChunkSize overrides the rune count per emitted chunk.
func WithChunkSize(n int) Option {
	return func(uc *UseCase) {
		uc.chunkSize = n
	}
}

func WithSSEClient(sse *adapter.SSEClient) Option {
	return func(uc *UseCase) {
		uc.sse = sse
	}
}

func New(opts ...Option) *UseCase {
	uc := &UseCase{
		sse:       adapter.NewSSEClient(),
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// StreamText streams the assistant reply for history as re-chunked text
// deltas. The sequence ends after the final chunk, or terminates with an
// error; cancellation via CancelStreaming surfaces as an error carrying
// model.ErrTagCancelled.
func (uc *UseCase) StreamText(ctx context.Context, setting model.ProviderSetting, history []model.Message, params model.GenerationParams, taskID string) iter.Seq2[string, error] {
	provider, err := adapter.NewProvider(setting, uc.sse)
	if err != nil {
		return failedStream(err)
	}

	deltas := func(yield func(string, error) bool) {
		for chunk, err := range provider.StreamText(ctx, history, params, taskID) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(chunk.DeltaText(), nil) {
				return
			}
		}
	}

	return Rebuffer(deltas, uc.chunkSize)
}

// GenerateText returns the complete assistant reply without streaming.
func (uc *UseCase) GenerateText(ctx context.Context, setting model.ProviderSetting, history []model.Message, params model.GenerationParams) (string, error) {
	provider, err := adapter.NewProvider(setting, uc.sse)
	if err != nil {
		return "", err
	}

	resp, err := provider.GenerateText(ctx, history, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, choice := range resp.Choices {
		if choice.Message != nil {
			sb.WriteString(choice.Message.Text())
		}
		if choice.Delta != nil {
			sb.WriteString(choice.Delta.Text())
		}
	}
	return sb.String(), nil
}

// CancelStreaming aborts the in-flight stream for taskID. Unknown IDs
// are ignored.
func (uc *UseCase) CancelStreaming(taskID string) {
	uc.sse.Cancel(taskID)
}

// CancelAll aborts every in-flight stream.
func (uc *UseCase) CancelAll() {
	uc.sse.CancelAll()
}

// ListModels queries the provider for its available model catalog.
func (uc *UseCase) ListModels(ctx context.Context, setting model.ProviderSetting) ([]model.Model, error) {
	provider, err := adapter.NewProvider(setting, uc.sse)
	if err != nil {
		return nil, err
	}
	return provider.ListModels(ctx)
}

func failedStream(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", goerr.Wrap(err, "failed to prepare provider"))
	}
}
