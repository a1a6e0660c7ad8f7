package adapter

import (
	"context"
	"iter"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Provider turns a uniform message list and generation parameters into a
// vendor request, and vendor responses back into uniform chunks.
type Provider interface {
	// GenerateText performs one non-streaming completion.
	GenerateText(ctx context.Context, messages []model.Message, params model.GenerationParams) (*model.MessageChunk, error)

	// StreamText yields incremental chunks. The sequence is finite and not
	// restartable; a fresh call re-issues the network request. taskID keys
	// the call for cancellation.
	StreamText(ctx context.Context, messages []model.Message, params model.GenerationParams, taskID string) iter.Seq2[*model.MessageChunk, error]

	// ListModels fetches the models the backend offers.
	ListModels(ctx context.Context) ([]model.Model, error)
}

// NewProvider returns the client implementation matching the setting's
// vendor. The type switch is exhaustive over the sealed setting set.
func NewProvider(setting model.ProviderSetting, sse *SSEClient) (Provider, error) {
	if setting == nil {
		return nil, goerr.New("provider setting is required")
	}
	switch s := setting.(type) {
	case model.OpenAISetting:
		return NewChatCompletions(s, sse), nil
	case model.GoogleSetting:
		return NewGoogle(s, sse), nil
	case model.OllamaSetting:
		return NewOllama(s, sse), nil
	default:
		return nil, goerr.New("unsupported provider setting", goerr.V("name", setting.SettingName()))
	}
}
