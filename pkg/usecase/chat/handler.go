package chat

import (
	"context"
	"iter"
	"time"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
)

// checkpointInterval caps how often the growing assistant reply is
// persisted during a stream. Abnormal termination then loses at most
// this much of the reply.
const checkpointInterval = 500 * time.Millisecond

// TranscriptGateway persists the conversation transcript as a stream
// progresses.
type TranscriptGateway interface {
	AppendMessage(ctx context.Context, msg model.Message) error
	ReplaceLastAssistantMessage(ctx context.Context, text string) error
}

// StreamHandler consumes a text delta stream, forwards each chunk to
// onChunk for rendering, and checkpoints the accumulated reply through
// the gateway.
type StreamHandler struct {
	gateway  TranscriptGateway
	interval time.Duration
}

func NewStreamHandler(gateway TranscriptGateway) *StreamHandler {
	return &StreamHandler{
		gateway:  gateway,
		interval: checkpointInterval,
	}
}

// Consume drains the stream and returns the full assistant reply. The
// reply accumulated so far is persisted at most once per interval and
// once more at the end. On stream failure the partial reply is kept and
// a system message describing the failure is appended, then the error
// is returned alongside the partial text.
func (h *StreamHandler) Consume(ctx context.Context, stream iter.Seq2[string, error], onChunk func(string)) (string, error) {
	logger := logging.From(ctx)

	if err := h.gateway.AppendMessage(ctx, model.Message{Role: model.RoleAssistant}); err != nil {
		return "", err
	}

	var (
		full           []byte
		lastCheckpoint = time.Now()
	)

	for chunk, err := range stream {
		if err != nil {
			h.checkpoint(ctx, string(full))
			notice := model.Message{
				Role:  model.RoleSystem,
				Parts: []model.Part{model.TextPart{Text: model.UserMessage(err)}},
			}
			if gwErr := h.gateway.AppendMessage(ctx, notice); gwErr != nil {
				logger.Warn("failed to record stream failure", "error", gwErr)
			}
			return string(full), err
		}

		full = append(full, chunk...)
		if onChunk != nil {
			onChunk(chunk)
		}

		if time.Since(lastCheckpoint) >= h.interval {
			h.checkpoint(ctx, string(full))
			lastCheckpoint = time.Now()
		}
	}

	text := string(full)
	if err := h.gateway.ReplaceLastAssistantMessage(ctx, text); err != nil {
		return text, err
	}
	return text, nil
}

func (h *StreamHandler) checkpoint(ctx context.Context, text string) {
	if err := h.gateway.ReplaceLastAssistantMessage(ctx, text); err != nil {
		logging.From(ctx).Warn("failed to checkpoint assistant reply", "error", err)
	}
}
