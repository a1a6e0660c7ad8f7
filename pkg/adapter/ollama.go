package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Ollama talks to an Ollama server. Streaming responses are
// newline-delimited JSON objects with a "done" flag rather than SSE.
type Ollama struct {
	setting model.OllamaSetting
	client  *http.Client
	sse     *SSEClient
}

func NewOllama(setting model.OllamaSetting, sse *SSEClient) *Ollama {
	return &Ollama{
		setting: setting,
		client:  newHTTPClient(setting.Proxy),
		sse:     sse,
	}
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (a *Ollama) GenerateText(ctx context.Context, messages []model.Message, params model.GenerationParams) (*model.MessageChunk, error) {
	req, err := a.buildChatRequest(ctx, messages, params, false)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, model.WrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, model.NewHTTPError(resp.StatusCode, string(body))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, model.NewProtocolError("malformed chat response")
	}

	complete := model.NewTextMessage(model.RoleAssistant, out.Message.Content)
	return &model.MessageChunk{
		ID:    uuid.New().String(),
		Model: out.Model,
		Choices: []model.Choice{{
			Index:        0,
			Message:      &complete,
			FinishReason: "stop",
		}},
	}, nil
}

func (a *Ollama) StreamText(ctx context.Context, messages []model.Message, params model.GenerationParams, taskID string) iter.Seq2[*model.MessageChunk, error] {
	return func(yield func(*model.MessageChunk, error) bool) {
		req, err := a.buildChatRequest(ctx, messages, params, true)
		if err != nil {
			yield(nil, err)
			return
		}

		for payload, err := range a.sse.Stream(a.client, req, taskID) {
			if err != nil {
				yield(nil, err)
				return
			}

			var event ollamaChatResponse
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}
			if event.Message.Content != "" {
				delta := model.NewTextMessage(model.RoleAssistant, event.Message.Content)
				chunk := &model.MessageChunk{
					ID:      uuid.New().String(),
					Model:   event.Model,
					Choices: []model.Choice{{Index: 0, Delta: &delta}},
				}
				if !yield(chunk, nil) {
					return
				}
			}
			if event.Done {
				return
			}
		}
	}
}

func (a *Ollama) ListModels(ctx context.Context) ([]model.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(a.setting.BaseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build tags request")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, model.WrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, model.NewHTTPError(resp.StatusCode, string(body))
	}

	var listing struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, model.NewProtocolError("malformed tags response")
	}

	models := make([]model.Model, 0, len(listing.Models))
	for _, m := range listing.Models {
		models = append(models, model.Model{ID: m.Name, DisplayName: m.Name})
	}
	return models, nil
}

func (a *Ollama) buildChatRequest(ctx context.Context, messages []model.Message, params model.GenerationParams, stream bool) (*http.Request, error) {
	if params.Model.ID == "" {
		return nil, goerr.New("model is required")
	}

	encoded := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		m := ollamaMessage{Role: string(msg.Role), Content: msg.Text()}
		for _, p := range msg.Parts {
			if img, ok := p.(model.ImagePart); ok && img.IsDataURI() {
				m.Images = append(m.Images, img.Base64Data())
			}
		}
		encoded = append(encoded, m)
	}

	body := map[string]any{
		"model":    params.Model.ID,
		"messages": encoded,
		"stream":   stream,
	}
	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}
	for _, field := range params.CustomBody {
		body[field.Key] = field.Value
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.setting.BaseURL, "/")+"/api/chat", bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request")
	}
	for _, h := range params.CustomHeaders {
		req.Header.Add(h.Name, h.Value)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
