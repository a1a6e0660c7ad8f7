package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultChatCompletionsPath = "/chat/completions"
	defaultModelsPath          = "/models"
	sseDoneSentinel            = "[DONE]"
)

// ChatCompletions talks to any OpenAI-compatible chat completions backend.
type ChatCompletions struct {
	setting  model.OpenAISetting
	client   *http.Client
	sse      *SSEClient
	roulette *KeyRoulette
}

func NewChatCompletions(setting model.OpenAISetting, sse *SSEClient) *ChatCompletions {
	return &ChatCompletions{
		setting:  setting,
		client:   newHTTPClient(setting.Proxy),
		sse:      sse,
		roulette: NewKeyRoulette(),
	}
}

// Wire DTOs. The same chunk shape covers both streaming (delta) and
// non-streaming (message) responses.
type openAIChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Index        int            `json:"index"`
	Delta        *openAIContent `json:"delta,omitempty"`
	Message      *openAIContent `json:"message,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
}

type openAIContent struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

func (c *openAIChunk) toChunk() *model.MessageChunk {
	out := &model.MessageChunk{ID: c.ID, Model: c.Model}
	for _, choice := range c.Choices {
		mc := model.Choice{Index: choice.Index, FinishReason: choice.FinishReason}
		if choice.Delta != nil {
			m := model.NewTextMessage(model.RoleAssistant, choice.Delta.Content)
			mc.Delta = &m
		} else if choice.Message != nil {
			m := model.NewTextMessage(model.RoleAssistant, choice.Message.Content)
			mc.Message = &m
		}
		out.Choices = append(out.Choices, mc)
	}
	return out
}

func (a *ChatCompletions) GenerateText(ctx context.Context, messages []model.Message, params model.GenerationParams) (*model.MessageChunk, error) {
	req, err := a.buildRequest(ctx, messages, params, false)
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.WrapTransportError(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, model.NewProtocolError("empty completion response body")
	}

	var chunk openAIChunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return nil, model.NewProtocolError("malformed completion response", goerr.V("body", string(body)))
	}
	return chunk.toChunk(), nil
}

func (a *ChatCompletions) StreamText(ctx context.Context, messages []model.Message, params model.GenerationParams, taskID string) iter.Seq2[*model.MessageChunk, error] {
	return func(yield func(*model.MessageChunk, error) bool) {
		req, err := a.buildRequest(ctx, messages, params, true)
		if err != nil {
			yield(nil, err)
			return
		}

		for payload, err := range a.sse.Stream(a.client, req, taskID) {
			if err != nil {
				yield(nil, err)
				return
			}
			if payload == sseDoneSentinel {
				return
			}
			var chunk openAIChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				// keepalive or comment payload, skip
				continue
			}
			if !yield(chunk.toChunk(), nil) {
				return
			}
		}
	}
}

func (a *ChatCompletions) ListModels(ctx context.Context) ([]model.Model, error) {
	path := a.setting.ModelsPath
	if path == "" {
		path = defaultModelsPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(a.setting.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build models request")
	}
	req.Header.Set("Authorization", "Bearer "+a.roulette.Next(a.setting.APIKey))

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
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, model.NewProtocolError("malformed models response")
	}

	models := make([]model.Model, 0, len(listing.Data))
	for _, m := range listing.Data {
		models = append(models, model.Model{ID: m.ID, DisplayName: m.ID})
	}
	return models, nil
}

func (a *ChatCompletions) buildRequest(ctx context.Context, messages []model.Message, params model.GenerationParams, stream bool) (*http.Request, error) {
	if len(messages) == 0 {
		return nil, goerr.New("messages must not be empty")
	}
	if params.Model.ID == "" {
		return nil, goerr.New("model is required")
	}

	body := map[string]any{
		"model":    params.Model.ID,
		"messages": encodeOpenAIMessages(messages),
		"stream":   stream,
	}
	if params.Temperature != nil {
		body["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		body["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		body["max_tokens"] = *params.MaxTokens
	}
	for _, field := range params.CustomBody {
		body[field.Key] = field.Value
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal request body")
	}

	path := a.setting.ChatCompletionsPath
	if path == "" {
		path = defaultChatCompletionsPath
	}
	url := strings.TrimRight(a.setting.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("url", url))
	}
	for _, h := range params.CustomHeaders {
		req.Header.Add(h.Name, h.Value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.roulette.Next(a.setting.APIKey))
	return req, nil
}

// encodeOpenAIMessages renders text-only messages as a plain content string
// and multimodal ones as the content-part array form.
func encodeOpenAIMessages(messages []model.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		hasImage := false
		for _, p := range msg.Parts {
			if _, ok := p.(model.ImagePart); ok {
				hasImage = true
				break
			}
		}

		entry := map[string]any{"role": string(msg.Role)}
		if !hasImage {
			entry["content"] = msg.Text()
			out = append(out, entry)
			continue
		}

		var parts []map[string]any
		for _, p := range msg.Parts {
			switch part := p.(type) {
			case model.TextPart:
				parts = append(parts, map[string]any{"type": "text", "text": part.Text})
			case model.ImagePart:
				parts = append(parts, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": part.URL},
				})
			}
		}
		entry["content"] = parts
		out = append(out, entry)
	}
	return out
}
