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

// Google talks to the Google AI Studio (Gemini) REST API over SSE.
type Google struct {
	setting  model.GoogleSetting
	client   *http.Client
	sse      *SSEClient
	roulette *KeyRoulette
}

func NewGoogle(setting model.GoogleSetting, sse *SSEClient) *Google {
	return &Google{
		setting:  setting,
		client:   newHTTPClient(setting.Proxy),
		sse:      sse,
		roulette: NewKeyRoulette(),
	}
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateText collects the streaming endpoint into one complete chunk;
// the API has no separate non-streaming contract worth a second code path.
func (a *Google) GenerateText(ctx context.Context, messages []model.Message, params model.GenerationParams) (*model.MessageChunk, error) {
	var sb strings.Builder
	finishReason := "stop"

	for chunk, err := range a.StreamText(ctx, messages, params, model.NewTaskID()) {
		if err != nil {
			return nil, err
		}
		sb.WriteString(chunk.DeltaText())
		if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != "" {
			finishReason = chunk.Choices[0].FinishReason
		}
	}

	complete := model.NewTextMessage(model.RoleAssistant, sb.String())
	return &model.MessageChunk{
		ID:    uuid.New().String(),
		Model: params.Model.ID,
		Choices: []model.Choice{{
			Index:        0,
			Message:      &complete,
			FinishReason: finishReason,
		}},
	}, nil
}

func (a *Google) StreamText(ctx context.Context, messages []model.Message, params model.GenerationParams, taskID string) iter.Seq2[*model.MessageChunk, error] {
	return func(yield func(*model.MessageChunk, error) bool) {
		req, err := a.buildStreamRequest(ctx, messages, params)
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

			var resp geminiResponse
			if err := json.Unmarshal([]byte(payload), &resp); err != nil {
				continue
			}
			if len(resp.Candidates) == 0 {
				continue
			}

			candidate := resp.Candidates[0]
			var text strings.Builder
			for _, part := range candidate.Content.Parts {
				text.WriteString(part.Text)
			}

			// non-STOP finish reasons (SAFETY, MAX_TOKENS, ...) are worth
			// surfacing to the caller; a normal STOP is implicit
			finishReason := ""
			if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
				finishReason = candidate.FinishReason
			}
			if text.Len() == 0 && finishReason == "" {
				continue
			}

			delta := model.NewTextMessage(model.RoleAssistant, text.String())
			chunk := &model.MessageChunk{
				ID:    uuid.New().String(),
				Model: params.Model.ID,
				Choices: []model.Choice{{
					Index:        0,
					Delta:        &delta,
					FinishReason: finishReason,
				}},
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// ListModels filters the catalog down to models that support
// generateContent, stripping the "models/" name prefix.
func (a *Google) ListModels(ctx context.Context) ([]model.Model, error) {
	url := strings.TrimRight(a.setting.BaseURL, "/") + "/models?key=" + a.roulette.Next(a.setting.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build models request")
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
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, model.NewProtocolError("malformed models response")
	}

	var models []model.Model
	for _, m := range listing.Models {
		supported := false
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		id := strings.TrimPrefix(m.Name, "models/")
		display := m.DisplayName
		if display == "" {
			display = id
		}
		models = append(models, model.Model{ID: id, DisplayName: display})
	}
	return models, nil
}

func (a *Google) buildStreamRequest(ctx context.Context, messages []model.Message, params model.GenerationParams) (*http.Request, error) {
	if len(messages) == 0 {
		return nil, goerr.New("messages must not be empty")
	}
	if params.Model.ID == "" {
		return nil, goerr.New("model is required")
	}

	contents := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		// Gemini's role vocabulary is user/model only
		role := "model"
		if msg.Role == model.RoleUser {
			role = "user"
		}

		var parts []map[string]any
		for _, p := range msg.Parts {
			switch part := p.(type) {
			case model.TextPart:
				parts = append(parts, map[string]any{"text": part.Text})
			case model.ImagePart:
				if part.IsDataURI() {
					parts = append(parts, map[string]any{
						"inline_data": map[string]any{
							"mime_type": part.MIMEType(),
							"data":      part.Base64Data(),
						},
					})
				}
			}
		}
		contents = append(contents, map[string]any{"role": role, "parts": parts})
	}

	generationConfig := map[string]any{}
	if params.Temperature != nil {
		generationConfig["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		generationConfig["maxOutputTokens"] = *params.MaxTokens
	}
	if params.TopP != nil {
		generationConfig["topP"] = *params.TopP
	}

	raw, err := json.Marshal(map[string]any{
		"contents":         contents,
		"generationConfig": generationConfig,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal request body")
	}

	key := a.roulette.Next(a.setting.APIKey)
	url := strings.TrimRight(a.setting.BaseURL, "/") + "/models/" + params.Model.ID + ":streamGenerateContent?alt=sse&key=" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request")
	}
	for _, h := range params.CustomHeaders {
		req.Header.Add(h.Name, h.Value)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
