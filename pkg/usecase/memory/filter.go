package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
)

// Sampling defaults for the classifier call. Low temperature keeps the
// JSON verdict stable across runs.
var (
	classifierTemperature = 0.3
	classifierMaxTokens   = 1000
)

const classifierSystemPrompt = `You are a memory curator for a personal assistant.
You receive a numbered list of messages a user sent during conversation.
Decide which of them contain durable personal facts worth keeping long term:
identity, preferences, goals, relationships, or explicit requests to remember something.
Discard greetings, questions, and transient chatter.
Respond with JSON only, no prose, matching this schema:

%s

Set "shouldSave" to false and "messages" to an empty array when nothing is worth keeping.
For each kept message, "index" refers to its number in the input list and
"content" is the fact restated as a short standalone sentence.`

// TextGenerator produces a complete (non-streamed) reply from the
// configured provider.
type TextGenerator interface {
	GenerateText(ctx context.Context, setting model.ProviderSetting, history []model.Message, params model.GenerationParams) (string, error)
}

type classifierResponse struct {
	ShouldSave bool                `json:"shouldSave"`
	Messages   []classifierMessage `json:"messages"`
}

type classifierMessage struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Reason  string `json:"reason,omitempty"`
}

var classifierSchema = sync.OnceValue(func() string {
	schema, err := jsonschema.For[classifierResponse](nil)
	if err != nil {
		return `{"shouldSave": true, "messages": [{"index": 0, "content": "...", "reason": "..."}]}`
	}
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return `{"shouldSave": true, "messages": [{"index": 0, "content": "...", "reason": "..."}]}`
	}
	return string(raw)
})

// FilterUseCase asks an LLM which buffered candidates are actually
// worth persisting. The classifier is fail-safe: any malformed verdict
// means nothing gets saved.
type FilterUseCase struct {
	generator TextGenerator
	setting   model.ProviderSetting
	params    model.GenerationParams
}

func NewFilterUseCase(generator TextGenerator, setting model.ProviderSetting, modelID string) *FilterUseCase {
	return &FilterUseCase{
		generator: generator,
		setting:   setting,
		params: model.GenerationParams{
			Model:       model.Model{ID: modelID},
			Temperature: &classifierTemperature,
			MaxTokens:   &classifierMaxTokens,
		},
	}
}

// Filter returns the subset of items the classifier judged worth
// keeping, with content possibly condensed by the classifier. An empty
// input returns immediately without a network call.
func (uc *FilterUseCase) Filter(ctx context.Context, items []model.BufferedMemoryItem) ([]model.BufferedMemoryItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i, item.Text)
	}

	history := []model.Message{
		model.NewTextMessage(model.RoleSystem, fmt.Sprintf(classifierSystemPrompt, classifierSchema())),
		model.NewTextMessage(model.RoleUser, sb.String()),
	}

	reply, err := uc.generator.GenerateText(ctx, uc.setting, history, uc.params)
	if err != nil {
		return nil, err
	}

	verdict, ok := parseClassifierReply(reply)
	if !ok {
		logging.From(ctx).Warn("classifier reply was not valid JSON, keeping nothing", "reply", reply)
		return nil, nil
	}
	if !verdict.ShouldSave {
		return nil, nil
	}

	return selectItems(items, verdict.Messages), nil
}

var fencedBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// parseClassifierReply extracts the JSON verdict from reply. Models
// often wrap JSON in a fenced code block or surround it with prose, so
// try the fenced block first, then the outermost brace span, then the
// raw reply.
func parseClassifierReply(reply string) (*classifierResponse, bool) {
	candidates := make([]string, 0, 3)
	if m := fencedBlockPattern.FindStringSubmatch(reply); m != nil {
		candidates = append(candidates, m[1])
	}
	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		candidates = append(candidates, reply[start:end+1])
	}
	candidates = append(candidates, reply)

	for _, candidate := range candidates {
		var verdict classifierResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &verdict); err == nil {
			return &verdict, true
		}
	}
	return nil, false
}

func selectItems(items []model.BufferedMemoryItem, picked []classifierMessage) []model.BufferedMemoryItem {
	sort.Slice(picked, func(i, j int) bool { return picked[i].Index < picked[j].Index })

	var out []model.BufferedMemoryItem
	seen := make(map[int]struct{}, len(picked))
	for _, msg := range picked {
		if msg.Index < 0 || msg.Index >= len(items) {
			continue
		}
		if _, ok := seen[msg.Index]; ok {
			continue
		}
		seen[msg.Index] = struct{}{}

		item := items[msg.Index]
		if msg.Content != "" && msg.Content != item.Text {
			// the condensed text invalidates any precomputed vector;
			// drop it so the save path re-embeds
			item.Text = msg.Content
			item.Vector = nil
		}
		out = append(out, item)
	}
	return out
}
