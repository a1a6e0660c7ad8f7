package repository

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Transcript persists a chat session to a markdown file. The file is
// rewritten on every update, which keeps it valid after a crash at any
// point of a stream.
type Transcript struct {
	mu       sync.Mutex
	path     string
	messages []model.Message
}

func NewTranscript(path string) *Transcript {
	return &Transcript{path: path}
}

func (t *Transcript) AppendMessage(ctx context.Context, msg model.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, msg)
	return t.write()
}

// ReplaceLastAssistantMessage rewrites the content of the most recent
// assistant message. Stream handlers call this to checkpoint a growing
// reply.
func (t *Transcript) ReplaceLastAssistantMessage(ctx context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == model.RoleAssistant {
			t.messages[i].Parts = []model.Part{model.TextPart{Text: text}}
			return t.write()
		}
	}
	return goerr.New("no assistant message to replace")
}

// Messages returns a copy of the transcript so far.
func (t *Transcript) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) write() error {
	if t.path == "" {
		return nil
	}

	var sb strings.Builder
	for _, msg := range t.messages {
		sb.WriteString("## ")
		sb.WriteString(string(msg.Role))
		sb.WriteString("\n\n")
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case model.TextPart:
				sb.WriteString(p.Text)
				sb.WriteString("\n")
			case model.ImagePart:
				sb.WriteString("![image](")
				sb.WriteString(p.URL)
				sb.WriteString(")\n")
			}
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(t.path, []byte(sb.String()), 0o600); err != nil {
		return goerr.Wrap(err, "failed to write transcript", goerr.V("path", t.path))
	}
	return nil
}
