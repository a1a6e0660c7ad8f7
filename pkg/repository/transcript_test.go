package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/gt"
)

func TestTranscriptWritesMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.md")
	tr := repository.NewTranscript(path)
	ctx := context.Background()

	gt.NoError(t, tr.AppendMessage(ctx, model.NewTextMessage(model.RoleUser, "hello")))
	gt.NoError(t, tr.AppendMessage(ctx, model.Message{Role: model.RoleAssistant}))
	gt.NoError(t, tr.ReplaceLastAssistantMessage(ctx, "hi there"))

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	content := string(raw)
	gt.S(t, content).Contains("## user")
	gt.S(t, content).Contains("hello")
	gt.S(t, content).Contains("## assistant")
	gt.S(t, content).Contains("hi there")
}

func TestTranscriptReplaceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.md")
	tr := repository.NewTranscript(path)
	ctx := context.Background()

	gt.NoError(t, tr.AppendMessage(ctx, model.Message{Role: model.RoleAssistant}))
	gt.NoError(t, tr.ReplaceLastAssistantMessage(ctx, "partial"))
	gt.NoError(t, tr.ReplaceLastAssistantMessage(ctx, "partial plus more"))

	msgs := tr.Messages()
	gt.A(t, msgs).Length(1)
	gt.Equal(t, msgs[0].Text(), "partial plus more")

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.S(t, string(raw)).Contains("partial plus more")
}

func TestTranscriptReplaceWithoutAssistant(t *testing.T) {
	tr := repository.NewTranscript("")
	err := tr.ReplaceLastAssistantMessage(context.Background(), "orphan")
	gt.Error(t, err)
}
