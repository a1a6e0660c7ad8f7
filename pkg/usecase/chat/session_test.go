package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/m-mizutani/gt"
)

func openAIStreamServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
}

func TestStreamTextEndToEnd(t *testing.T) {
	ts := openAIStreamServer(t,
		`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"The quick "}}]}`,
		`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"brown fox"}}]}`,
		`data: [DONE]`,
	)
	defer ts.Close()

	setting := model.OpenAISetting{Name: "test", BaseURL: ts.URL, APIKey: "sk", Proxy: model.ProxyNone{}}
	uc := chat.New(chat.WithChunkSize(8))

	var chunks []string
	for chunk, err := range uc.StreamText(context.Background(), setting,
		[]model.Message{model.NewTextMessage(model.RoleUser, "go")},
		model.GenerationParams{Model: model.Model{ID: "gpt-test"}}, model.NewTaskID()) {
		gt.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	// rebuffered into fixed-size chunks with a trailing remainder
	gt.A(t, chunks).Length(3)
	gt.Equal(t, chunks[0], "The quic")
	gt.Equal(t, chunks[1], "k brown ")
	gt.Equal(t, chunks[2], "fox")
}

func TestGenerateTextEndToEnd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`))
	}))
	defer ts.Close()

	setting := model.OpenAISetting{Name: "test", BaseURL: ts.URL, APIKey: "sk", Proxy: model.ProxyNone{}}
	uc := chat.New()

	reply, err := uc.GenerateText(context.Background(), setting,
		[]model.Message{model.NewTextMessage(model.RoleUser, "go")},
		model.GenerationParams{Model: model.Model{ID: "gpt-test"}})
	gt.NoError(t, err)
	gt.Equal(t, reply, "done")
}

func TestGenerateTextCancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer ts.Close()

	setting := model.OpenAISetting{Name: "test", BaseURL: ts.URL, APIKey: "sk", Proxy: model.ProxyNone{}}
	uc := chat.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// interrupting a one-shot request cancels its context; that must
	// surface as a cancellation, not a network failure
	_, err := uc.GenerateText(ctx, setting,
		[]model.Message{model.NewTextMessage(model.RoleUser, "go")},
		model.GenerationParams{Model: model.Model{ID: "gpt-test"}})
	gt.Error(t, err)
	gt.True(t, model.IsCancelled(err))
}

func TestStreamTextUnknownProviderSetting(t *testing.T) {
	uc := chat.New()

	var streamErr error
	for _, err := range uc.StreamText(context.Background(), nil, nil,
		model.GenerationParams{}, model.NewTaskID()) {
		streamErr = err
	}
	gt.Error(t, streamErr)
}
