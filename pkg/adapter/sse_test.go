package adapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestSSEStreamParsing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(": keep-alive\n"))
		w.Write([]byte("data: hello\n"))
		w.Write([]byte("\n"))
		w.Write([]byte("data:world\n"))
		w.Write([]byte(`{"ndjson":true}` + "\n"))
	}))
	defer ts.Close()

	sse := adapter.NewSSEClient()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
	gt.NoError(t, err)

	var got []string
	for line, err := range sse.Stream(ts.Client(), req, "task-1") {
		gt.NoError(t, err)
		got = append(got, line)
	}

	gt.A(t, got).Length(3)
	gt.Equal(t, got[0], "hello")
	gt.Equal(t, got[1], "world")
	gt.Equal(t, got[2], `{"ndjson":true}`)
	gt.Equal(t, sse.ActiveCount(), 0)
}

func TestSSEStreamHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	sse := adapter.NewSSEClient()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
	gt.NoError(t, err)

	var streamErr error
	for _, err := range sse.Stream(ts.Client(), req, "task-1") {
		if err != nil {
			streamErr = err
		}
	}

	gt.Error(t, streamErr)
	gt.True(t, goerr.HasTag(streamErr, model.ErrTagAuthentication))
}

func TestSSEStreamCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: first\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer ts.Close()

	sse := adapter.NewSSEClient()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
	gt.NoError(t, err)

	var (
		got       []string
		streamErr error
	)
	for line, err := range sse.Stream(ts.Client(), req, "task-1") {
		if err != nil {
			streamErr = err
			break
		}
		got = append(got, line)
		sse.Cancel("task-1")
	}

	gt.A(t, got).Length(1)
	gt.Equal(t, got[0], "first")
	gt.Error(t, streamErr)
	gt.True(t, model.IsCancelled(streamErr))
}

func TestSSECancelUnknownTask(t *testing.T) {
	sse := adapter.NewSSEClient()

	// Cancelling a task that never ran must be a no-op, twice over.
	sse.Cancel("ghost")
	sse.Cancel("ghost")
	gt.Equal(t, sse.ActiveCount(), 0)
}

func TestSSECancelUnknownTaskLeavesNoMark(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	sse := adapter.NewSSEClient()
	sse.Cancel("ghost")

	// a genuine connection failure under the same id must not be
	// mislabelled as a cancellation by the earlier no-op Cancel
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
	gt.NoError(t, err)

	var streamErr error
	for _, err := range sse.Stream(http.DefaultClient, req, "ghost") {
		if err != nil {
			streamErr = err
		}
	}

	gt.Error(t, streamErr)
	gt.False(t, model.IsCancelled(streamErr))
	gt.True(t, goerr.HasTag(streamErr, model.ErrTagNetwork))
}
