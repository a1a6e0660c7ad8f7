package adapter

import (
	"bufio"
	"context"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync"

	"github.com/m-mizutani/ermine/pkg/model"
)

type activeCall struct {
	cancel context.CancelFunc
}

// SSEClient manages long-lived streaming HTTP connections keyed by task id.
// At most one call is in flight per id; starting a new stream under an
// active id cancels the prior one first.
type SSEClient struct {
	mu        sync.Mutex
	calls     map[string]*activeCall
	cancelled map[string]struct{}
}

func NewSSEClient() *SSEClient {
	return &SSEClient{
		calls:     make(map[string]*activeCall),
		cancelled: make(map[string]struct{}),
	}
}

// Stream issues the request and yields one string per SSE data line with
// the "data:" prefix stripped. Blank lines and ":" comments are dropped;
// any other line is passed through untouched, which also covers vendors
// that stream newline-delimited JSON without SSE framing. The sequence
// fails with a taxonomy error on I/O trouble, or with a cancelled error
// when the task id was cancelled via Cancel.
func (c *SSEClient) Stream(client *http.Client, req *http.Request, taskID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()

		ac := c.register(taskID, cancel)
		defer c.release(taskID, ac)

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			yield("", c.mapStreamError(taskID, err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			yield("", model.NewHTTPError(resp.StatusCode, string(body)))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if data, ok := strings.CutPrefix(line, "data:"); ok {
				line = strings.TrimSpace(data)
			}
			if !yield(line, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", c.mapStreamError(taskID, err))
		}
	}
}

// Cancel aborts the in-flight call for the task and marks it cancelled
// so its terminal error reads as a cancellation. An id with no active
// call is ignored, leaving no mark that could mislabel a later stream.
// Idempotent; never fails.
func (c *SSEClient) Cancel(taskID string) {
	c.mu.Lock()
	ac := c.calls[taskID]
	if ac != nil {
		c.cancelled[taskID] = struct{}{}
		delete(c.calls, taskID)
	}
	c.mu.Unlock()

	if ac != nil {
		ac.cancel()
	}
}

// CancelAll aborts every tracked call.
func (c *SSEClient) CancelAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.calls))
	for id, ac := range c.calls {
		cancels = append(cancels, ac.cancel)
		c.cancelled[id] = struct{}{}
		delete(c.calls, id)
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// ActiveCount reports the number of tracked in-flight calls.
func (c *SSEClient) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *SSEClient) register(taskID string, cancel context.CancelFunc) *activeCall {
	ac := &activeCall{cancel: cancel}

	c.mu.Lock()
	prev := c.calls[taskID]
	c.calls[taskID] = ac
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return ac
}

func (c *SSEClient) release(taskID string, ac *activeCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls[taskID] == ac {
		delete(c.calls, taskID)
	}
	delete(c.cancelled, taskID)
}

// mapStreamError reinterprets an I/O failure as a cancellation when the
// task id was explicitly cancelled, consuming the mark.
func (c *SSEClient) mapStreamError(taskID string, err error) error {
	c.mu.Lock()
	_, wasCancelled := c.cancelled[taskID]
	delete(c.cancelled, taskID)
	c.mu.Unlock()

	if wasCancelled {
		return model.NewCancelledError(taskID, err)
	}
	return model.WrapTransportError(err)
}
