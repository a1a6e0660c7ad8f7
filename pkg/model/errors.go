package model

import (
	"context"
	"errors"
	"net"

	"github.com/m-mizutani/goerr/v2"
)

// Error taxonomy tags. Every failure surfaced by the streaming path carries
// exactly one of these, so callers classify with goerr.HasTag instead of
// matching concrete types.
var (
	ErrTagAuthentication = goerr.NewTag("authentication")
	ErrTagRateLimit      = goerr.NewTag("rate_limit")
	ErrTagServer         = goerr.NewTag("server")
	ErrTagRequest        = goerr.NewTag("request")
	ErrTagNetwork        = goerr.NewTag("network")
	ErrTagCancelled      = goerr.NewTag("cancelled")
	ErrTagProtocol       = goerr.NewTag("protocol")
	ErrTagUnknown        = goerr.NewTag("unknown")
)

// NewHTTPError classifies a non-2xx provider response.
func NewHTTPError(status int, body string) error {
	opts := []goerr.Option{goerr.V("status", status), goerr.V("body", body)}
	switch {
	case status == 401 || status == 403:
		return goerr.New("provider rejected credentials", append(opts, goerr.T(ErrTagAuthentication))...)
	case status == 429:
		return goerr.New("provider rate limit exceeded", append(opts, goerr.T(ErrTagRateLimit))...)
	case status >= 500:
		return goerr.New("provider server error", append(opts, goerr.T(ErrTagServer))...)
	case status >= 400:
		return goerr.New("invalid provider request", append(opts, goerr.T(ErrTagRequest))...)
	default:
		return goerr.New("unexpected provider response", append(opts, goerr.T(ErrTagUnknown))...)
	}
}

// NewProtocolError reports a response that was syntactically successful but
// semantically unusable, e.g. an empty body where content was mandatory.
func NewProtocolError(msg string, options ...goerr.Option) error {
	return goerr.New(msg, append(options, goerr.T(ErrTagProtocol))...)
}

// NewCancelledError marks a stream termination caused by explicit
// cancellation, distinguishable from a genuine network failure.
func NewCancelledError(taskID string, cause error) error {
	return goerr.Wrap(cause, "stream cancelled", goerr.V("task_id", taskID), goerr.T(ErrTagCancelled))
}

// WrapTransportError maps a transport-level failure into the taxonomy:
// timeouts, DNS failures, connection resets and TLS errors all become
// network errors; context cancellation becomes a cancelled error.
func WrapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return goerr.Wrap(err, "request cancelled", goerr.T(ErrTagCancelled))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(err, "request timed out", goerr.T(ErrTagNetwork))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return goerr.Wrap(err, "request timed out", goerr.T(ErrTagNetwork))
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return goerr.Wrap(err, "host resolution failed", goerr.T(ErrTagNetwork))
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return goerr.Wrap(err, "connection failed", goerr.T(ErrTagNetwork))
	}
	return goerr.Wrap(err, "stream read failed", goerr.T(ErrTagNetwork))
}

// IsCancelled reports whether the error represents explicit cancellation
// rather than a failure.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return goerr.HasTag(err, ErrTagCancelled) || errors.Is(err, context.Canceled)
}

// UserMessage renders a human-readable description for the conversation
// thread when a chat request fails.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case goerr.HasTag(err, ErrTagAuthentication):
		return "API key is invalid or expired. Check the provider settings."
	case goerr.HasTag(err, ErrTagRateLimit):
		return "Too many requests. Wait a moment and try again."
	case goerr.HasTag(err, ErrTagServer):
		return "The provider is having trouble. Try again later."
	case goerr.HasTag(err, ErrTagRequest):
		return "The request was rejected by the provider: " + err.Error()
	case goerr.HasTag(err, ErrTagNetwork):
		return "Network connection failed. Check your connectivity."
	case goerr.HasTag(err, ErrTagCancelled):
		return "Generation cancelled."
	case goerr.HasTag(err, ErrTagProtocol):
		return "The provider returned an unusable response."
	default:
		return "Unexpected error: " + err.Error()
	}
}
