package logging_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf)
	gt.V(t, logger).NotNil()

	logger.Info("stream opened", "task_id", "t-1")
	gt.S(t, buf.String()).Contains("stream opened")
}

func TestLevelThreshold(t *testing.T) {
	testCases := []struct {
		level  string
		debug  bool
		info   bool
		warn   bool
		errlvl bool
	}{
		{"debug", true, true, true, true},
		{"info", false, true, true, true},
		{"warn", false, false, true, true},
		{"warning", false, false, true, true},
		{"error", false, false, false, true},
		{"WARN", false, false, true, true},   // case-insensitive
		{"verbose", false, true, true, true}, // unknown falls back to info
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("chunk emitted")
			logger.Info("saved memory")
			logger.Warn("classifier reply was not valid JSON")
			logger.Error("provider unreachable")

			out := buf.String()
			gt.Equal(t, tc.debug, bytes.Contains([]byte(out), []byte("chunk emitted")))
			gt.Equal(t, tc.info, bytes.Contains([]byte(out), []byte("saved memory")))
			gt.Equal(t, tc.warn, bytes.Contains([]byte(out), []byte("not valid JSON")))
			gt.Equal(t, tc.errlvl, bytes.Contains([]byte(out), []byte("provider unreachable")))
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("provider", "openai")

	ctx := logging.With(context.Background(), logger)
	gt.Equal(t, logging.From(ctx), logger)

	logging.From(ctx).Info("recall finished", "hits", 3)
	out := buf.String()
	gt.S(t, out).Contains("recall finished")
	gt.S(t, out).Contains("provider")
}

func TestFromFallsBackToDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	logging.SetDefault(logging.New("warn", buf))

	// a bare context carries no logger, so the default takes over
	logger := logging.From(context.Background())
	gt.Equal(t, logger, logging.Default())

	logger.Warn("memory pipeline degraded")
	gt.S(t, buf.String()).Contains("memory pipeline degraded")
}

func TestSetDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	replacement := logging.New("debug", buf)
	logging.SetDefault(replacement)

	gt.Equal(t, logging.Default(), replacement)
	logging.Default().Debug("session transcript written")
	gt.S(t, buf.String()).Contains("transcript written")
}
