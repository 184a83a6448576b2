package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rosterlab/rostersync/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	previous := *logging.Default()
	defer logging.SetDefault(previous)

	// Capture output from the package-level event starters.
	buf := &bytes.Buffer{}
	logging.SetDefault(logging.New(buf).Level(zerolog.DebugLevel))

	logging.Debug().Msg("debug message")
	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")
	logging.Error().Msg("error message")
	logging.Err(nil).Msg("no error attached")

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "warning message", "error message"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

func TestContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf)

	ctx := logging.WithLogger(context.Background(), &logger)
	ctx = logging.WithRunID(ctx, "run-42")
	ctx = logging.WithRoutine(ctx, "sync_rosters")

	logging.Ctx(ctx).Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{"run-42", "sync_rosters", "test message"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}

	if got := logging.RunID(ctx); got != "run-42" {
		t.Errorf("Expected run id run-42, got %q", got)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if logging.FromContext(context.Background()) != logging.Default() {
		t.Error("Expected the default logger for a bare context")
	}
	if logging.FromContext(nil) != logging.Default() {
		t.Error("Expected the default logger for a nil context")
	}
}
