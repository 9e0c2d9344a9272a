package logger_test

import (
	"bytes"
	"encoding/json/v2"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karlokarate/FishIT-Player-sub011/internal/logger"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Format: logger.FormatJSON})

	log.Info("catalog opened", "path", "/data/catalog", "works", 42)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "catalog opened", record["msg"])
	assert.Equal(t, "/data/catalog", record["path"])
	assert.EqualValues(t, 42, record["works"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Format: logger.FormatConsole})

	log.Warn("slow scan", "elapsed", "3s")

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "slow scan")
	assert.Contains(t, out, "elapsed=3s")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Format: logger.FormatConsole, Level: slog.LevelWarn})

	log.Debug("noise")
	log.Info("more noise")
	log.Error("the one that matters")

	out := buf.String()
	assert.NotContains(t, out, "noise")
	assert.Contains(t, out, "the one that matters")
}

func TestWithAttrsCarriedThrough(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Format: logger.FormatConsole})

	log.With("run_id", "run-abc").Info("batch done", "accepted", 9)

	out := buf.String()
	assert.Contains(t, out, "run_id=run-abc")
	assert.Contains(t, out, "accepted=9")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("bogus"))
}
