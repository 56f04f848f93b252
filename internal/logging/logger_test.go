package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasilov/vk-test/internal/logging"
)

func Test_ParseLevel_Accepts_Known_Names_Case_Insensitively(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "Warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		require.NoError(t, err, "ParseLevel(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
	}

	_, err := logging.ParseLevel("loud")
	require.ErrorIs(t, err, logging.ErrInvalidLevel)
}

func Test_New_Writes_JSON_Records_With_Map_Fields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log, err := logging.New(&buf, logging.FormatJSON, slog.LevelDebug)
	require.NoError(t, err)

	log.WithPath("/tmp/map.bin").LogPut(context.Background(), 7, 3, nil)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))

	assert.Equal(t, "put completed", rec["msg"])
	assert.Equal(t, "/tmp/map.bin", rec["path"])
	assert.InDelta(t, 7, rec["key"], 0)
	assert.InDelta(t, 3, rec["prev"], 0)
}

func Test_New_Filters_Records_Below_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log, err := logging.New(&buf, logging.FormatText, slog.LevelInfo)
	require.NoError(t, err)

	ctx := context.Background()

	log.LogPut(ctx, 1, 0, nil)
	assert.Empty(t, buf.String(), "debug record must be dropped at info")

	log.LogPut(ctx, 1, 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "put failed")
	assert.Contains(t, buf.String(), "error=boom")
}

func Test_New_Returns_ErrInvalidFormat_When_Format_Unknown(t *testing.T) {
	t.Parallel()

	_, err := logging.New(&bytes.Buffer{}, "xml", slog.LevelInfo)
	require.ErrorIs(t, err, logging.ErrInvalidFormat)
}

func Test_NoopLogger_Discards_Everything(t *testing.T) {
	t.Parallel()

	log := logging.NoopLogger()
	require.False(t, log.Enabled(context.Background(), slog.LevelError))
}
