package ui_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/bucketctl/internal/backend"
	"github.com/bamsammich/bucketctl/internal/control"
	"github.com/bamsammich/bucketctl/internal/ui"
)

// decodeRecords parses one JSON log record per line.
func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var recs []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		recs = append(recs, rec)
	}
	return recs
}

func TestMultiHandlerCarriesSessionToLogFile(t *testing.T) {
	t.Parallel()

	var term, file bytes.Buffer
	logger := slog.New(ui.NewMultiHandler(
		slog.NewTextHandler(&term, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))

	var results []control.Result
	s := control.NewSocket(control.Options{
		Logger:    logger,
		SessionID: "sess-1",
		Spawner: func(uint64, chan<- backend.Delivery) (control.Backend, error) {
			return nil, errors.New("exec: bucketd: not found")
		},
	}, control.Hooks{Finished: func(r control.Result) { results = append(results, r) }})

	s.Connect(control.Server{Host: "store.example", User: "alice"})
	require.Len(t, results, 1)
	assert.True(t, results[0].Code.Disconnected)

	// The terminal handler only sees the error, with the session attached.
	assert.Contains(t, term.String(), "backend could not be started")
	assert.Contains(t, term.String(), "session=sess-1")
	assert.NotContains(t, term.String(), "level=DEBUG")

	// The log file gets every record, each tagged with the session.
	recs := decodeRecords(t, &file)
	require.NotEmpty(t, recs)
	var sawStartFailure, sawDebug bool
	for _, rec := range recs {
		assert.Equal(t, "sess-1", rec["session"], "record %v", rec["msg"])
		switch {
		case rec["msg"] == "backend could not be started":
			sawStartFailure = true
			assert.Equal(t, "spawn backend: exec: bucketd: not found", rec["error"])
		case rec["level"] == "DEBUG":
			sawDebug = true
		}
	}
	assert.True(t, sawStartFailure)
	assert.True(t, sawDebug)
}

func TestMultiHandlerEventGroup(t *testing.T) {
	t.Parallel()

	var file bytes.Buffer
	h := ui.NewMultiHandler(slog.NewJSONHandler(&file, nil))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("session", "sess-2")}).WithGroup("transfer"))

	logger.Info("bucketctl.event", "type", "TransferCompleted", "blake3", "ab12")

	recs := decodeRecords(t, &file)
	require.Len(t, recs, 1)
	assert.Equal(t, "sess-2", recs[0]["session"])
	group, ok := recs[0]["transfer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "TransferCompleted", group["type"])
	assert.Equal(t, "ab12", group["blake3"])
}

func TestMultiHandlerEnabledByQuietestHandler(t *testing.T) {
	t.Parallel()

	quiet := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := ui.NewMultiHandler(quiet)
	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))

	file := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	h = ui.NewMultiHandler(quiet, file)
	assert.True(t, h.Enabled(t.Context(), slog.LevelDebug))
}
