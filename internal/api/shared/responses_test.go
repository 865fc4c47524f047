package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefaultLogs(t *testing.T) *strings.Builder {
	t.Helper()
	var buf strings.Builder
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/1/progress", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]interface{}{"percent": 50.0, "total_batches": 4})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50.0, body["percent"])
	assert.Equal(t, float64(4), body["total_batches"])
}

func TestRespondWithJSONNil(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, nil)
	assert.Equal(t, "null\n", w.Body.String())
}

func TestRespondWithJSONEncodingError(t *testing.T) {
	logs := captureDefaultLogs(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "failed to encode JSON response")
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/batches/x/claim", nil)
	req = req.WithContext(WithTraceID(context.Background(), "trace-123"))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusConflict, "Batch already claimed", WithErrorKind("already_claimed"))

	assert.Equal(t, http.StatusConflict, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Batch already claimed", body.Error)
	assert.Equal(t, "already_claimed", body.Kind)
	assert.Equal(t, "trace-123", body.TraceID)
}

func TestRespondWithErrorNoTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusUnauthorized, "Unauthorized")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Unauthorized", body["error"])
	assert.NotContains(t, body, "trace_id")
	assert.NotContains(t, body, "kind")
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		err       error
		opts      []ResponseOption
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, err: errors.New("connection reset"), wantLevel: "ERROR"},
		{name: "client error", status: http.StatusBadRequest, err: errors.New("bad labels"), wantLevel: "DEBUG"},
		{name: "elevated client error", status: http.StatusForbidden, err: errors.New("not author"), opts: []ResponseOption{WithElevatedLogLevel()}, wantLevel: "WARN"},
		{name: "rate limited", status: http.StatusTooManyRequests, err: errors.New("slow down"), wantLevel: "WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logs := captureDefaultLogs(t)
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			req = req.WithContext(WithTraceID(context.Background(), "trace-abc"))
			w := httptest.NewRecorder()

			RespondWithErrorAndLog(w, req, tc.status, "safe message", tc.err, tc.opts...)

			assert.Equal(t, tc.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "safe message", body.Error)
			assert.Equal(t, "trace-abc", body.TraceID)

			out := logs.String()
			assert.Contains(t, out, "level="+tc.wantLevel)
			assert.Contains(t, out, "trace_id=trace-abc")
			assert.Contains(t, out, "error_type=")
		})
	}
}

func TestRespondWithErrorAndLogRedactsDetails(t *testing.T) {
	logs := captureDefaultLogs(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	err := errors.New("dial postgres://labelhive:hunter2secret@db:5432/labelhive failed")
	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "An unexpected error occurred", err)

	assert.NotContains(t, logs.String(), "hunter2secret")
	assert.NotContains(t, w.Body.String(), "postgres://")
}
