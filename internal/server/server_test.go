package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionstack/multicam/internal/aggregator"
	"github.com/visionstack/multicam/internal/frame"
	"github.com/visionstack/multicam/internal/infrastructure/logging"
	"github.com/visionstack/multicam/internal/journal"
)

func newTestServer(t *testing.T, withJournal bool) *Server {
	t.Helper()

	agg, err := aggregator.NewPassthrough(2, 1, 100, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(agg.Close)

	var jnl *journal.Journal
	if withJournal {
		jnl, err = journal.Open(":memory:", logging.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { jnl.Close() })
	}

	return New(Config{Host: "127.0.0.1", Port: 0}, agg, jnl, logging.NewNop())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	w := get(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["cameras"])
}

func TestStatsReflectsAggregator(t *testing.T) {
	s := newTestServer(t, false)

	s.agg.Submit(0, frame.NewImage(640, 480), 1000, frame.InvalidHardwareTimestamp)
	s.agg.WaitForIdle()

	w := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cameras   int `json:"cameras"`
		Pending   int `json:"pending"`
		Completed int `json:"completed"`
		Counters  struct {
			FramesSubmitted int64 `json:"frames_submitted"`
		} `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Cameras)
	assert.Equal(t, 1, body.Pending)
	assert.Equal(t, 0, body.Completed)
	assert.Equal(t, int64(1), body.Counters.FramesSubmitted)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	s.agg.Submit(0, frame.NewImage(640, 480), 1000, frame.InvalidHardwareTimestamp)
	s.agg.WaitForIdle()

	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "multicam_frames_submitted_total")
}

func TestEventsWithoutJournal(t *testing.T) {
	s := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/events").Code)
}

func TestEventsWithJournal(t *testing.T) {
	s := newTestServer(t, true)
	assert.Equal(t, http.StatusOK, get(t, s, "/events").Code)
}

func TestEventsLimitValidation(t *testing.T) {
	s := newTestServer(t, true)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/events?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/events?limit=nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/events?limit=5000").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/events?limit=10").Code)
}
