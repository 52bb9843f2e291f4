package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-node/internal/fanout"
	"relay-node/internal/log"
	"relay-node/internal/mocks"
	"relay-node/internal/tracecontext"
)

func setupRelayRouter(handler *RelayHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, handler, func(c *gin.Context) { c.String(http.StatusOK, "metrics") })
	return r
}

func newTestHandler(relay Relay, emitter Emitter) *RelayHandler {
	h := NewRelayHandler(relay, emitter)
	h.hostname = "node-1"
	h.addresses = func() ([]string, error) { return []string{"eth0/10.0.0.5"}, nil }
	h.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 123000000, time.UTC) }
	return h
}

func sampleResult() fanout.Result {
	return fanout.Result{
		Propagated: tracecontext.Headers{"x-request-id": "req-1"},
		Outcomes: []fanout.Outcome{
			{URL: "http://svc-a:8080/", OK: true, Elapsed: 10 * time.Millisecond},
			{URL: "http://svc-b:8080/", OK: false, Elapsed: 2 * time.Millisecond, Message: "dial tcp: connection refused"},
		},
	}
}

type reportBody struct {
	TS      string            `json:"ts"`
	Name    string            `json:"name"`
	Net     []string          `json:"net"`
	Headers map[string]string `json:"headers"`
	Results []struct {
		URL     string `json:"url"`
		OK      bool   `json:"ok"`
		Time    int64  `json:"time"`
		Message string `json:"message"`
	} `json:"results"`
}

func TestRelayReportsOutcomesInOrder(t *testing.T) {
	relay := new(mocks.RelayMock)
	emitter := new(mocks.EmitterMock)
	router := setupRelayRouter(newTestHandler(relay, emitter))

	relay.On("FanOut", mock.Anything, mock.Anything).Return(sampleResult()).Once()
	emitter.On("Emit", mock.Anything, sampleResult()).Once()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-B3-TraceId", "abc123")
	req.Header.Add("Accept", "text/plain")
	req.Header.Add("Accept", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasSuffix(rec.Body.String(), "}\n"))

	var body reportBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-10-14T09:30:00.123Z", body.TS)
	assert.Equal(t, "node-1", body.Name)
	assert.Equal(t, []string{"eth0/10.0.0.5"}, body.Net)
	assert.Equal(t, "abc123", body.Headers["x-b3-traceid"])
	assert.Equal(t, "text/plain, application/json", body.Headers["accept"])
	assert.Equal(t, "example.com", body.Headers["host"])

	require.Len(t, body.Results, 2)
	assert.Equal(t, "http://svc-a:8080/", body.Results[0].URL)
	assert.True(t, body.Results[0].OK)
	assert.Equal(t, int64(10), body.Results[0].Time)
	assert.Empty(t, body.Results[0].Message)
	assert.Equal(t, "http://svc-b:8080/", body.Results[1].URL)
	assert.False(t, body.Results[1].OK)
	assert.Equal(t, "dial tcp: connection refused", body.Results[1].Message)

	relay.AssertExpectations(t)
	emitter.AssertExpectations(t)
}

func TestRelayPassesInboundHeaders(t *testing.T) {
	relay := new(mocks.RelayMock)
	router := setupRelayRouter(newTestHandler(relay, nil))

	relay.On("FanOut", mock.Anything, mock.MatchedBy(func(h http.Header) bool {
		return h.Get("X-Request-Id") == "from-client"
	})).Return(fanout.Result{Propagated: tracecontext.Headers{"x-request-id": "from-client"}}).Once()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "from-client")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body reportBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Results)
	assert.Empty(t, body.Results)
	relay.AssertExpectations(t)
}

func TestRelayInterfaceErrorStillResponds(t *testing.T) {
	relay := new(mocks.RelayMock)
	h := newTestHandler(relay, nil)
	h.addresses = func() ([]string, error) { return nil, errors.New("no interfaces") }
	router := setupRelayRouter(h)

	relay.On("FanOut", mock.Anything, mock.Anything).Return(sampleResult()).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body reportBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{}, body.Net)
}

func TestRelayDefectBecomesServerError(t *testing.T) {
	relay := new(mocks.RelayMock)
	router := setupRelayRouter(newTestHandler(relay, nil))

	relay.On("FanOut", mock.Anything, mock.Anything).Panic("batch assembly defect").Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReadyListsPeers(t *testing.T) {
	relay := new(mocks.RelayMock)
	router := setupRelayRouter(newTestHandler(relay, nil))

	relay.On("Peers").Return([]fanout.PeerEndpoint{"http://svc-a:8080/", "http://svc-b:8080/"}).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ready bool     `json:"ready"`
		Peers []string `json:"peers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, []string{"http://svc-a:8080/", "http://svc-b:8080/"}, body.Peers)
	relay.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	router := setupRelayRouter(newTestHandler(new(mocks.RelayMock), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestMetricsRouteRegistered(t *testing.T) {
	router := setupRelayRouter(newTestHandler(new(mocks.RelayMock), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestFlattenHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "relay:3000"
	req.Header.Set("X-B3-Sampled", "1")
	req.Header.Add("Via", "a")
	req.Header.Add("Via", "b")

	assert.Equal(t, map[string]string{
		"host":         "relay:3000",
		"x-b3-sampled": "1",
		"via":          "a, b",
	}, flattenHeaders(req))
}

func TestRelayWarningsCarryPropagatedRequestID(t *testing.T) {
	relay := new(mocks.RelayMock)
	emitter := new(mocks.EmitterMock)
	h := newTestHandler(relay, emitter)
	h.addresses = func() ([]string, error) { return nil, errors.New("no interfaces") }
	var buf bytes.Buffer
	h.logger = zerolog.New(&buf)
	router := setupRelayRouter(h)

	relay.On("FanOut", mock.Anything, mock.Anything).Return(sampleResult()).Once()
	emitter.On("Emit", mock.MatchedBy(func(ctx context.Context) bool {
		return log.RequestIDFromContext(ctx) == "req-1"
	}), mock.Anything).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	emitter.AssertExpectations(t)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "failed to list network interfaces", entry["message"])
}
