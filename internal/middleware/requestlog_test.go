package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-node/internal/log"
)

func setupRouter(buf *bytes.Buffer, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(buf)))
	r.GET("/", handler)
	return r
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestLoggerUsesInboundRequestID(t *testing.T) {
	var buf bytes.Buffer
	var fromCtx string
	router := setupRouter(&buf, func(c *gin.Context) {
		fromCtx = log.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-7", fromCtx)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, "info", entry["level"])
}

func TestRequestLoggerReportsHandlerRequestID(t *testing.T) {
	var buf bytes.Buffer
	router := setupRouter(&buf, func(c *gin.Context) {
		c.Set(RequestIDKey, "generated")
		c.Status(http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "generated", entry["request_id"])
	assert.Equal(t, "error", entry["level"])
}
