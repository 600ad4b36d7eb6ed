package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	env := decodeEnvelope(t, resp.Body.Bytes(), &health)

	assert.True(t, env.Success)
	assert.Equal(t, EnvelopeVersion, env.V)
	assert.Equal(t, "healthy", health.Status)
	for _, name := range []string{"database", "search", "synthesis", "sse"} {
		assert.Equal(t, "healthy", health.Components[name].Status, name)
	}
	assert.Equal(t, "no connected clients", health.Components["sse"].Message)
}

func TestHealthCheck_DegradedWithoutOptionalComponents(t *testing.T) {
	ts := setupTestServer(t)
	ts.services.Search = nil
	ts.services.Synthesis = nil

	resp := ts.api.Get("/health")

	var health HealthResponse
	decodeEnvelope(t, resp.Body.Bytes(), &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "search disabled", health.Components["search"].Message)
}

func TestFormatSSEStatus(t *testing.T) {
	assert.Equal(t, "no connected clients", formatSSEStatus(0))
	assert.Equal(t, "1 connected client", formatSSEStatus(1))
	assert.Equal(t, "12 connected clients", formatSSEStatus(12))
}

func TestHealthCheck_ReportsProcessingBooks(t *testing.T) {
	ts := setupTestServer(t)
	ts.engine.block = true

	w := ts.submit(t, map[string]string{"text": "一段文字。"}, "", nil)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := ts.api.Get("/health")
	var health HealthResponse
	decodeEnvelope(t, resp.Body.Bytes(), &health)
	assert.Equal(t, "1 book processing", health.Components["synthesis"].Message)
	assert.Equal(t, "healthy", health.Components["database"].Status)
}
