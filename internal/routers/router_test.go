package routers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codraw/internal/api"
	"codraw/internal/session"
)

func TestRoutes(t *testing.T) {
	registry := session.NewRegistry(time.Minute, zap.NewNop())
	h := api.NewHandlers(zap.NewNop(), registry, 50<<20)
	server := httptest.NewServer(New(h))
	defer server.Close()

	for _, path := range []string{"/healthz", "/api/v1/status", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
