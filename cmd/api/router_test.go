package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHealthCheckHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		db         error
		redis      error
		wantStatus int
		wantHealth string
	}{
		{name: "all healthy", wantStatus: http.StatusOK, wantHealth: "ok"},
		{name: "redis down degrades", redis: errors.New("refused"), wantStatus: http.StatusOK, wantHealth: "degraded"},
		{name: "database down fails", db: errors.New("refused"), wantStatus: http.StatusServiceUnavailable, wantHealth: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", healthCheckHandler("1.2.3", map[string]healthChecker{
				"database": stubChecker{err: tt.db},
				"redis":    stubChecker{err: tt.redis},
			}))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Status   string            `json:"status"`
				Version  string            `json:"version"`
				Services map[string]string `json:"services"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantHealth, body.Status)
			assert.Equal(t, "1.2.3", body.Version)
			assert.Len(t, body.Services, 2)
		})
	}
}
