// Package ops assembles the operational HTTP surface: health and
// Prometheus metrics. It is separate from the lobby listener and
// disabled unless METRICS_ADDR is set.
package ops

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaya3/incognita-socket-server/internal/v1/health"
)

// NewRouter builds the ops router with /healthz and /metrics.
func NewRouter(h *health.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
