// Package health reports process liveness for the ops endpoint.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsSource exposes the counts the health payload reports. The
// dispatcher implements it with goroutine-safe mirrors of the core's
// counts.
type StatsSource interface {
	Snapshot() (users, rooms int)
}

// Handler serves the health payload.
type Handler struct {
	stats   StatsSource
	started time.Time
}

// NewHandler creates a Handler reading from the given source.
func NewHandler(stats StatsSource) *Handler {
	return &Handler{stats: stats, started: time.Now()}
}

type payload struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// Healthz responds 200 with the current snapshot. A process that can
// answer at all is healthy; there are no external dependencies to
// probe.
func (h *Handler) Healthz(c *gin.Context) {
	users, rooms := h.stats.Snapshot()
	c.JSON(http.StatusOK, payload{
		Status:      "healthy",
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		Connections: users,
		Rooms:       rooms,
	})
}
