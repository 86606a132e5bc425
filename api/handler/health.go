package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/actorkit/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsSource reports page pool state.
type StatsSource interface {
	Stats() models.PoolStats
}

// Pinger checks a dependency.
type Pinger interface {
	Ping() error
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than 80% of pages are leased or the database
// does not answer.
func Health(pool StatsSource, db Pinger, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}
		if db != nil && db.Ping() != nil {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
