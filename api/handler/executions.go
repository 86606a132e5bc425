package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/actorkit/models"
)

// ExecutionStore is the execution persistence used by the handlers.
type ExecutionStore interface {
	GetExecution(ctx context.Context, id string) (*models.ActorExecution, error)
	ListExecutions(ctx context.Context, actorID string, limit int) ([]*models.ActorExecution, int, error)
}

const maxListLimit = 100

// GetExecution returns a handler for GET /api/v1/executions/:id.
func GetExecution(s ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := s.GetExecution(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

// ListExecutions returns a handler for GET /api/v1/actors/:ref/executions.
// Results are newest first; ?limit= defaults to 20 and is capped at 100.
func ListExecutions(actors ActorStore, s ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				respondError(c, models.NewError(models.ErrCodeInvalidInput, "limit must be a positive integer", err))
				return
			}
			limit = min(n, maxListLimit)
		}

		a, err := findActor(c, actors)
		if err != nil {
			respondError(c, err)
			return
		}
		list, total, err := s.ListExecutions(c.Request.Context(), a.ID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ExecutionListResponse{Executions: list, Total: total})
	}
}
