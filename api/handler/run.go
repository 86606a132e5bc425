package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/actorkit/models"
)

// Runner executes actor runs.
type Runner interface {
	Run(ctx context.Context, req *models.RunRequest) (*models.RunResponse, error)
}

// Run returns a handler for POST /api/v1/actors/:ref/run.
//
// A failed execution still answers with its RunResponse so the caller gets
// the execution id and any partial data; the status code reflects the
// failure.
func Run(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		req.ActorRef = c.Param("ref")
		req.Defaults()

		resp, err := r.Run(c.Request.Context(), &req)
		if err != nil {
			if resp == nil {
				respondError(c, err)
				return
			}
			c.JSON(mapErrorToStatus(toModelError(err)), resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
