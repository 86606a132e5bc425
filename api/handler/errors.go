package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/store"
)

// respondError writes err as an ErrorResponse with the matching status.
func respondError(c *gin.Context, err error) {
	e := toModelError(err)
	c.JSON(mapErrorToStatus(e), models.ErrorResponse{Success: false, Error: e.ToDetail()})
}

func invalidInput(c *gin.Context, err error) {
	respondError(c, models.NewError(models.ErrCodeInvalidInput, err.Error(), err))
}

// toModelError translates store sentinels before falling back to AsError.
func toModelError(err error) *models.Error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return models.NewError(models.ErrCodeActorExists, "an actor with this namespace already exists", err)
	case errors.Is(err, store.ErrNotFound):
		var me *models.Error
		if errors.As(err, &me) {
			return me
		}
		return models.NewError(models.ErrCodeNotFound, "not found", err)
	default:
		return models.AsError(err)
	}
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.Error) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeActorNotFound, models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeActorExists:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeCapture, models.ErrCodePlanning,
		models.ErrCodeLLMFailure, models.ErrCodeLLMAuthFailure:
		return http.StatusBadGateway // 502
	case models.ErrCodeLaunch, models.ErrCodeLLMRateLimited:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
