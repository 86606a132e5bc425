package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/actorkit/api/middleware"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/store"
)

// ActorStore is the actor persistence used by the handlers.
type ActorStore interface {
	CreateActor(ctx context.Context, a *models.Actor) error
	FindActor(ctx context.Context, ref string) (*models.Actor, error)
	UpdateResponseFilters(ctx context.Context, id string, f *models.ResponseFilters) error
}

// CreateActor returns a handler for POST /api/v1/actors.
func CreateActor(s ActorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateActorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}

		a := &models.Actor{
			Namespace:       strings.TrimSpace(req.Namespace),
			Title:           req.Title,
			Description:     req.Description,
			Icon:            req.Icon,
			Script:          req.Script,
			ResponseFilters: req.ResponseFilters,
			UserID:          c.GetString(middleware.KeyAPIKeyID),
		}
		if err := s.CreateActor(c.Request.Context(), a); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

// GetActor returns a handler for GET /api/v1/actors/:ref.
func GetActor(s ActorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := findActor(c, s)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// UpdateFilters returns a handler for PUT /api/v1/actors/:ref/filters.
// An empty body or JSON null clears the stored filters.
func UpdateFilters(s ActorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			invalidInput(c, err)
			return
		}
		var f *models.ResponseFilters
		if body := bytes.TrimSpace(raw); len(body) > 0 && !bytes.Equal(body, []byte("null")) {
			f = &models.ResponseFilters{}
			if err := json.Unmarshal(body, f); err != nil {
				invalidInput(c, err)
				return
			}
		}
		if f != nil && f.Limit < 0 {
			respondError(c, models.NewError(models.ErrCodeInvalidInput, "limit must not be negative", nil))
			return
		}

		a, err := findActor(c, s)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.UpdateResponseFilters(c.Request.Context(), a.ID, f); err != nil {
			respondError(c, err)
			return
		}
		a.ResponseFilters = f
		c.JSON(http.StatusOK, a)
	}
}

func findActor(c *gin.Context, s ActorStore) (*models.Actor, error) {
	ref := c.Param("ref")
	a, err := s.FindActor(c.Request.Context(), ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewActorNotFoundError(ref)
	}
	return a, err
}
