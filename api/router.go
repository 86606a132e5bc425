package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/actorkit/api/handler"
	"github.com/use-agent/actorkit/api/middleware"
	"github.com/use-agent/actorkit/config"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Actors     handler.ActorStore
	Executions handler.ExecutionStore
	Runner     handler.Runner
	Pool       handler.StatsSource
	DB         handler.Pinger
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(d Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Pool, d.DB, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Actors
	protected.POST("/actors", handler.CreateActor(d.Actors))
	protected.GET("/actors/:ref", handler.GetActor(d.Actors))
	protected.PUT("/actors/:ref/filters", handler.UpdateFilters(d.Actors))

	// Executions
	protected.POST("/actors/:ref/run", handler.Run(d.Runner))
	protected.GET("/actors/:ref/executions", handler.ListExecutions(d.Actors, d.Executions))
	protected.GET("/executions/:id", handler.GetExecution(d.Executions))

	return r
}
