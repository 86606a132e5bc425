// Package planner asks an LLM for the page, script and selectors that
// satisfy an extraction intent, and caches validated answers.
package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/use-agent/actorkit/cache"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/metrics"
	"github.com/use-agent/actorkit/models"
	"golang.org/x/sync/singleflight"
)

// Completer is the chat completion the planner depends on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
	Temperature() float64
}

// Request is one planning request.
type Request struct {
	Namespace string
	Intent    string
	Context   map[string]any

	// ScriptHint is an actor's stored script offered to the model.
	ScriptHint string
}

// Planner produces validated planning results.
type Planner struct {
	llm           Completer
	cache         *cache.Cache[*models.PlanningResult]
	group         singleflight.Group
	timeout       time.Duration
	maxPagesLimit int
}

// New creates a Planner.
func New(llm Completer, cfg config.PlannerConfig, maxPagesLimit int) *Planner {
	return &Planner{
		llm:           llm,
		cache:         cache.New[*models.PlanningResult](cfg.CacheTTL, cfg.CacheMaxEntries),
		timeout:       cfg.Timeout,
		maxPagesLimit: maxPagesLimit,
	}
}

// Close releases the cache's background goroutine.
func (p *Planner) Close() { p.cache.Close() }

// Fingerprint is the cache key of req under the given model options.
// Context maps are encoded with sorted keys so equal contexts match.
func Fingerprint(req Request, model string, temperature float64) string {
	ctx, _ := json.Marshal(req.Context)
	return cache.Key(
		req.Namespace,
		req.Intent,
		string(ctx),
		req.ScriptHint,
		model,
		strconv.FormatFloat(temperature, 'f', -1, 64),
	)
}

// Plan returns a planning result for req. Identical concurrent requests
// share one model call and successful answers are cached. Every returned
// result is a private copy.
func (p *Planner) Plan(ctx context.Context, req Request) (*models.PlanningResult, error) {
	key := Fingerprint(req, p.llm.Model(), p.llm.Temperature())

	if res, ok := p.cache.Get(key); ok {
		metrics.PlannerCache.WithLabelValues("hit").Inc()
		return clone(res), nil
	}
	metrics.PlannerCache.WithLabelValues("miss").Inc()

	// The shared call must not die with whichever caller started it, but each
	// caller stops waiting at its own deadline.
	ch := p.group.DoChan(key, func() (any, error) {
		return p.plan(context.WithoutCancel(ctx), req, key)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			slog.Debug("planner: shared in-flight plan", "namespace", req.Namespace)
		}
		return clone(r.Val.(*models.PlanningResult)), nil
	case <-ctx.Done():
		return nil, models.NewError(models.ErrCodeTimeout, "planning did not finish before the run deadline", ctx.Err())
	}
}

func (p *Planner) plan(ctx context.Context, req Request, key string) (*models.PlanningResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.llm.Complete(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return nil, err
	}

	res, err := Parse(raw, p.maxPagesLimit)
	if err != nil {
		slog.Warn("planner: rejected answer", "namespace", req.Namespace, "error", err)
		return nil, err
	}

	p.cache.Set(key, res)
	slog.Info("planner: planned",
		"namespace", req.Namespace,
		"url", res.URL,
		"selectors", len(res.Selectors),
		"paginated", res.Pagination != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func clone(r *models.PlanningResult) *models.PlanningResult {
	cp := *r
	cp.Selectors = maps.Clone(r.Selectors)
	if r.Pagination != nil {
		pg := *r.Pagination
		cp.Pagination = &pg
	}
	return &cp
}
