// Package engine runs one actor execution end to end: plan, open a page,
// capture responses, run the script across pages and record the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/actorkit/browser"
	"github.com/use-agent/actorkit/capture"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/pagination"
	"github.com/use-agent/actorkit/planner"
	"github.com/use-agent/actorkit/probe"
)

// Planner proposes the page and script for an intent.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (*models.PlanningResult, error)
}

// PageSource hands out pages with scoped release.
type PageSource interface {
	Acquire(ctx context.Context) (*browser.Page, func(), error)
}

// Capturer records network responses while a page navigates.
type Capturer interface {
	Capture(ctx context.Context, page *browser.Page, target string, opts capture.Options) ([]*models.CapturedResponse, error)
}

// Traverser runs a script across paginated pages.
type Traverser interface {
	Traverse(ctx context.Context, page pagination.Page, script string, bindings map[string]any, pager *models.Pagination) pagination.Outcome
}

// Prober counts selector matches on the current page.
type Prober interface {
	Probe(ctx context.Context, page probe.HTMLSource, selectors map[string]string) (map[string]int, error)
}

// Tracker persists execution state.
type Tracker interface {
	Start(ctx context.Context, actorRef string) (*models.ActorExecution, *models.Actor, error)
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, results any) error
	Fail(ctx context.Context, id string, cause error) error
}

// Engine wires the stages together.
type Engine struct {
	tracker   Tracker
	planner   Planner
	pages     PageSource
	capturer  Capturer
	traverser Traverser
	prober    Prober
}

// New creates an Engine.
func New(tracker Tracker, pl Planner, pages PageSource, capturer Capturer, traverser Traverser, prober Prober) *Engine {
	return &Engine{
		tracker:   tracker,
		planner:   pl,
		pages:     pages,
		capturer:  capturer,
		traverser: traverser,
		prober:    prober,
	}
}

// Run executes req. When the actor does not resolve no execution exists and
// only an error is returned. Otherwise the response is always non-nil and
// describes a terminal execution; err is set when that execution failed.
func (e *Engine) Run(ctx context.Context, req *models.RunRequest) (resp *models.RunResponse, err error) {
	req.Defaults()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
	defer cancel()

	exec, actor, err := e.tracker.Start(ctx, req.ActorRef)
	if err != nil {
		return nil, err
	}
	log := slog.With("execution_id", exec.ID, "actor", actor.Namespace)

	resp = &models.RunResponse{
		ExecutionID: exec.ID,
		Status:      models.StatusPending,
		ScrapedData: []*models.CapturedResponse{},
		Result:      map[string]any{},
	}

	defer func() {
		if p := recover(); p != nil {
			err = models.NewError(models.ErrCodeInternal, fmt.Sprintf("execution panicked: %v", p), nil)
			log.Error("execution panicked", "panic", p)
			e.fail(ctx, exec.ID, resp, err)
		}
		resp.Timing.TotalMs = time.Since(start).Milliseconds()
	}()

	if err := e.tracker.MarkRunning(ctx, exec.ID); err != nil {
		e.fail(ctx, exec.ID, resp, err)
		return resp, err
	}
	resp.Status = models.StatusRunning

	if err := e.execute(ctx, actor, req, resp); err != nil {
		log.Warn("execution failed", "error", err)
		e.fail(ctx, exec.ID, resp, err)
		return resp, err
	}

	resp.Success = true
	resp.Status = models.StatusCompleted
	resp.Timing.TotalMs = time.Since(start).Milliseconds()
	if err := e.tracker.Complete(ctx, exec.ID, resp); err != nil {
		resp.Success = false
		e.fail(ctx, exec.ID, resp, err)
		return resp, err
	}
	log.Info("execution completed",
		"url", resp.URL,
		"responses", len(resp.ScrapedData),
		"pages", resp.PagesVisited,
		"total_ms", resp.Timing.TotalMs,
	)
	return resp, nil
}

func (e *Engine) execute(ctx context.Context, actor *models.Actor, req *models.RunRequest, resp *models.RunResponse) (err error) {
	filters := actor.ResponseFilters
	if req.Filters != nil {
		filters = req.Filters
	}

	t := time.Now()
	plan, err := e.planner.Plan(ctx, planner.Request{
		Namespace:  actor.Namespace,
		Intent:     req.Intent,
		Context:    req.Context,
		ScriptHint: actor.Script,
	})
	resp.Timing.PlanningMs = time.Since(t).Milliseconds()
	if err != nil {
		return err
	}

	script := plan.Script
	if req.Script != "" {
		script = req.Script
	}
	resp.URL = plan.URL
	resp.Selectors = plan.Selectors
	resp.GeneratedScript = script

	page, release, err := e.pages.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			page.ReportFailure()
		}
		release()
	}()

	t = time.Now()
	responses, err := e.capturer.Capture(ctx, page, plan.URL, capture.Options{
		MatchCriteria: req.MatchCriteria,
		Filters:       filters,
	})
	resp.Timing.CaptureMs = time.Since(t).Milliseconds()
	if err != nil {
		var capErr *models.CaptureError
		if errors.As(err, &capErr) {
			resp.ScrapedData = capture.Finalize(capErr.Partial, filters)
		}
		return err
	}
	resp.ScrapedData = responses

	if len(plan.Selectors) > 0 {
		matches, err := e.prober.Probe(ctx, page, plan.Selectors)
		if err != nil {
			slog.Warn("selector probe failed", "url", plan.URL, "error", err)
		}
		resp.SelectorMatches = matches
	}

	t = time.Now()
	bindings := map[string]any{
		"context":   req.Context,
		"intent":    req.Intent,
		"url":       plan.URL,
		"selectors": plan.Selectors,
	}
	out := e.traverser.Traverse(ctx, page, script, bindings, plan.Pagination)
	resp.Timing.ScriptMs = time.Since(t).Milliseconds()
	resp.Result = out.Data
	resp.PagesVisited = out.Pages

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.NewError(models.ErrCodeTimeout,
			fmt.Sprintf("execution exceeded %ds", req.Timeout), ctx.Err())
	}
	return nil
}

// fail records cause on the execution and mirrors it into resp.
func (e *Engine) fail(ctx context.Context, id string, resp *models.RunResponse, cause error) {
	resp.Success = false
	resp.Status = models.StatusFailed
	resp.Error = models.AsError(cause).ToDetail()
	if err := e.tracker.Fail(ctx, id, cause); err != nil {
		slog.Error("failed to record execution failure", "execution_id", id, "error", err)
	}
}
