// Package pagination drives "next page" traversal and reconciles the
// heterogeneous data each page yields.
package pagination

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/sandbox"
)

// Page is the slice of a browser page that traversal needs.
type Page interface {
	sandbox.Evaluator
	HasVisible(ctx context.Context, selector string) (bool, error)
	ClickAndWait(ctx context.Context, selector string) error
}

// Outcome is the merged result of a traversal.
type Outcome struct {
	Data map[string]any
	// Pages is the number of pages the script ran on.
	Pages int
	// ScriptErrors counts pages whose run ended in an error result.
	ScriptErrors int
}

// Controller runs a script over consecutive pages.
type Controller struct {
	runner     *sandbox.Runner
	navTimeout time.Duration
	maxLimit   int
}

// NewController creates a Controller.
func NewController(runner *sandbox.Runner, cfg config.PaginationConfig) *Controller {
	if cfg.MaxPagesLimit <= 0 {
		cfg.MaxPagesLimit = 20
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Controller{runner: runner, navTimeout: cfg.NavigationTimeout, maxLimit: cfg.MaxPagesLimit}
}

// MaxPages returns the effective page bound for pager.
func (c *Controller) MaxPages(pager *models.Pagination) int {
	if pager == nil || pager.NextPageSelector == "" {
		return 1
	}
	n := pager.MaxPages
	if n < 1 {
		n = 1
	}
	if n > c.maxLimit {
		n = c.maxLimit
	}
	return n
}

// Traverse runs script on the current page, then keeps following the next
// page control while it is present and visible, up to the page bound. A
// page whose script fails is merged as {"error": ...} and traversal goes on.
// A failed navigation stops traversal and keeps what was merged so far.
func (c *Controller) Traverse(ctx context.Context, page Page, script string, bindings map[string]any, pager *models.Pagination) Outcome {
	maxPages := c.MaxPages(pager)

	out := Outcome{Data: map[string]any{}}
	current := 1
	c.runPage(ctx, page, script, bindings, current, &out)

	for current < maxPages {
		if ctx.Err() != nil {
			slog.Warn("pagination: context done, stopping", "page", current, "error", ctx.Err())
			break
		}

		visible, err := page.HasVisible(ctx, pager.NextPageSelector)
		if err != nil {
			slog.Warn("pagination: next control lookup failed", "selector", pager.NextPageSelector, "error", err)
			break
		}
		if !visible {
			break
		}

		nctx, cancel := context.WithTimeout(ctx, c.navTimeout)
		err = page.ClickAndWait(nctx, pager.NextPageSelector)
		cancel()
		if err != nil {
			slog.Warn("pagination: navigation failed, keeping merged data", "page", current+1, "error", err)
			break
		}

		current++
		c.runPage(ctx, page, script, bindings, current, &out)
	}

	return out
}

func (c *Controller) runPage(ctx context.Context, page Page, script string, bindings map[string]any, n int, out *Outcome) {
	b := maps.Clone(bindings)
	if b == nil {
		b = map[string]any{}
	}
	b["pageNumber"] = n

	res := c.runner.Run(ctx, page, script, b)
	if res.Failed() {
		out.ScriptErrors++
	}
	out.Data = Merge(out.Data, res.AsMap())
	out.Pages = n
}
