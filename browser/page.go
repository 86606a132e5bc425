package browser

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Page is a leased browser tab. A Page is owned by exactly one caller
// between Acquire and release.
type Page struct {
	rod    *rod.Page
	failed atomic.Bool
}

// ReportFailure marks this lease as failed. Pages that fail repeatedly are
// closed on release instead of being pooled again.
func (p *Page) ReportFailure() {
	if p != nil {
		p.failed.Store(true)
	}
}

// Rod exposes the underlying rod page for CDP-level work (response capture).
func (p *Page) Rod() *rod.Page {
	return p.rod
}

// Evaluate runs js (a function expression) with args and awaits the promise it
// returns. The result is returned as raw JSON.
func (p *Page) Evaluate(ctx context.Context, js string, args ...any) ([]byte, error) {
	res, err := p.rod.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return nil, err
	}
	return res.Value.MarshalJSON()
}

// HasVisible reports whether selector matches an element that exists and is
// visible. A present but hidden control counts as absent.
func (p *Page) HasVisible(ctx context.Context, selector string) (bool, error) {
	has, el, err := p.rod.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

// ClickAndWait clicks selector and blocks until the resulting navigation
// settles. The navigation waiter is armed before the click so a fast
// navigation is never missed.
func (p *Page) ClickAndWait(ctx context.Context, selector string) error {
	pp := p.rod.Context(ctx)

	el, err := pp.Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}

	wait := pp.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	wait()

	return ctx.Err()
}

// HTML returns the rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.rod.Context(ctx).HTML()
}
