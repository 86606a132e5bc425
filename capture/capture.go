// Package capture intercepts the network responses a page produces while it
// navigates and turns them into an identified, shape-deduplicated set.
package capture

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/actorkit/browser"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/models"
)

// Options are the per-call capture settings.
type Options struct {
	// MatchCriteria selects response URLs by substring or glob.
	// Empty uses the configured default.
	MatchCriteria string

	// Filters are applied to the final response set. Nil disables filtering.
	Filters *models.ResponseFilters
}

// Engine captures responses through CDP Network events.
type Engine struct {
	cfg      config.CaptureConfig
	patterns []string
}

// New creates an Engine.
func New(cfg config.CaptureConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		patterns: BlockPatterns(cfg.BlockedResourceTypes, cfg.BlockAds),
	}
}

type inflight struct {
	url    string
	method string
	ts     time.Time
	match  bool
}

// Capture navigates page to target and returns every matching response seen
// before the network settles plus a fixed settle window.
//
// A navigation failure or timeout returns a *models.CaptureError carrying the
// responses gathered so far. The listener, the blocked-URL list and network
// events are always torn down before Capture returns; releasing the page is
// the caller's job.
func (e *Engine) Capture(ctx context.Context, page *browser.Page, target string, opts Options) ([]*models.CapturedResponse, error) {
	matcher, err := NewMatcher(opts.MatchCriteria, e.cfg.DefaultMatch)
	if err != nil {
		return nil, models.NewError(models.ErrCodeInvalidInput, "invalid match criteria", err)
	}

	rp := page.Rod()
	if err := (proto.NetworkEnable{}).Call(rp); err != nil {
		return nil, models.NewCaptureError("failed to enable network events", err, nil)
	}
	// Pooled pages must not keep streaming network events to later leases.
	defer func() {
		_ = proto.NetworkDisable{}.Call(rp)
	}()
	if len(e.patterns) > 0 {
		if err := (proto.NetworkSetBlockedURLs{Urls: e.patterns}).Call(rp); err != nil {
			slog.Warn("capture: failed to set blocked urls", "error", err)
		}
		defer func() {
			_ = proto.NetworkSetBlockedURLs{Urls: []string{}}.Call(rp)
		}()
	}

	collector := NewCollector()
	requests := make(map[proto.NetworkRequestID]*inflight)

	lctx, stop := context.WithCancel(ctx)
	wait := rp.Context(lctx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			requests[ev.RequestID] = &inflight{
				url:    ev.Request.URL,
				method: ev.Request.Method,
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			req, ok := requests[ev.RequestID]
			if !ok {
				return
			}
			req.ts = time.Now()
			req.match = matcher.Match(ev.Response.URL, req.method)
			req.url = ev.Response.URL
		},
		func(ev *proto.NetworkLoadingFinished) {
			req, ok := requests[ev.RequestID]
			delete(requests, ev.RequestID)
			if !ok || !req.match {
				return
			}
			body, err := e.fetchBody(ctx, page, ev.RequestID)
			if err != nil {
				slog.Debug("capture: response body unavailable", "url", req.url, "error", err)
				return
			}
			collector.Add(req.url, req.method, req.ts, body)
		},
	)

	var once sync.Once
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	finish := func() []*models.CapturedResponse {
		once.Do(func() {
			stop()
			<-done
		})
		return collector.Responses()
	}
	defer finish()

	if err := e.navigate(ctx, page, target); err != nil {
		return nil, models.NewCaptureError("navigation failed", err, finish())
	}

	select {
	case <-time.After(e.cfg.SettleWindow):
	case <-ctx.Done():
		return nil, models.NewCaptureError("capture cancelled during settle window", ctx.Err(), finish())
	}

	responses := finish()
	slog.Debug("capture finished",
		"url", target,
		"responses", len(responses),
		"unique_shapes", collector.UniqueShapes(),
	)
	return Finalize(responses, opts.Filters), nil
}

// navigate loads target and waits for the network to settle, bounded by the
// navigation timeout.
func (e *Engine) navigate(ctx context.Context, page *browser.Page, target string) error {
	nctx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
	defer cancel()

	p := page.Rod().Context(nctx)
	waitIdle := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := p.Navigate(target); err != nil {
		return err
	}
	waitIdle()
	return nctx.Err()
}

func (e *Engine) fetchBody(ctx context.Context, page *browser.Page, id proto.NetworkRequestID) ([]byte, error) {
	bctx, cancel := context.WithTimeout(ctx, e.cfg.BodyTimeout)
	defer cancel()

	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page.Rod().Context(bctx))
	if err != nil {
		return nil, err
	}
	if res.Base64Encoded {
		return base64.StdEncoding.DecodeString(res.Body)
	}
	return []byte(res.Body), nil
}
