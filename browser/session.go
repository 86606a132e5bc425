// Package browser owns the single shared Chrome process and hands out
// configured pages with scoped acquire/release.
package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/metrics"
	"github.com/use-agent/actorkit/models"
	"github.com/ysmood/gson"
)

// Session manages the browser lifecycle and the page pool.
// The browser is launched lazily on the first Acquire. It is safe for
// concurrent use.
type Session struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	pagePool rod.Pool[rod.Page]
	health   map[*rod.Page]*pageHealth
	closed   bool

	activePages atomic.Int32
}

// NewSession creates a Session. No browser is started until Acquire.
func NewSession(cfg config.BrowserConfig) *Session {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Session{cfg: cfg, health: make(map[*rod.Page]*pageHealth)}
}

// Acquire borrows a configured page. The returned release function may be
// called more than once; the first call resets the page and returns it to
// the pool even if the caller's context has already expired.
func (s *Session) Acquire(ctx context.Context) (*Page, func(), error) {
	browser, pool, err := s.ensureStarted()
	if err != nil {
		return nil, nil, err
	}

	// rod.Pool.Get blocks without a context, so the slot is taken here.
	var rp *rod.Page
	select {
	case rp = <-pool:
	case <-ctx.Done():
		return nil, nil, models.NewError(models.ErrCodeTimeout, "timed out waiting for a free page", ctx.Err())
	}

	s.activePages.Add(1)
	metrics.ActivePages.Inc()

	if rp == nil {
		rp, err = s.newPage(browser)
		if err != nil {
			pool.Put(nil)
			s.activePages.Add(-1)
			metrics.ActivePages.Dec()
			return nil, nil, models.NewError(models.ErrCodeInternal, "failed to acquire page", err)
		}
	}
	if err := ctx.Err(); err != nil {
		s.put(pool, rp, false)
		return nil, nil, err
	}

	page := &Page{rod: rp}
	var once sync.Once
	release := func() {
		once.Do(func() { s.put(pool, rp, page.failed.Load()) })
	}
	return page, release, nil
}

// put resets the page and returns it to the pool, or closes it when it is
// due for retirement. The original page reference (without request context)
// is used so cleanup succeeds after a timeout.
func (s *Session) put(pool rod.Pool[rod.Page], rp *rod.Page, failed bool) {
	defer func() {
		s.activePages.Add(-1)
		metrics.ActivePages.Dec()
	}()

	now := time.Now()
	h := s.track(rp, now)
	h.record(failed)

	if h.shouldRetire(now) {
		slog.Debug("browser: retiring page")
		s.discard(pool, rp)
		return
	}
	if err := rp.Navigate("about:blank"); err != nil {
		slog.Warn("browser: failed to reset page, closing it", "error", err)
		s.discard(pool, rp)
		return
	}
	pool.Put(rp)
}

// track returns the health record of rp, creating it with now as the page's
// birth time on first sight.
func (s *Session) track(rp *rod.Page, now time.Time) *pageHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.health[rp]
	if !ok {
		h = newPageHealth(now)
		s.health[rp] = h
	}
	return h
}

// discard closes rp and frees its pool slot so a fresh page is created on
// the next Acquire.
func (s *Session) discard(pool rod.Pool[rod.Page], rp *rod.Page) {
	s.mu.Lock()
	delete(s.health, rp)
	s.mu.Unlock()
	_ = rp.Close()
	pool.Put(nil)
}

// ensureStarted launches the browser on first use.
func (s *Session) ensureStarted() (*rod.Browser, rod.Pool[rod.Page], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, models.NewLaunchError("browser session is closed", nil)
	}
	if s.browser != nil {
		return s.browser, s.pagePool, nil
	}

	l := launcher.New().
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox)

	if s.cfg.BrowserBin != "" {
		l = l.Bin(s.cfg.BrowserBin)
	}
	if s.cfg.DefaultProxy != "" {
		l = l.Proxy(s.cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, models.NewLaunchError("failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, models.NewLaunchError("failed to connect to browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "maxPages", s.cfg.MaxPages)

	s.browser = browser
	s.launcher = l
	s.pagePool = rod.NewPagePool(s.cfg.MaxPages)
	return s.browser, s.pagePool, nil
}

// newPage opens a tab and applies viewport, user agent, headers and stealth.
func (s *Session) newPage(browser *rod.Browser) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if s.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, err
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, err
	}

	if s.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.cfg.UserAgent,
			AcceptLanguage: s.cfg.AcceptLanguage,
		}); err != nil {
			_ = page.Close()
			return nil, err
		}
	}

	if s.cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": s.cfg.AcceptLanguage}),
		}.Call(page)
	}

	s.track(page, time.Now())
	return page, nil
}

// Stats returns a snapshot of the pool's current state.
func (s *Session) Stats() models.PoolStats {
	s.mu.Lock()
	started := s.browser != nil
	s.mu.Unlock()
	return models.PoolStats{
		MaxPages:       s.cfg.MaxPages,
		ActivePages:    int(s.activePages.Load()),
		BrowserStarted: started,
	}
}

// ReleaseAll drains the page pool and kills the browser process.
// It is safe to call more than once.
func (s *Session) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.browser == nil {
		return
	}

	slog.Info("browser session shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	clear(s.health)
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser session: close failed", "error", err)
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	s.browser = nil
	slog.Info("browser session shutdown complete")
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
