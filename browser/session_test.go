package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/models"
)

func TestSession_LazyStart(t *testing.T) {
	s := NewSession(config.BrowserConfig{MaxPages: 4})

	stats := s.Stats()
	assert.False(t, stats.BrowserStarted, "browser must not start before the first Acquire")
	assert.Equal(t, 4, stats.MaxPages)
	assert.Equal(t, 0, stats.ActivePages)
}

func TestSession_ReleaseAllIdempotent(t *testing.T) {
	s := NewSession(config.BrowserConfig{})

	s.ReleaseAll()
	s.ReleaseAll()

	assert.Equal(t, 1, s.Stats().MaxPages, "non-positive MaxPages is clamped")
}

func TestSession_AcquireAfterRelease(t *testing.T) {
	s := NewSession(config.BrowserConfig{MaxPages: 1})
	s.ReleaseAll()

	page, release, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.Nil(t, page)
	assert.Nil(t, release)
	assert.Equal(t, models.ErrCodeLaunch, models.CodeOf(err))
}

func TestToHeadersMap(t *testing.T) {
	h := toHeadersMap(map[string]string{"Accept-Language": "fr-FR"})
	require.Contains(t, h, "Accept-Language")
	assert.Equal(t, "fr-FR", h["Accept-Language"].Str())
}

// crashedCDP fails every call, as a browser whose targets crash would.
type crashedCDP struct{}

func (crashedCDP) Event() <-chan *cdp.Event { return make(chan *cdp.Event) }

func (crashedCDP) Call(context.Context, string, string, any) ([]byte, error) {
	return nil, errors.New("target crashed")
}

func newCrashedSession(maxPages int) *Session {
	s := NewSession(config.BrowserConfig{MaxPages: maxPages})
	s.browser = rod.New().Client(crashedCDP{})
	s.pagePool = rod.NewPagePool(maxPages)
	return s
}

func TestSession_FailedPageCreationFreesSlot(t *testing.T) {
	s := newCrashedSession(1)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		start := time.Now()
		_, _, err := s.Acquire(ctx)
		cancel()

		require.Error(t, err)
		assert.Equal(t, models.ErrCodeInternal, models.CodeOf(err), "attempt %d", i+1)
		assert.Less(t, time.Since(start), 400*time.Millisecond, "attempt %d must not wait for a slot", i+1)
	}
	assert.Equal(t, 0, s.Stats().ActivePages)
}

func TestSession_FullPoolHonoursDeadline(t *testing.T) {
	s := newCrashedSession(1)
	<-s.pagePool // the only slot is leased elsewhere

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	page, release, err := s.Acquire(ctx)
	require.Error(t, err)
	assert.Nil(t, page)
	assert.Nil(t, release)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, s.Stats().ActivePages)
}

func TestSession_PageAgeCountsFromCreation(t *testing.T) {
	s := NewSession(config.BrowserConfig{})
	rp := &rod.Page{}
	born := time.Now().Add(-maxPageAge)

	created := s.track(rp, born)
	released := s.track(rp, time.Now())

	assert.Same(t, created, released)
	assert.True(t, released.shouldRetire(time.Now()), "age is measured from creation, not first release")
}
