package browser

import (
	"math"
	"sync"
	"time"
)

// Retirement thresholds for pooled pages. Long-lived tabs accumulate
// listeners and memory, and a tab that keeps failing is usually wedged.
const (
	maxErrScore = 3.0
	maxUses     = 50
	maxPageAge  = 50 * time.Minute
)

// pageHealth tracks one pooled tab across leases.
type pageHealth struct {
	mu       sync.Mutex
	errScore float64
	useCount int
	created  time.Time
}

func newPageHealth(now time.Time) *pageHealth {
	return &pageHealth{created: now}
}

// record counts one lease. A success decays the error score; a failure adds
// a full point.
func (h *pageHealth) record(failed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	if failed {
		h.errScore++
		return
	}
	h.errScore = math.Max(0, h.errScore-0.5)
}

// shouldRetire reports whether the page should be closed instead of pooled.
func (h *pageHealth) shouldRetire(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errScore >= maxErrScore ||
		h.useCount >= maxUses ||
		now.Sub(h.created) >= maxPageAge
}
