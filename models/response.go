package models

// RunResponse is the response for POST /api/v1/actors/:ref/run.
type RunResponse struct {
	// Success indicates whether the execution reached "completed".
	Success bool `json:"success"`

	ExecutionID string          `json:"executionId"`
	Status      ExecutionStatus `json:"status"`

	// URL is the page the planner chose.
	URL string `json:"url,omitempty"`

	// ScrapedData is the merged, deduplicated and filtered response set.
	ScrapedData []*CapturedResponse `json:"scrapedData"`

	Selectors       map[string]string `json:"selectors,omitempty"`
	SelectorMatches map[string]int    `json:"selectorMatches,omitempty"`
	GeneratedScript string            `json:"generatedScript,omitempty"`

	// Result is the merged script output across all traversed pages.
	Result map[string]any `json:"result"`

	// PagesVisited counts the pages the script ran on.
	PagesVisited int `json:"pagesVisited"`

	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	TotalMs    int64 `json:"total_ms"`
	PlanningMs int64 `json:"planning_ms"`
	CaptureMs  int64 `json:"capture_ms"`
	ScriptMs   int64 `json:"script_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages       int  `json:"max_pages"`
	ActivePages    int  `json:"active_pages"`
	BrowserStarted bool `json:"browser_started"`
}

// ErrorResponse is the body of every non-run error response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
