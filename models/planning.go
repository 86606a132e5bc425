package models

// PlanningResult is the planner's proposal for one extraction.
type PlanningResult struct {
	URL        string            `json:"url"`
	Script     string            `json:"script"`
	Selectors  map[string]string `json:"selectors,omitempty"`
	Pagination *Pagination       `json:"pagination,omitempty"`
}

// Pagination describes how to reach subsequent pages.
type Pagination struct {
	NextPageSelector string `json:"nextPageSelector"`
	MaxPages         int    `json:"maxPages"`
}
