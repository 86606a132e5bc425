package models

// RunRequest is the payload for POST /api/v1/actors/:ref/run.
type RunRequest struct {
	// ActorRef is the actor id or namespace. Filled from the route.
	ActorRef string `json:"-"`

	// Intent is the free-form description of what to extract. Required.
	Intent string `json:"intent" binding:"required,min=1,max=4000"`

	// Context is passed through opaquely to the planner and to script
	// bindings. No fixed schema is assumed.
	Context map[string]any `json:"context,omitempty"`

	// Script overrides the planner's script when set.
	Script string `json:"script,omitempty"`

	// MatchCriteria selects which response URLs are captured. Substring or
	// glob. Default: "/api/".
	MatchCriteria string `json:"match_criteria,omitempty"`

	// Filters overrides the actor's stored response filters for this run.
	Filters *ResponseFilters `json:"filters,omitempty"`

	// Timeout is the max duration in seconds for the whole run.
	// Default: 120. Max: 600.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`
}

// Defaults applies default values to unset fields.
func (r *RunRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 120
	}
	if r.Context == nil {
		r.Context = map[string]any{}
	}
}
