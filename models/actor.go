package models

import "time"

// Actor is a user-defined extraction agent.
type Actor struct {
	ID          string `json:"id"`
	Namespace   string `json:"namespace"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`

	// Script is an optional stored extraction script. It is handed to the
	// planner as a hint; a request-level script still takes precedence.
	Script string `json:"script,omitempty"`

	// ResponseFilters is the response-shape descriptor the owner chose from
	// a previous run. Nil means "no filtering".
	ResponseFilters *ResponseFilters `json:"responseFilters,omitempty"`

	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResponseFilters narrows a captured response set before it is returned.
type ResponseFilters struct {
	// SelectedResponseID is moved to the front of the result list.
	SelectedResponseID string `json:"selectedResponseId,omitempty"`

	// Properties is a whitelist of keys kept on every item.
	Properties []string `json:"properties,omitempty"`

	// Path is a gjson path applied to each parsed payload.
	Path string `json:"path,omitempty"`

	// Limit caps every array independently. Zero means unlimited.
	Limit int `json:"limit,omitempty" binding:"omitempty,min=0"`
}

// CreateActorRequest is the payload for POST /api/v1/actors.
type CreateActorRequest struct {
	Namespace       string           `json:"namespace" binding:"required,min=2,max=64"`
	Title           string           `json:"title" binding:"required"`
	Description     string           `json:"description,omitempty"`
	Icon            string           `json:"icon,omitempty"`
	Script          string           `json:"script,omitempty"`
	ResponseFilters *ResponseFilters `json:"responseFilters,omitempty"`
}
