package models

import (
	"encoding/json"
	"time"
)

// ExecutionStatus is the lifecycle state of an ActorExecution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether s is a final state.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Transitions are strictly pending -> running -> {completed | failed}.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ActorExecution is one attempt to run an actor.
type ActorExecution struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actorId"`
	Status    ExecutionStatus `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   *time.Time      `json:"endTime,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	Logs      string          `json:"logs,omitempty"`
}

// ExecutionListResponse is the response for GET /api/v1/actors/:ref/executions.
type ExecutionListResponse struct {
	Executions []*ActorExecution `json:"executions"`
	Total      int               `json:"total"`
}
