// Package execution owns the lifecycle of actor executions:
// pending -> running -> completed | failed.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/actorkit/metrics"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/store"
)

// ErrInvalidTransition is returned when a transition does not start from the
// state it requires. It signals a programming error, not a user error.
var ErrInvalidTransition = errors.New("execution: invalid status transition")

// Store is the persistence the tracker needs.
type Store interface {
	FindActor(ctx context.Context, ref string) (*models.Actor, error)
	CreateExecution(ctx context.Context, e *models.ActorExecution) error
	GetExecution(ctx context.Context, id string) (*models.ActorExecution, error)
	TransitionExecution(ctx context.Context, id string, u store.StatusUpdate) (bool, error)
}

// Listener is notified when an execution reaches a terminal state.
type Listener func(e *models.ActorExecution)

// Tracker is the only component that writes execution state.
type Tracker struct {
	store    Store
	now      func() time.Time
	listener Listener
}

// NewTracker creates a Tracker. listener may be nil.
func NewTracker(s Store, listener Listener) *Tracker {
	return &Tracker{store: s, now: func() time.Time { return time.Now().UTC() }, listener: listener}
}

// Start resolves actorRef (id or namespace) and creates a pending execution.
func (t *Tracker) Start(ctx context.Context, actorRef string) (*models.ActorExecution, *models.Actor, error) {
	actor, err := t.store.FindActor(ctx, actorRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, models.NewActorNotFoundError(actorRef)
	}
	if err != nil {
		return nil, nil, models.NewError(models.ErrCodeInternal, "actor lookup failed", err)
	}

	e := &models.ActorExecution{
		ActorID:   actor.ID,
		Status:    models.StatusPending,
		StartTime: t.now(),
	}
	if err := t.store.CreateExecution(ctx, e); err != nil {
		return nil, nil, models.NewError(models.ErrCodeInternal, "failed to create execution", err)
	}
	slog.Info("execution created", "execution_id", e.ID, "actor_id", actor.ID)
	return e, actor, nil
}

// MarkRunning moves a pending execution to running.
func (t *Tracker) MarkRunning(ctx context.Context, id string) error {
	return t.transition(ctx, id, store.StatusUpdate{From: models.StatusPending, To: models.StatusRunning})
}

// Complete moves a running execution to completed and stores results.
func (t *Tracker) Complete(ctx context.Context, id string, results any) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return t.Fail(ctx, id, fmt.Errorf("encode results: %w", err))
	}
	end := t.now()
	return t.transition(ctx, id, store.StatusUpdate{
		From:    models.StatusRunning,
		To:      models.StatusCompleted,
		EndTime: &end,
		Results: raw,
	})
}

// Fail moves an execution to failed and records cause in its logs.
// A pending execution is first moved to running so the observed sequence
// stays pending, running, failed.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	logs := "unknown error"
	if cause != nil {
		logs = cause.Error()
	}
	end := t.now()
	u := store.StatusUpdate{
		From:    models.StatusRunning,
		To:      models.StatusFailed,
		EndTime: &end,
		Logs:    logs,
	}

	err := t.transition(ctx, id, u)
	switch {
	case errors.Is(err, ErrInvalidTransition):
		if rerr := t.MarkRunning(ctx, id); rerr == nil {
			err = t.transition(ctx, id, u)
		}
	case err != nil:
		// One retry for transient storage errors. A retry that finds the
		// record already failed means the first write landed.
		slog.Warn("execution: failure write failed, retrying", "execution_id", id, "error", err)
		err = t.transition(ctx, id, u)
		if errors.Is(err, ErrInvalidTransition) {
			if e, gerr := t.store.GetExecution(ctx, id); gerr == nil && e.Status == models.StatusFailed {
				err = nil
			}
		}
	}
	if err != nil && !errors.Is(err, ErrInvalidTransition) {
		slog.Error("execution: could not record failure, record left unfinished",
			"execution_id", id, "cause", logs, "error", err)
	}
	return err
}

// Get returns the current record of execution id.
func (t *Tracker) Get(ctx context.Context, id string) (*models.ActorExecution, error) {
	e, err := t.store.GetExecution(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewError(models.ErrCodeNotFound, fmt.Sprintf("execution %q not found", id), err)
	}
	return e, err
}

func (t *Tracker) transition(ctx context.Context, id string, u store.StatusUpdate) error {
	// Terminal writes must land even when the request context is gone.
	if u.To.Terminal() {
		ctx = context.WithoutCancel(ctx)
	}
	ok, err := t.store.TransitionExecution(ctx, id, u)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, u.From, u.To, id)
	}

	slog.Debug("execution transition", "execution_id", id, "from", u.From, "to", u.To)
	if u.To.Terminal() {
		metrics.ExecutionsTotal.WithLabelValues(string(u.To)).Inc()
		t.notify(ctx, id)
	}
	return nil
}

func (t *Tracker) notify(ctx context.Context, id string) {
	e, err := t.store.GetExecution(ctx, id)
	if err != nil {
		slog.Warn("execution: reload for listener failed", "execution_id", id, "error", err)
		return
	}
	metrics.ExecutionDuration.Observe(durationOf(e).Seconds())
	if t.listener != nil {
		t.listener(e)
	}
}

func durationOf(e *models.ActorExecution) time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}
