package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/store"
)

func newTracker(t *testing.T) (*Tracker, *store.Store, *[]*models.ActorExecution) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "exec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.CreateActor(context.Background(), &models.Actor{Namespace: "news", Title: "News"}))

	var done []*models.ActorExecution
	tr := NewTracker(s, func(e *models.ActorExecution) { done = append(done, e) })
	return tr, s, &done
}

func TestStart_UnknownActor(t *testing.T) {
	tr, _, _ := newTracker(t)

	_, _, err := tr.Start(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeActorNotFound, models.CodeOf(err))
}

func TestLifecycle_Complete(t *testing.T) {
	tr, _, done := newTracker(t)
	ctx := context.Background()

	e, actor, err := tr.Start(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "news", actor.Namespace)
	assert.Equal(t, models.StatusPending, e.Status)

	require.NoError(t, tr.MarkRunning(ctx, e.ID))
	require.NoError(t, tr.Complete(ctx, e.ID, map[string]any{"items": []int{1, 2}}))

	got, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.EndTime)
	assert.JSONEq(t, `{"items":[1,2]}`, string(got.Results))

	require.Len(t, *done, 1)
	assert.Equal(t, e.ID, (*done)[0].ID)
}

func TestLifecycle_TerminalIsImmutable(t *testing.T) {
	tr, _, done := newTracker(t)
	ctx := context.Background()

	e, _, err := tr.Start(ctx, "news")
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(ctx, e.ID))
	require.NoError(t, tr.Fail(ctx, e.ID, errors.New("navigation failed")))

	assert.ErrorIs(t, tr.MarkRunning(ctx, e.ID), ErrInvalidTransition)
	assert.ErrorIs(t, tr.Complete(ctx, e.ID, nil), ErrInvalidTransition)
	assert.ErrorIs(t, tr.Fail(ctx, e.ID, errors.New("again")), ErrInvalidTransition)

	got, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "navigation failed", got.Logs)
	assert.Len(t, *done, 1)
}

func TestLifecycle_CompleteRequiresRunning(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	e, _, err := tr.Start(ctx, "news")
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Complete(ctx, e.ID, nil), ErrInvalidTransition)
	assert.ErrorIs(t, tr.MarkRunning(ctx, "missing"), ErrInvalidTransition)
}

func TestFail_FromPending(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	e, _, err := tr.Start(ctx, "news")
	require.NoError(t, err)
	require.NoError(t, tr.Fail(ctx, e.ID, nil))

	got, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "unknown error", got.Logs)
}

func TestFail_AfterContextCancelled(t *testing.T) {
	tr, _, _ := newTracker(t)

	e, _, err := tr.Start(context.Background(), "news")
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(context.Background(), e.ID))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, tr.Fail(ctx, e.ID, context.Canceled))

	got, err := tr.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
}

func TestGet_NotFound(t *testing.T) {
	tr, _, _ := newTracker(t)
	_, err := tr.Get(context.Background(), "missing")
	assert.Equal(t, models.ErrCodeNotFound, models.CodeOf(err))
}

// flakyStore fails the first n terminal writes with a storage error.
type flakyStore struct {
	*store.Store
	failures int
	landed   bool
}

func (f *flakyStore) TransitionExecution(ctx context.Context, id string, u store.StatusUpdate) (bool, error) {
	if u.To.Terminal() && f.failures > 0 {
		f.failures--
		if f.landed {
			if _, err := f.Store.TransitionExecution(ctx, id, u); err != nil {
				return false, err
			}
		}
		return false, errors.New("database is locked")
	}
	return f.Store.TransitionExecution(ctx, id, u)
}

func newFlakyTracker(t *testing.T, fs *flakyStore) (*Tracker, *models.ActorExecution) {
	t.Helper()
	_, s, _ := newTracker(t)
	fs.Store = s
	tr := NewTracker(fs, nil)

	e, _, err := tr.Start(context.Background(), "news")
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(context.Background(), e.ID))
	return tr, e
}

func TestFail_RetriesStorageError(t *testing.T) {
	fs := &flakyStore{failures: 1}
	tr, e := newFlakyTracker(t, fs)

	require.NoError(t, tr.Fail(context.Background(), e.ID, errors.New("capture failed")))

	got, err := tr.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "capture failed", got.Logs)
}

func TestFail_FirstWriteLandedDespiteError(t *testing.T) {
	fs := &flakyStore{failures: 1, landed: true}
	tr, e := newFlakyTracker(t, fs)

	require.NoError(t, tr.Fail(context.Background(), e.ID, errors.New("capture failed")))

	got, err := tr.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
}

func TestFail_PersistentStorageError(t *testing.T) {
	fs := &flakyStore{failures: 2}
	tr, e := newFlakyTracker(t, fs)

	err := tr.Fail(context.Background(), e.ID, errors.New("capture failed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidTransition)

	got, gerr := tr.Get(context.Background(), e.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusRunning, got.Status)
}
