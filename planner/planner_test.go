package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/models"
)

type fakeLLM struct {
	answer string
	err    error
	delay  time.Duration
	calls  atomic.Int32
	user   string
	mu     sync.Mutex
}

func (f *fakeLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.user = user
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.answer, f.err
}

func (f *fakeLLM) Model() string        { return "test-model" }
func (f *fakeLLM) Temperature() float64 { return 0 }

const goodAnswer = "```json\n" + `{
  "url": "https://x.test/page1",
  "script": "data.items = [...document.querySelectorAll('.item')].map(e => e.textContent)",
  "selectors": {"item": ".item", "broken": "div[", "empty": ""},
  "pagination": {"nextPageSelector": "#next", "maxPages": 50}
}` + "\n```"

func newPlanner(llm Completer) *Planner {
	p := New(llm, config.PlannerConfig{CacheTTL: time.Hour, CacheMaxEntries: 10, Timeout: time.Second}, 20)
	return p
}

func TestPlan_ValidatesAndCaches(t *testing.T) {
	llm := &fakeLLM{answer: goodAnswer}
	p := newPlanner(llm)
	defer p.Close()

	req := Request{Namespace: "shop", Intent: "list items", Context: map[string]any{"b": 1, "a": 2}}
	res, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "https://x.test/page1", res.URL)
	assert.Equal(t, map[string]string{"item": ".item"}, res.Selectors)
	require.NotNil(t, res.Pagination)
	assert.Equal(t, 20, res.Pagination.MaxPages, "maxPages is clamped")

	res.Script = "mutated"
	again, err := p.Plan(context.Background(), Request{Namespace: "shop", Intent: "list items", Context: map[string]any{"a": 2, "b": 1}})
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Script, "cached results are copies")
	assert.Equal(t, int32(1), llm.calls.Load())
	assert.Contains(t, llm.user, `Context: {"a":2,"b":1}`)
}

func TestPlan_SingleflightCollapsesConcurrentCalls(t *testing.T) {
	llm := &fakeLLM{answer: goodAnswer, delay: 50 * time.Millisecond}
	p := newPlanner(llm)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Plan(context.Background(), Request{Namespace: "n", Intent: "same"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, llm.calls.Load(), int32(2))
}

func TestPlan_ErrorsAreNotCached(t *testing.T) {
	llm := &fakeLLM{answer: `{"url":"https://x.test","script":""}`}
	p := newPlanner(llm)
	defer p.Close()

	_, err := p.Plan(context.Background(), Request{Namespace: "n", Intent: "i"})
	assert.Equal(t, models.ErrCodePlanning, models.CodeOf(err))

	_, err = p.Plan(context.Background(), Request{Namespace: "n", Intent: "i"})
	require.Error(t, err)
	assert.Equal(t, int32(2), llm.calls.Load())
}

func TestPlan_LLMErrorPassesThrough(t *testing.T) {
	llm := &fakeLLM{err: models.NewError(models.ErrCodeLLMRateLimited, "slow down", nil)}
	p := newPlanner(llm)
	defer p.Close()

	_, err := p.Plan(context.Background(), Request{Namespace: "n", Intent: "i"})
	assert.Equal(t, models.ErrCodeLLMRateLimited, models.CodeOf(err))
}

func TestFingerprint(t *testing.T) {
	base := Request{Namespace: "n", Intent: "i", Context: map[string]any{"k": "v"}}
	assert.Equal(t, Fingerprint(base, "m", 0), Fingerprint(base, "m", 0))
	assert.NotEqual(t, Fingerprint(base, "m", 0), Fingerprint(base, "m2", 0))
	assert.NotEqual(t, Fingerprint(base, "m", 0), Fingerprint(base, "m", 0.5))

	other := base
	other.Context = map[string]any{"k": "w"}
	assert.NotEqual(t, Fingerprint(base, "m", 0), Fingerprint(other, "m", 0))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"not json", "I cannot help", true},
		{"missing url", `{"script":"data.x=1"}`, true},
		{"relative url", `{"url":"/page","script":"data.x=1"}`, true},
		{"ftp url", `{"url":"ftp://x.test/","script":"data.x=1"}`, true},
		{"blank script", `{"url":"https://x.test","script":"   "}`, true},
		{"minimal", `{"url":" https://x.test ","script":"data.x=1"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.raw, 20)
			if tt.wantErr {
				require.Error(t, err)
				var me *models.Error
				require.True(t, errors.As(err, &me))
				assert.Equal(t, models.ErrCodePlanning, me.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://x.test", res.URL)
			assert.Nil(t, res.Pagination)
			assert.Nil(t, res.Selectors)
		})
	}
}

func TestParse_Pagination(t *testing.T) {
	res, err := Parse(`{"url":"https://x.test","script":"s","pagination":{"nextPageSelector":"a[","maxPages":3}}`, 20)
	require.NoError(t, err)
	assert.Nil(t, res.Pagination, "invalid selector disables pagination")

	res, err = Parse(`{"url":"https://x.test","script":"s","pagination":{"nextPageSelector":"a.next"}}`, 20)
	require.NoError(t, err)
	require.NotNil(t, res.Pagination)
	assert.Equal(t, defaultMaxPages, res.Pagination.MaxPages)
}

// gatedLLM answers only once release is closed or its context ends.
type gatedLLM struct {
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedLLM) Complete(ctx context.Context, _, _ string) (string, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return goodAnswer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedLLM) Model() string        { return "test-model" }
func (g *gatedLLM) Temperature() float64 { return 0 }

func TestPlan_CallerDeadlineWins(t *testing.T) {
	llm := &gatedLLM{release: make(chan struct{})}
	p := New(llm, config.PlannerConfig{CacheTTL: time.Hour, CacheMaxEntries: 10, Timeout: 5 * time.Second}, 20)
	defer p.Close()

	req := Request{Namespace: "n", Intent: "slow"}

	patient := make(chan error, 1)
	go func() {
		_, err := p.Plan(context.Background(), req)
		patient <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := p.Plan(ctx, req)

	require.Error(t, err)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.Less(t, time.Since(start), time.Second, "must not wait for the planner timeout")

	close(llm.release)
	select {
	case err := <-patient:
		assert.NoError(t, err, "the shared call keeps running for callers without a deadline")
	case <-time.After(3 * time.Second):
		t.Fatal("patient caller never got an answer")
	}
	assert.Equal(t, int32(1), llm.calls.Load())
}
