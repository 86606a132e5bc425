// Package sandbox runs untrusted extraction scripts against a live page and
// always returns a typed outcome.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/actorkit/metrics"
)

// Evaluator evaluates a JavaScript function expression in a page with the
// given arguments and returns the awaited result as JSON.
type Evaluator interface {
	Evaluate(ctx context.Context, js string, args ...any) ([]byte, error)
}

// wrapper compiles the script as the body of an async function. The script
// text travels as an argument and is never spliced into source. It sees
// three names: data (the container to fill), bindings and context.
// When data stays empty the script's return value is used instead.
const wrapper = `async (source, bindings) => {
  const AsyncFunction = Object.getPrototypeOf(async function () {}).constructor;
  const data = {};
  try {
    const fn = new AsyncFunction("data", "bindings", "context", source);
    const ret = await fn(data, bindings || {}, (bindings && bindings.context) || {});
    let out = data;
    if (Object.keys(data).length === 0 && ret !== undefined && ret !== null) {
      out = (typeof ret === "object" && !Array.isArray(ret)) ? ret : { result: ret };
    }
    return { data: JSON.parse(JSON.stringify(out)) };
  } catch (e) {
    return { error: String((e && e.message) || e) };
  }
}`

// Result is the outcome of one script run. Exactly one of Data or Error is
// meaningful; Data is never nil when Error is empty.
type Result struct {
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Failed reports whether the run produced an error.
func (r Result) Failed() bool { return r.Error != "" }

// AsMap returns the result as mergeable data: the data object, or
// {"error": message} for a failed run.
func (r Result) AsMap() map[string]any {
	if r.Failed() {
		return map[string]any{"error": r.Error}
	}
	return r.Data
}

// Runner executes scripts with a per-run timeout.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a Runner. A non-positive timeout means 30s.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{timeout: timeout}
}

// Run executes script against ev. It never returns an error: thrown
// exceptions, evaluation failures and timeouts all become Result.Error.
func (r *Runner) Run(ctx context.Context, ev Evaluator, script string, bindings map[string]any) Result {
	if bindings == nil {
		bindings = map[string]any{}
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.run(rctx, ev, script, bindings)
	if res.Failed() {
		metrics.SandboxErrors.Inc()
		slog.Debug("sandbox: script failed", "error", res.Error)
	}
	return res
}

func (r *Runner) run(ctx context.Context, ev Evaluator, script string, bindings map[string]any) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Error: fmt.Sprintf("script evaluation panicked: %v", p)}
		}
	}()

	raw, err := ev.Evaluate(ctx, wrapper, script, bindings)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Error: fmt.Sprintf("script timed out after %s", r.timeout)}
		}
		return Result{Error: err.Error()}
	}

	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{Error: fmt.Sprintf("unreadable script result: %v", err)}
	}
	if !res.Failed() && res.Data == nil {
		res.Data = map[string]any{}
	}
	return res
}
