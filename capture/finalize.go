package capture

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/use-agent/actorkit/models"
)

// Finalize applies the response filters to a captured set and returns a new
// slice; the input is not modified.
//
// The selected response moves to the front with everything else in arrival
// order behind it. Then, per response, the gjson path narrows the body, the
// property whitelist trims every array item and the limit caps every array
// independently.
func Finalize(responses []*models.CapturedResponse, f *models.ResponseFilters) []*models.CapturedResponse {
	out := make([]*models.CapturedResponse, 0, len(responses))
	if f == nil {
		return append(out, responses...)
	}

	out = append(out, Reorder(responses, f.SelectedResponseID)...)
	if f.Path == "" && len(f.Properties) == 0 && f.Limit <= 0 {
		return out
	}

	keep := make(map[string]struct{}, len(f.Properties))
	for _, p := range f.Properties {
		keep[p] = struct{}{}
	}

	for i, r := range out {
		if r.Body == nil {
			continue
		}
		cp := *r
		body := cp.Body
		if f.Path != "" {
			body = selectPath(body, f.Path)
		}
		if len(keep) > 0 {
			body = project(body, keep)
		}
		if f.Limit > 0 {
			body = limit(body, f.Limit)
		}
		cp.Body = body
		if cp.Deduplicated {
			if arr, ok := body.([]any); ok {
				cp.Count = len(arr)
			}
		}
		out[i] = &cp
	}
	return out
}

// Reorder moves the response with id selected to the front. An unknown or
// empty id leaves the order untouched.
func Reorder(responses []*models.CapturedResponse, selected string) []*models.CapturedResponse {
	out := make([]*models.CapturedResponse, 0, len(responses))
	if selected == "" {
		return append(out, responses...)
	}
	idx := -1
	for i, r := range responses {
		if r.ID == selected {
			idx = i
			break
		}
	}
	if idx < 0 {
		return append(out, responses...)
	}
	out = append(out, responses[idx])
	out = append(out, responses[:idx]...)
	return append(out, responses[idx+1:]...)
}

// selectPath evaluates a gjson path against v. A path that matches nothing
// yields nil.
func selectPath(v any, path string) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return nil
	}
	return res.Value()
}

// project keeps only whitelisted keys on the object items of every array
// reachable from v.
func project(v any, keep map[string]struct{}) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, it := range t {
			if obj, ok := it.(map[string]any); ok {
				picked := make(map[string]any, len(keep))
				for k, val := range obj {
					if _, ok := keep[k]; ok {
						picked[k] = val
					}
				}
				out[i] = picked
				continue
			}
			out[i] = project(it, keep)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = project(val, keep)
		}
		return out
	default:
		return v
	}
}

// limit truncates every array reachable from v to at most n elements.
func limit(v any, n int) any {
	switch t := v.(type) {
	case []any:
		if len(t) > n {
			t = t[:n]
		}
		out := make([]any, len(t))
		for i, it := range t {
			out[i] = limit(it, n)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = limit(val, n)
		}
		return out
	default:
		return v
	}
}
