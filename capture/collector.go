package capture

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/actorkit/metrics"
	"github.com/use-agent/actorkit/models"
)

// Collector accumulates the responses of one capture session. It assigns
// monotonic ids, keeps the flat response list in arrival order and folds
// array payloads into the running shape set.
type Collector struct {
	mu        sync.Mutex
	seq       int
	responses []*models.CapturedResponse
	shapes    *shapeSet
	now       func() time.Time
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{shapes: newShapeSet(), now: time.Now}
}

// Add records one response body. Bodies whose "data" field is an array
// contribute only to the shape set; every other body lands in the flat list.
// The assigned response id is returned either way.
func (c *Collector) Add(url, method string, ts time.Time, body []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	resp := &models.CapturedResponse{
		ID:        "resp_" + strconv.Itoa(c.seq),
		URL:       url,
		Method:    method,
		Timestamp: ts,
	}

	// A literal null parses but has no body to show; keep it as raw text.
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil || parsed == nil {
		resp.Raw = string(body)
		c.responses = append(c.responses, resp)
		metrics.CapturedResponses.WithLabelValues("raw").Inc()
		return resp.ID
	}
	metrics.CapturedResponses.WithLabelValues("json").Inc()

	if obj, ok := parsed.(map[string]any); ok {
		switch data := obj["data"].(type) {
		case []any:
			c.shapes.merge(data)
			return resp.ID
		case map[string]any:
			for k, v := range data {
				if arr, ok := v.([]any); ok {
					data[k] = Dedupe(arr)
				}
			}
		}
	}

	resp.Body = parsed
	c.responses = append(c.responses, resp)
	return resp.ID
}

// Responses returns the flat list followed, when the shape set is non-empty,
// by one synthetic summary response.
func (c *Collector) Responses() []*models.CapturedResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.CapturedResponse, 0, len(c.responses)+1)
	out = append(out, c.responses...)
	if n := c.shapes.len(); n > 0 {
		items := make([]any, n)
		copy(items, c.shapes.items)
		out = append(out, &models.CapturedResponse{
			ID:           models.DeduplicatedResponseID,
			Timestamp:    c.now(),
			Body:         items,
			Deduplicated: true,
			Count:        n,
		})
	}
	return out
}

// UniqueShapes reports how many items the shape set holds.
func (c *Collector) UniqueShapes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shapes.len()
}
