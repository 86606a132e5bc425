package planner

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/actorkit/models"
)

// defaultMaxPages is used when the planner names a next page control but no
// page bound.
const defaultMaxPages = 5

// Parse decodes and validates a planner answer. Markdown fences around the
// JSON are tolerated. A missing or unusable url or script is a planning
// error. Invalid selectors are dropped, an invalid pagination selector
// disables pagination and maxPages is clamped to [1, maxPagesLimit].
func Parse(raw string, maxPagesLimit int) (*models.PlanningResult, error) {
	var res models.PlanningResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &res); err != nil {
		return nil, models.NewPlanningError("planner returned malformed JSON", err)
	}

	res.URL = strings.TrimSpace(res.URL)
	if res.URL == "" {
		return nil, models.NewPlanningError("planner returned no url", nil)
	}
	u, err := url.Parse(res.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewPlanningError("planner returned an invalid url: "+res.URL, err)
	}
	if strings.TrimSpace(res.Script) == "" {
		return nil, models.NewPlanningError("planner returned no script", nil)
	}

	for name, sel := range res.Selectors {
		if !validSelector(sel) {
			delete(res.Selectors, name)
		}
	}
	if len(res.Selectors) == 0 {
		res.Selectors = nil
	}

	if p := res.Pagination; p != nil {
		p.NextPageSelector = strings.TrimSpace(p.NextPageSelector)
		if !validSelector(p.NextPageSelector) {
			res.Pagination = nil
		} else {
			if p.MaxPages <= 0 {
				p.MaxPages = defaultMaxPages
			}
			if maxPagesLimit > 0 && p.MaxPages > maxPagesLimit {
				p.MaxPages = maxPagesLimit
			}
		}
	}
	return &res, nil
}

func validSelector(sel string) bool {
	if strings.TrimSpace(sel) == "" {
		return false
	}
	_, err := cascadia.Parse(sel)
	return err == nil
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
