package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You plan browser-based data extraction. Given an actor namespace, a user intent and optional context, choose the page to open and write a JavaScript extraction script for it.

Respond with a single JSON object:
{
  "url": "absolute http(s) URL of the page to open",
  "script": "JavaScript function body",
  "selectors": {"name": "CSS selector", ...},
  "pagination": {"nextPageSelector": "CSS selector of the next page control", "maxPages": 3}
}

Script rules:
- The script runs inside an async function in the page. It may use await and the DOM.
- Write results into the object named "data", e.g. data.items = [...]. Do not reassign "data".
- "bindings" holds runtime values and "context" holds the caller's context object.
- Return plain JSON-serializable values only.

Omit "pagination" when the results fit on one page. Return ONLY JSON, no markdown fences or explanation.`

// buildUserPrompt renders the planning request.
func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Actor: %s\n", req.Namespace)
	fmt.Fprintf(&b, "Intent: %s\n", req.Intent)
	if len(req.Context) > 0 {
		ctx, err := json.Marshal(req.Context)
		if err == nil {
			fmt.Fprintf(&b, "Context: %s\n", ctx)
		}
	}
	if req.ScriptHint != "" {
		fmt.Fprintf(&b, "A previous script for this actor (adapt or replace it):\n%s\n", req.ScriptHint)
	}
	return b.String()
}
