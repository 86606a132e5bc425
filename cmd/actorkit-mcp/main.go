package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiError mirrors the error detail of the actorkit API.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// runResponse mirrors the fields of a run response this tool reports.
type runResponse struct {
	Success         bool              `json:"success"`
	ExecutionID     string            `json:"executionId"`
	Status          string            `json:"status"`
	URL             string            `json:"url"`
	ScrapedData     json.RawMessage   `json:"scrapedData"`
	Result          json.RawMessage   `json:"result"`
	PagesVisited    int               `json:"pagesVisited"`
	SelectorMatches map[string]int    `json:"selectorMatches"`
	Selectors       map[string]string `json:"selectors"`
	Error           *apiError         `json:"error"`
}

// errorResponse mirrors the body of non-run API errors.
type errorResponse struct {
	Error *apiError `json:"error"`
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("ACTORKIT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("ACTORKIT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ACTORKIT_API_KEY is required")
		os.Exit(1)
	}

	c := &client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		// Runs may take up to the server's 600s cap.
		http: &http.Client{Timeout: 620 * time.Second},
	}

	s := server.NewMCPServer(
		"actorkit",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	runActorTool := mcp.NewTool("run_actor",
		mcp.WithDescription("Run an extraction actor: a headless browser opens the page the planner picks for the intent, captures its JSON API responses and runs an extraction script across paginated pages."),
		mcp.WithString("actor",
			mcp.Required(),
			mcp.Description("Actor id or namespace"),
		),
		mcp.WithString("intent",
			mcp.Required(),
			mcp.Description("What to extract, in plain language"),
		),
		mcp.WithString("context",
			mcp.Description("Optional JSON object passed to the planner and the script"),
		),
		mcp.WithString("script",
			mcp.Description("Optional extraction script overriding the planner's"),
		),
		mcp.WithString("match_criteria",
			mcp.Description("URL substring or glob selecting which responses to capture (default: '/api/')"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Run timeout in seconds (default: 120, max: 600)"),
		),
	)
	s.AddTool(runActorTool, c.handleRunActor)

	getExecutionTool := mcp.NewTool("get_execution",
		mcp.WithDescription("Fetch one execution record with its status, timing and stored results."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Execution id"),
		),
	)
	s.AddTool(getExecutionTool, c.handleGetExecution)

	listExecutionsTool := mcp.NewTool("list_executions",
		mcp.WithDescription("List an actor's executions, newest first."),
		mcp.WithString("actor",
			mcp.Required(),
			mcp.Description("Actor id or namespace"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of executions (default: 20, max: 100)"),
		),
	)
	s.AddTool(listExecutionsTool, c.handleListExecutions)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request to the API and returns the status code and body.
func (c *client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, b, nil
}

// errorResult formats a non-2xx API answer.
func errorResult(status int, body []byte) *mcp.CallToolResult {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", er.Error.Code, er.Error.Message))
	}
	return mcp.NewToolResultError(fmt.Sprintf("API returned HTTP %d", status))
}

func (c *client) handleRunActor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, err := request.RequireString("actor")
	if err != nil {
		return mcp.NewToolResultError("actor is required"), nil
	}
	intent, err := request.RequireString("intent")
	if err != nil {
		return mcp.NewToolResultError("intent is required"), nil
	}

	payload := map[string]any{"intent": intent}
	if raw := request.GetString("context", ""); raw != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("context must be a JSON object: %v", err)), nil
		}
		payload["context"] = extra
	}
	if script := request.GetString("script", ""); script != "" {
		payload["script"] = script
	}
	if mc := request.GetString("match_criteria", ""); mc != "" {
		payload["match_criteria"] = mc
	}
	if timeout := request.GetInt("timeout", 0); timeout > 0 {
		payload["timeout"] = timeout
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/actors/"+url.PathEscape(actor)+"/run", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var rr runResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.ExecutionID == "" {
		return errorResult(status, body), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Execution %s: %s\n", rr.ExecutionID, rr.Status)
	if rr.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", rr.URL)
	}
	fmt.Fprintf(&sb, "Pages visited: %d\n", rr.PagesVisited)
	for name, n := range rr.SelectorMatches {
		fmt.Fprintf(&sb, "Selector %s (%s): %d matches\n", name, rr.Selectors[name], n)
	}
	if rr.Error != nil {
		fmt.Fprintf(&sb, "Error: [%s] %s\n", rr.Error.Code, rr.Error.Message)
	}
	sb.WriteString("\nResult:\n")
	sb.WriteString(indent(rr.Result))
	sb.WriteString("\n\nCaptured responses:\n")
	sb.WriteString(indent(rr.ScrapedData))

	if !rr.Success {
		return mcp.NewToolResultError(sb.String()), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/executions/"+url.PathEscape(id), nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != http.StatusOK {
		return errorResult(status, body), nil
	}
	return mcp.NewToolResultText(indent(body)), nil
}

func (c *client) handleListExecutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, err := request.RequireString("actor")
	if err != nil {
		return mcp.NewToolResultError("actor is required"), nil
	}

	path := "/api/v1/actors/" + url.PathEscape(actor) + "/executions"
	if limit := request.GetInt("limit", 0); limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != http.StatusOK {
		return errorResult(status, body), nil
	}

	var list struct {
		Executions []struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
			Logs      string `json:"logs"`
		} `json:"executions"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d executions (showing %d):\n\n", list.Total, len(list.Executions))
	for _, e := range list.Executions {
		fmt.Fprintf(&sb, "- %s  %-9s  started %s", e.ID, e.Status, e.StartTime)
		if e.EndTime != "" {
			fmt.Fprintf(&sb, "  ended %s", e.EndTime)
		}
		if e.Logs != "" {
			fmt.Fprintf(&sb, "  (%s)", e.Logs)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// indent pretty-prints JSON, falling back to the raw bytes.
func indent(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
