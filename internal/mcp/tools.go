package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all benchmark service tools on the MCP server.
func RegisterTools(s *server.MCPServer, client *Client) {
	registerHealth(s, client)
	registerScenarios(s, client)
	registerStartRun(s, client)
	registerRuns(s, client)
	registerRunDetail(s, client)
	registerAggregate(s, client)
	registerTipPreview(s, client)
	registerAutopilotStatus(s, client)
	registerAutopilotStart(s, client)
	registerAutopilotStop(s, client)
}

func registerHealth(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_health",
		gomcp.WithDescription("Quick health check for the benchmark service. Checks Gateway and Solana RPC connectivity."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/ready")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Benchmark service unhealthy: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHealth(raw)), nil
	})
}

func registerScenarios(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_scenarios",
		gomcp.WithDescription("List available benchmark scenarios with their default counts and amounts."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/v1/scenarios")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Scenarios failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatScenarios(raw)), nil
	})
}

func registerStartRun(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_start_run",
		gomcp.WithDescription("Start a benchmark run. This is a MUTATING operation. Scenarios: transfer, airdrop, swap, mint, payment."),
		gomcp.WithString("scenario",
			gomcp.Required(),
			gomcp.Description("Benchmark scenario: transfer, airdrop, swap, mint, payment"),
		),
		gomcp.WithString("name",
			gomcp.Description("Display name for the run (default: derived from scenario)"),
		),
		gomcp.WithNumber("count",
			gomcp.Description("Number of transactions to attempt, 1-100 (default: scenario default)"),
		),
		gomcp.WithNumber("amount_lamports",
			gomcp.Description("Lamports transferred per transaction (default: scenario default)"),
		),
		gomcp.WithString("recipient",
			gomcp.Description("Recipient address (default: configured recipient)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		scenario, err := req.RequireString("scenario")
		if err != nil {
			return gomcp.NewToolResultError("scenario is required"), nil
		}

		payload := map[string]any{
			"scenario": scenario,
		}
		if v := req.GetString("name", ""); v != "" {
			payload["name"] = v
		}
		if v := req.GetInt("count", 0); v > 0 {
			payload["count"] = v
		}
		if v := req.GetInt("amount_lamports", 0); v > 0 {
			payload["amountLamports"] = v
		}
		if v := req.GetString("recipient", ""); v != "" {
			payload["recipient"] = v
		}

		raw, err := client.Post("/v1/runs", payload)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Start run failed: %v", err)), nil
		}

		var run map[string]any
		json.Unmarshal(raw, &run)
		return gomcp.NewToolResultText(joinLines(
			section("Run Started"),
			kv("ID", getStr(run, "id")),
			kv("Name", getStr(run, "name")),
			kv("Scenario", getStr(run, "scenario")),
			kv("Requested", formatNumber(getNum(run, "requested"))),
			kv("Amount", formatLamports(getNum(run, "amountLamports"))),
		)), nil
	})
}

func registerRuns(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_runs",
		gomcp.WithDescription("List benchmark runs, newest first, with summary metrics."),
		gomcp.WithString("status",
			gomcp.Description("Filter by status: running, completed, failed (default: all)"),
		),
		gomcp.WithNumber("limit",
			gomcp.Description("Max results to return (default: 10, max: 500)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		path := fmt.Sprintf("/v1/runs?limit=%d", limit)
		if status := req.GetString("status", ""); status != "" {
			path += "&status=" + status
		}

		raw, err := client.Get(path)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("List runs failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatRuns(raw)), nil
	})
}

func registerRunDetail(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_run_detail",
		gomcp.WithDescription("Get detailed results for a benchmark run by ID, including per-attempt records."),
		gomcp.WithString("id",
			gomcp.Required(),
			gomcp.Description("Run ID"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return gomcp.NewToolResultError("id is required"), nil
		}
		raw, err := client.Get("/v1/runs/" + id)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Run detail failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatRunDetail(raw)), nil
	})
}

func registerAggregate(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_aggregate",
		gomcp.WithDescription("Aggregate metrics across all completed runs in a time window: success rate, latency, costs."),
		gomcp.WithString("window",
			gomcp.Description("Aggregation window: 1h, 24h, 7d, 30d (default: 24h)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		window := req.GetString("window", "24h")
		raw, err := client.Get("/v1/aggregate?window=" + window)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Aggregate failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatAggregate(raw)), nil
	})
}

func registerTipPreview(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_tip_preview",
		gomcp.WithDescription("Preview the Gateway tip instructions for a delivery tier without submitting anything."),
		gomcp.WithString("tier",
			gomcp.Description("Tip tier: low, medium, high, max (default: configured tier)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		path := "/v1/tip-preview"
		if tier := req.GetString("tier", ""); tier != "" {
			path += "?tier=" + tier
		}
		raw, err := client.Get(path)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Tip preview failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatTipPreview(raw)), nil
	})
}

func registerAutopilotStatus(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_autopilot_status",
		gomcp.WithDescription("Get the autopilot (scheduled runs) status."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/v1/autopilot")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Autopilot status failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatAutopilot(raw)), nil
	})
}

func registerAutopilotStart(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_autopilot_start",
		gomcp.WithDescription("Start the autopilot: periodic scheduled benchmark runs. This is a MUTATING operation."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Post("/v1/autopilot/start", nil)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Autopilot start failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatAutopilot(raw)), nil
	})
}

func registerAutopilotStop(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("gwbench_autopilot_stop",
		gomcp.WithDescription("Stop the autopilot. In-flight runs finish normally. This is a MUTATING operation."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Post("/v1/autopilot/stop", nil)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Autopilot stop failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatAutopilot(raw)), nil
	})
}

// Response formatting functions

func formatHealth(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing health: %v", err)
	}

	ready, _ := m["ready"].(bool)
	state := "READY"
	if !ready {
		state = "NOT READY"
	}

	lines := section("Benchmark Service Health: " + state)

	if checks, ok := m["checks"].(map[string]any); ok {
		for _, name := range []string{"gateway", "chainRpc"} {
			check, ok := checks[name].(map[string]any)
			if !ok {
				continue
			}
			status := getStr(check, "status")
			latencyMs := getNum(check, "latencyMs")
			lines += fmt.Sprintf("\n  %-10s %s (%dms)", name, status, int64(latencyMs))
		}
	}

	return lines
}

func formatScenarios(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing scenarios: %v", err)
	}

	lines := section("Benchmark Scenarios")

	scenarios, ok := m["scenarios"].([]any)
	if !ok || len(scenarios) == 0 {
		return lines + "\nNo scenarios available."
	}

	for _, sc := range scenarios {
		s, ok := sc.(map[string]any)
		if !ok {
			continue
		}
		lines += fmt.Sprintf("\n  %-10s %s (count %s, %s lamports/tx)",
			getStr(s, "scenario"),
			getStr(s, "displayName"),
			formatNumber(getNum(s, "defaultCount")),
			formatNumber(getNum(s, "defaultAmountLamports")),
		)
	}

	return lines
}

func formatRuns(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing runs: %v", err)
	}

	count := getNum(m, "count")
	lines := joinLines(
		section("Benchmark Runs"),
		kv("Count", formatNumber(count)),
		"",
	)

	runs, ok := m["runs"].([]any)
	if !ok || len(runs) == 0 {
		lines += "No runs found."
		return lines
	}

	for _, r := range runs {
		run, ok := r.(map[string]any)
		if !ok {
			continue
		}
		lines += "### " + getStr(run, "id") + "\n"
		lines += formatRunFields(run)
		lines += "\n\n"
	}

	return lines
}

func formatRunDetail(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing run detail: %v", err)
	}

	run, ok := m["run"].(map[string]any)
	if !ok {
		return "Run not found"
	}

	lines := section("Run: "+getStr(run, "id")) + "\n"
	lines += formatRunFields(run)

	if summary, ok := run["summary"].(map[string]any); ok {
		lines += "\n\n" + formatSummary(summary)
	}

	attempts, ok := m["attempts"].([]any)
	if ok && len(attempts) > 0 {
		lines += "\n\n" + section("Attempts")
		for i, a := range attempts {
			if i >= 20 {
				lines += fmt.Sprintf("\n... and %d more", len(attempts)-20)
				break
			}
			attempt, ok := a.(map[string]any)
			if !ok {
				continue
			}
			status := getStr(attempt, "status")
			latency := int64(getNum(attempt, "latencyMs"))
			line := fmt.Sprintf("\n  [%d] %-8s %dms", i+1, status, latency)
			if sig := getStr(attempt, "signature"); sig != "" {
				line += "  " + truncate(sig, 18)
			}
			if route := getStr(attempt, "route"); route != "" {
				line += "  via " + route
			}
			if errMsg := getStr(attempt, "errorMessage"); errMsg != "" {
				line += "  - " + errMsg
			}
			lines += line
		}
	}

	return lines
}

func formatAggregate(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing aggregate: %v", err)
	}

	lines := joinLines(
		section("Aggregate: "+getStr(m, "window")),
		kv("Runs", formatNumber(getNum(m, "runs"))),
		kv("Requested TXs", formatNumber(getNum(m, "requestedTransactions"))),
	)

	if summary, ok := m["summary"].(map[string]any); ok {
		lines += "\n\n" + formatSummary(summary)
	}

	return lines
}

func formatTipPreview(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing tip preview: %v", err)
	}

	lines := section("Tip Instructions")

	instrs, ok := m["instructions"].([]any)
	if !ok || len(instrs) == 0 {
		return lines + "\nNo tip instructions returned."
	}

	for i, in := range instrs {
		instr, ok := in.(map[string]any)
		if !ok {
			continue
		}
		lines += fmt.Sprintf("\n  [%d] program %s", i, truncate(getStr(instr, "programId"), 18))
		if accounts, ok := instr["accounts"].([]any); ok {
			lines += fmt.Sprintf(", %d accounts", len(accounts))
		}
	}

	return lines
}

func formatAutopilot(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing autopilot status: %v", err)
	}

	enabled, _ := m["enabled"].(bool)
	state := "STOPPED"
	if enabled {
		state = "RUNNING"
	}

	lines := joinLines(
		section("Autopilot: "+state),
		kv("Runs Started", formatNumber(getNum(m, "runsStarted"))),
	)
	if enabled {
		lines += "\n" + joinLines(
			kv("Scenario", getStr(m, "scenario")),
			kv("Interval", fmt.Sprintf("%ds", int64(getNum(m, "intervalSec")))),
		)
	}
	if id := getStr(m, "lastRunId"); id != "" {
		lines += "\n" + kv("Last Run", id)
	}
	if errMsg := getStr(m, "lastError"); errMsg != "" {
		lines += "\n" + kv("Last Error", errMsg)
	}

	return lines
}

// formatRunFields renders the common run fields shared by list and detail.
func formatRunFields(run map[string]any) string {
	requested := getNum(run, "requested")
	successes := getNum(run, "successes")
	failures := getNum(run, "failures")

	createdAt := getStr(run, "createdAt")
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		createdAt = t.Format("2006-01-02 15:04:05")
	}

	lines := joinLines(
		kv("Name", getStr(run, "name")),
		kv("Scenario", getStr(run, "scenario")),
		kv("Status", getStr(run, "status")),
		kv("Progress", fmt.Sprintf("%s/%s (%s failed)",
			formatNumber(successes+failures), formatNumber(requested), formatNumber(failures))),
		kv("Started", createdAt),
	)
	if errMsg := getStr(run, "errorMessage"); errMsg != "" {
		lines += "\n" + kv("Error", errMsg)
	}
	return lines
}

func formatSummary(summary map[string]any) string {
	return joinLines(
		section("Summary"),
		kv("Success Rate", formatPct(getNum(summary, "successRate"))),
		kv("Latency Min", formatMs(getNum(summary, "minLatencyMs"))),
		kv("Latency Avg", formatMs(getNum(summary, "avgLatencyMs"))),
		kv("Latency Max", formatMs(getNum(summary, "maxLatencyMs"))),
		kv("Avg Cost", formatLamports(getNum(summary, "avgCostLamports"))),
		kv("Total Cost", formatLamports(getNum(summary, "totalCostLamports"))),
		kv("Tips Refunded", formatLamports(getNum(summary, "totalTipRefundedLamports"))),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Helper functions
func getStr(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getNum(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		if n, ok := v.(float64); ok {
			return n
		}
	}
	return 0
}
