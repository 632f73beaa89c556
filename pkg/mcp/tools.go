package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/deskbot/internal/job"
)

// handleRun runs a job file. Run events are forwarded to the client as log
// notifications while the run is in progress.
func (s *DeskbotServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.jobs == nil {
		return mcp.NewToolResultError("job service is not configured"), nil
	}
	limit := extractInt(req.GetArguments(), "limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError("limit must be >= 0"), nil
	}
	path := req.GetString("config_path", s.configPath)

	s.logger.Info("run requested", "config_path", path, "limit", limit)
	result, err := s.jobs.Run(ctx, job.RunRequest{
		ConfigPath: path,
		Limit:      limit,
		Events:     newRunNotifier(s.mcpServer),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	return marshalResult(result)
}

// handleValidate checks a job file.
func (s *DeskbotServer) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.jobs == nil {
		return mcp.NewToolResultError("job service is not configured"), nil
	}
	path := req.GetString("config_path", s.configPath)

	result, err := s.jobs.Validate(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validate failed: %v", err)), nil
	}
	return marshalResult(map[string]any{
		"config_path": path,
		"valid":       result.Valid(),
		"errors":      result.Errors,
		"warnings":    result.Warnings,
	})
}

// handleHistory lists runs or returns one run's detail.
func (s *DeskbotServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("run history is not configured"), nil
	}
	q := job.HistoryQuery{
		RunID:  req.GetString("run_id", ""),
		Status: req.GetString("status", ""),
		Limit:  extractInt(req.GetArguments(), "limit", 0),
		JQ:     req.GetString("jq", ""),
	}

	out, err := s.history.Query(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	return marshalResult(out)
}

// handleActions lists the supported step kinds.
func (s *DeskbotServer) handleActions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"actions": s.actions.Actions()})
}

// extractInt reads an integer argument. JSON numbers arrive as float64.
func extractInt(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
