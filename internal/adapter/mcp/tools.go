package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/reverbhq/reverb/internal/domain/replay"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.replaySessionTool(),
		s.whatIfTool(),
		s.sessionCostTool(),
		s.agentStatsTool(),
	)
}

func (s *Server) replaySessionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("replay_session",
		mcplib.WithDescription("Replay a session's event log and return the reconstructed state, cost, and timeline"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to replay"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleReplaySession,
	}
}

func (s *Server) whatIfTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("what_if",
		mcplib.WithDescription("Replay a session with a different model substituted and compare the cost against the original"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to replay"),
		),
		mcplib.WithString("provider",
			mcplib.Required(),
			mcplib.Description("Provider of the substitute model, e.g. anthropic"),
		),
		mcplib.WithString("model",
			mcplib.Required(),
			mcplib.Description("Substitute model name, e.g. claude-sonnet-4-5"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleWhatIf,
	}
}

func (s *Server) sessionCostTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("session_cost",
		mcplib.WithDescription("Get the total LLM spend of a session in USD"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to aggregate"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSessionCost,
	}
}

func (s *Server) agentStatsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("agent_stats",
		mcplib.WithDescription("Get aggregate event statistics for an agent across all of its sessions"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to aggregate"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleAgentStats,
	}
}

func (s *Server) handleReplaySession(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Replayer == nil {
		return mcplib.NewToolResultError("replayer not configured"), nil
	}
	sessionID, ok := req.GetArguments()["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	res, err := s.deps.Replayer.Replay(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to replay session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal replay result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleWhatIf(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Replayer == nil {
		return mcplib.NewToolResultError("replayer not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	provider, _ := args["provider"].(string)
	model, _ := args["model"].(string)
	if provider == "" || model == "" {
		return mcplib.NewToolResultError("provider and model are required"), nil
	}
	res, err := s.deps.Replayer.WhatIf(ctx, sessionID, replay.Override{Provider: provider, Model: model})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to run what-if for session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal what-if result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleSessionCost(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Stats == nil {
		return mcplib.NewToolResultError("stats reader not configured"), nil
	}
	sessionID, ok := req.GetArguments()["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	total, err := s.deps.Stats.SessionCost(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get cost for session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(map[string]any{
		"sessionId":    sessionID,
		"totalCostUsd": total,
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal session cost", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleAgentStats(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Stats == nil {
		return mcplib.NewToolResultError("stats reader not configured"), nil
	}
	agentID, ok := req.GetArguments()["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	stats, err := s.deps.Stats.AgentStats(ctx, agentID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get stats for agent %s", agentID), err,
		), nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agent stats", err), nil
	}
	return toolResultJSON(string(data)), nil
}
