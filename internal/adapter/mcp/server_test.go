package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	rvmcp "github.com/reverbhq/reverb/internal/adapter/mcp"
	"github.com/reverbhq/reverb/internal/domain/cost"
	"github.com/reverbhq/reverb/internal/domain/replay"
)

// --- Mocks ---

type mockReplayer struct {
	result *replay.Result
	whatIf *replay.WhatIfResult
	err    error
}

func (m *mockReplayer) Replay(_ context.Context, _ string) (*replay.Result, error) {
	return m.result, m.err
}

func (m *mockReplayer) WhatIf(_ context.Context, _ string, _ replay.Override) (*replay.WhatIfResult, error) {
	return m.whatIf, m.err
}

type mockStats struct {
	cost  float64
	stats *cost.AgentStats
	err   error
}

func (m *mockStats) SessionCost(_ context.Context, _ string) (float64, error) {
	return m.cost, m.err
}

func (m *mockStats) AgentStats(_ context.Context, _ string) (*cost.AgentStats, error) {
	return m.stats, m.err
}

// --- Tests ---

func TestNewServer(t *testing.T) {
	cfg := rvmcp.ServerConfig{
		Addr:    ":8090",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := rvmcp.NewServer(cfg, rvmcp.ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestServerStartStop(t *testing.T) {
	cfg := rvmcp.ServerConfig{
		Addr:    ":0",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := rvmcp.NewServer(cfg, rvmcp.ServerDeps{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	s := rvmcp.NewServer(rvmcp.ServerConfig{Name: "test", Version: "0.1.0"}, rvmcp.ServerDeps{
		Replayer: &mockReplayer{},
		Stats:    &mockStats{},
	})

	tools := s.MCPServer().ListTools()
	if len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools))
	}

	expectedTools := map[string]bool{
		"replay_session": false,
		"what_if":        false,
		"session_cost":   false,
		"agent_stats":    false,
	}
	for name := range tools {
		if _, ok := expectedTools[name]; ok {
			expectedTools[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleReplaySession(t *testing.T) {
	deps := rvmcp.ServerDeps{
		Replayer: &mockReplayer{
			result: &replay.Result{
				SessionID:   "sess-1",
				TotalEvents: 3,
				Cost:        replay.CostSummary{OriginalUSD: 0.015},
			},
		},
	}
	s := rvmcp.NewServer(rvmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	replayTool, ok := tools["replay_session"]
	if !ok {
		t.Fatal("replay_session tool not found")
	}

	result, err := replayTool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "replay_session",
			Arguments: map[string]any{"session_id": "sess-1"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var res replay.Result
	if err := json.Unmarshal([]byte(text.Text), &res); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if res.TotalEvents != 3 {
		t.Fatalf("expected 3 events, got %d", res.TotalEvents)
	}
}

func TestHandleReplaySessionMissingArg(t *testing.T) {
	s := rvmcp.NewServer(rvmcp.ServerConfig{Name: "test", Version: "0.1.0"}, rvmcp.ServerDeps{
		Replayer: &mockReplayer{},
	})

	tools := s.MCPServer().ListTools()
	replayTool := tools["replay_session"]

	result, err := replayTool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "replay_session"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for a missing session_id")
	}
}

func TestHandleWhatIf(t *testing.T) {
	deps := rvmcp.ServerDeps{
		Replayer: &mockReplayer{
			whatIf: &replay.WhatIfResult{
				SessionID:       "sess-1",
				OriginalCostUSD: 0.015,
				ReplayedCostUSD: 0.003,
				Diff:            replay.Diff{CostDifferenceUSD: -0.012},
			},
		},
	}
	s := rvmcp.NewServer(rvmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	whatIfTool := tools["what_if"]

	result, err := whatIfTool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name: "what_if",
			Arguments: map[string]any{
				"session_id": "sess-1",
				"provider":   "openai",
				"model":      "gpt-4o-mini",
			},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text := result.Content[0].(mcplib.TextContent)
	var res replay.WhatIfResult
	if err := json.Unmarshal([]byte(text.Text), &res); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if res.Diff.CostDifferenceUSD != -0.012 {
		t.Fatalf("expected diff -0.012, got %f", res.Diff.CostDifferenceUSD)
	}
}

func TestHandleSessionCostError(t *testing.T) {
	deps := rvmcp.ServerDeps{
		Stats: &mockStats{err: errors.New("db down")},
	}
	s := rvmcp.NewServer(rvmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	costTool := tools["session_cost"]

	result, err := costTool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "session_cost",
			Arguments: map[string]any{"session_id": "sess-1"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error when the stats reader fails")
	}
}

func TestHandleAgentStats(t *testing.T) {
	deps := rvmcp.ServerDeps{
		Stats: &mockStats{
			stats: &cost.AgentStats{AgentID: "agent-1", TotalEvents: 42},
		},
	}
	s := rvmcp.NewServer(rvmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	statsTool := tools["agent_stats"]

	result, err := statsTool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "agent_stats",
			Arguments: map[string]any{"agent_id": "agent-1"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text := result.Content[0].(mcplib.TextContent)
	var stats cost.AgentStats
	if err := json.Unmarshal([]byte(text.Text), &stats); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if stats.TotalEvents != 42 {
		t.Fatalf("expected 42 events, got %d", stats.TotalEvents)
	}
}
