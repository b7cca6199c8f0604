// Package cost defines domain types for cost and event aggregation.
package cost

// SessionCost holds the realized LLM spend of one session.
type SessionCost struct {
	SessionID string  `json:"sessionId"`
	TotalUSD  float64 `json:"totalUsd"`
}

// AgentStats aggregates an agent's event log across all of its sessions.
type AgentStats struct {
	AgentID      string         `json:"agentId"`
	TotalEvents  int            `json:"totalEvents"`
	EventsByType map[string]int `json:"eventsByType"`
	TotalCostUSD float64        `json:"totalCostUsd"`
	AvgLatencyMS float64        `json:"avgLatencyMs"`
	SessionCount int            `json:"sessionCount"`
}
