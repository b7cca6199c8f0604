package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reverbhq/reverb/internal/domain"
	"github.com/reverbhq/reverb/internal/domain/event"
	"github.com/reverbhq/reverb/internal/port/eventstore"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
// It also implements eventstore.NativeReplayer with set-based SQL so large
// sessions replay without shipping every event through the service layer.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

var (
	_ eventstore.Store          = (*EventStore)(nil)
	_ eventstore.NativeReplayer = (*EventStore)(nil)
)

// SaveEvent inserts a new event into the agent_events table and returns the
// database-assigned id.
func (s *EventStore) SaveEvent(ctx context.Context, ev *event.Event) (string, error) {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	metadata, err := json.Marshal(orEmptyMap(ev.Metadata))
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO agent_events (event_type, ts, session_id, agent_id, correlation_id, version, metadata, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		string(ev.Type), ev.Timestamp, ev.SessionID, ev.AgentID, ev.CorrelationID, ev.Version, metadata, payload).
		Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save event: %w", err)
	}
	return id, nil
}

// eventColumns is the SELECT column list for agent_events queries.
const eventColumns = `id, event_type, ts, session_id, agent_id, correlation_id, version, metadata, payload`

// scanEvent scans a row into an Event, decoding the payload by event type.
func scanEvent(scanner interface{ Scan(dest ...any) error }, ev *event.Event) error {
	var (
		typ      string
		metadata []byte
		payload  []byte
	)
	if err := scanner.Scan(&ev.ID, &typ, &ev.Timestamp, &ev.SessionID, &ev.AgentID,
		&ev.CorrelationID, &ev.Version, &metadata, &payload); err != nil {
		return err
	}
	ev.Type = event.Type(typ)
	ev.Timestamp = ev.Timestamp.UTC()

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(ev.Metadata) == 0 {
		ev.Metadata = nil
	}

	p, err := event.DecodePayload(ev.Type, payload)
	if err != nil {
		// A row a buggy producer persisted must not poison whole-session
		// reads; replays treat it as an event with no payload.
		ev.Payload = nil
		return nil
	}
	ev.Payload = p
	return nil
}

// GetEvents returns events matching the filter, ordered by timestamp with
// insertion order breaking ties.
func (s *EventStore) GetEvents(ctx context.Context, f eventstore.Filter) ([]event.Event, error) {
	var (
		conditions []string
		args       []any
	)
	argIdx := 1

	add := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, val)
		argIdx++
	}

	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.CorrelationID != "" {
		add("correlation_id = $%d", f.CorrelationID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("event_type = ANY($%d)", types)
	}
	if f.StartTime > 0 {
		add("ts >= $%d", time.UnixMilli(f.StartTime).UTC())
	}
	if f.EndTime > 0 {
		add("ts <= $%d", time.UnixMilli(f.EndTime).UTC())
	}

	query := fmt.Sprintf(`SELECT %s FROM agent_events`, eventColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts ASC, seq ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ReplayFromEvent loads the session suffix starting at the given event and
// computes cost and duration in SQL. Start and end states are the boundary
// event payloads as stored, returned verbatim.
func (s *EventStore) ReplayFromEvent(ctx context.Context, eventID string) (*eventstore.NativeReplay, error) {
	var sessionID string
	var fromTS time.Time
	var fromSeq int64
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, ts, seq FROM agent_events WHERE id = $1`, eventID).
		Scan(&sessionID, &fromTS, &fromSeq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("locate replay origin: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM agent_events
		 WHERE session_id = $1 AND (ts, seq) >= ($2, $3)
		 ORDER BY ts ASC, seq ASC`, eventColumns),
		sessionID, fromTS, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("load replay events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan replay event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var totalCost float64
	var durationMS int64
	var startState, endState []byte
	err = s.pool.QueryRow(ctx,
		`SELECT
		   COALESCE(SUM((payload->>'costUsd')::float) FILTER (WHERE event_type = 'llm.response'), 0),
		   COALESCE(EXTRACT(EPOCH FROM (MAX(ts) - MIN(ts))) * 1000, 0)::bigint,
		   (array_agg(payload ORDER BY ts ASC, seq ASC))[1],
		   (array_agg(payload ORDER BY ts DESC, seq DESC))[1]
		 FROM agent_events
		 WHERE session_id = $1 AND (ts, seq) >= ($2, $3)`,
		sessionID, fromTS, fromSeq).
		Scan(&totalCost, &durationMS, &startState, &endState)
	if err != nil {
		return nil, fmt.Errorf("replay aggregates: %w", err)
	}

	return &eventstore.NativeReplay{
		Events:       events,
		TotalCostUSD: totalCost,
		DurationMS:   durationMS,
		StartState:   json.RawMessage(startState),
		EndState:     json.RawMessage(endState),
	}, nil
}

// marshalPayload encodes a payload for the JSONB column. Nil payloads become
// SQL NULL, not the string "null".
func marshalPayload(p event.Payload) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// orEmptyMap ensures metadata serializes as {} instead of null.
func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
