package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	rvotel "github.com/reverbhq/reverb/internal/adapter/otel"
	"github.com/reverbhq/reverb/internal/domain"
	"github.com/reverbhq/reverb/internal/domain/event"
	"github.com/reverbhq/reverb/internal/domain/pricing"
	"github.com/reverbhq/reverb/internal/domain/replay"
	"github.com/reverbhq/reverb/internal/port/eventstore"
)

// ReplayService reconstructs agent state from the event log and produces
// what-if cost comparisons. It holds no state between invocations; every
// replay re-fetches and re-folds, so concurrent use needs no locking.
type ReplayService struct {
	events  *EventService
	costFn  replay.CostFn
	metrics *rvotel.Metrics // optional
}

// NewReplayService creates a new ReplayService. Pass a nil costFn to use the
// static pricing table for what-if recomputation.
func NewReplayService(events *EventService, costFn replay.CostFn, m *rvotel.Metrics) *ReplayService {
	if costFn == nil {
		costFn = func(provider, model string, in, out int64) (float64, error) {
			b, err := pricing.Calculate(provider, model, in, out)
			if err != nil {
				return 0, err
			}
			return b.TotalCostUSD, nil
		}
	}
	return &ReplayService{events: events, costFn: costFn, metrics: m}
}

// Replay reconstructs the full state of a session. A session with zero
// events is a hard error: it signals an unknown session, not an empty run.
func (s *ReplayService) Replay(ctx context.Context, sessionID string) (*replay.Result, error) {
	ctx, span := rvotel.StartReplaySpan(ctx, sessionID)
	defer span.End()
	start := time.Now()

	events, err := s.events.SessionEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay load events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no events found for session %s: %w", sessionID, domain.ErrNotFound)
	}

	state, err := replay.Fold(events, replay.FoldOptions{})
	if err != nil {
		return nil, fmt.Errorf("replay fold: %w", err)
	}

	originalCost, err := s.events.SessionCost(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay session cost: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Replays.Add(ctx, 1)
		s.metrics.ReplayDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.ReplayCost.Record(ctx, originalCost)
	}

	return &replay.Result{
		SessionID:   sessionID,
		TotalEvents: len(events),
		Cost:        replay.CostSummary{OriginalUSD: originalCost},
		FinalState:  state,
		Timeline:    replay.Timeline(events),
	}, nil
}

// ReplayFrom replays the suffix of a session starting at the given event id,
// inclusive. An event id absent from the session is a hard error, never
// silently clamped.
func (s *ReplayService) ReplayFrom(ctx context.Context, sessionID, fromEventID string) (*replay.Result, error) {
	return s.replaySlice(ctx, sessionID, fromEventID, true)
}

// ReplayTo replays the prefix of a session ending at the given event id,
// inclusive.
func (s *ReplayService) ReplayTo(ctx context.Context, sessionID, toEventID string) (*replay.Result, error) {
	return s.replaySlice(ctx, sessionID, toEventID, false)
}

// replaySlice fetches the full ordered session and folds the suffix starting
// at the boundary (from=true) or the prefix ending at it (from=false).
func (s *ReplayService) replaySlice(ctx context.Context, sessionID, eventID string, from bool) (*replay.Result, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required: %w", domain.ErrValidation)
	}

	ctx, span := rvotel.StartReplaySpan(ctx, sessionID)
	defer span.End()

	events, err := s.events.SessionEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay load events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no events found for session %s: %w", sessionID, domain.ErrNotFound)
	}

	event.SortByTimestamp(events)

	idx := -1
	for i := range events {
		if events[i].ID == eventID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("event %s not found in session %s: %w", eventID, sessionID, domain.ErrNotFound)
	}

	var slice []event.Event
	if from {
		slice = events[idx:]
	} else {
		slice = events[:idx+1]
	}

	state, err := replay.Fold(slice, replay.FoldOptions{})
	if err != nil {
		return nil, fmt.Errorf("replay fold: %w", err)
	}

	return &replay.Result{
		SessionID:   sessionID,
		TotalEvents: len(slice),
		Cost:        replay.CostSummary{OriginalUSD: state.Cost.TotalUSD},
		FinalState:  state,
		Timeline:    replay.Timeline(slice),
	}, nil
}

// ReplayNative passes through to the storage adapter's own replay-from-event
// capability. The adapter result is returned verbatim, not reprocessed.
func (s *ReplayService) ReplayNative(ctx context.Context, eventID string) (*eventstore.NativeReplay, error) {
	nr, ok := s.events.Store().(eventstore.NativeReplayer)
	if !ok {
		return nil, fmt.Errorf("storage adapter does not support native replay")
	}
	return nr.ReplayFromEvent(ctx, eventID)
}

// WhatIf replays the session once for the baseline, then re-folds the same
// event sequence with every llm.response repriced for the override model.
// A negative cost difference means the override would have been cheaper.
func (s *ReplayService) WhatIf(ctx context.Context, sessionID string, ov replay.Override) (*replay.WhatIfResult, error) {
	if ov.Provider == "" || ov.Model == "" {
		return nil, fmt.Errorf("override provider and model are required: %w", domain.ErrValidation)
	}

	ctx, span := rvotel.StartWhatIfSpan(ctx, sessionID, ov.Provider, ov.Model)
	defer span.End()

	base, err := s.Replay(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.SessionEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("whatif load events: %w", err)
	}

	state, err := replay.Fold(events, replay.FoldOptions{Override: &ov, Cost: s.costFn})
	if err != nil {
		return nil, fmt.Errorf("whatif fold: %w", err)
	}

	diff := replay.Diff{CostDifferenceUSD: state.Cost.TotalUSD - base.Cost.OriginalUSD}
	if base.Cost.OriginalUSD != 0 {
		diff.PercentChange = diff.CostDifferenceUSD / base.Cost.OriginalUSD * 100
	}

	return &replay.WhatIfResult{
		SessionID:       sessionID,
		Override:        ov,
		OriginalCostUSD: base.Cost.OriginalUSD,
		ReplayedCostUSD: state.Cost.TotalUSD,
		ReplayedState:   state,
		Diff:            diff,
	}, nil
}

// CompareScenarios runs one what-if per named scenario, concurrently, and
// returns outcomes in input order. Callers wanting cheapest-first sort the
// result themselves.
func (s *ReplayService) CompareScenarios(ctx context.Context, sessionID string, scenarios []replay.Scenario) ([]replay.ScenarioOutcome, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("at least one scenario is required: %w", domain.ErrValidation)
	}

	outcomes := make([]replay.ScenarioOutcome, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)

	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := s.WhatIf(ctx, sessionID, sc.Override)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			outcomes[i] = replay.ScenarioOutcome{
				Name:              sc.Name,
				Override:          sc.Override,
				TotalCostUSD:      res.ReplayedCostUSD,
				CostVsOriginalUSD: res.Diff.CostDifferenceUSD,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
