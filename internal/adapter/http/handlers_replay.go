package http

import (
	"net/http"

	"github.com/reverbhq/reverb/internal/domain/replay"
)

// ReplaySession handles GET /api/v1/sessions/{id}/replay
//
// Optional query parameters from= and to= (event ids) replay a suffix or
// prefix of the session instead of the whole timeline.
func (h *Handlers) ReplaySession(w http.ResponseWriter, r *http.Request) {
	sessionID := urlParam(r, "id")
	q := r.URL.Query()
	from := q.Get("from")
	to := q.Get("to")

	if from != "" && to != "" {
		writeError(w, http.StatusBadRequest, "from and to are mutually exclusive")
		return
	}

	var (
		res *replay.Result
		err error
	)
	switch {
	case from != "":
		res, err = h.Replay.ReplayFrom(r.Context(), sessionID, from)
	case to != "":
		res, err = h.Replay.ReplayTo(r.Context(), sessionID, to)
	default:
		res, err = h.Replay.Replay(r.Context(), sessionID)
	}
	if err != nil {
		writeDomainError(w, err, "session or event not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NativeReplay handles GET /api/v1/events/{id}/replay
func (h *Handlers) NativeReplay(w http.ResponseWriter, r *http.Request) {
	res, err := h.Replay.ReplayNative(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WhatIf handles POST /api/v1/sessions/{id}/whatif
func (h *Handlers) WhatIf(w http.ResponseWriter, r *http.Request) {
	ov, ok := readJSON[replay.Override](w, r, maxBodyBytes)
	if !ok {
		return
	}

	res, err := h.Replay.WhatIf(r.Context(), urlParam(r, "id"), ov)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type compareScenariosRequest struct {
	Scenarios []replay.Scenario `json:"scenarios"`
}

type compareScenariosResponse struct {
	SessionID string                   `json:"sessionId"`
	Outcomes  []replay.ScenarioOutcome `json:"outcomes"`
}

// CompareScenarios handles POST /api/v1/sessions/{id}/scenarios
func (h *Handlers) CompareScenarios(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[compareScenariosRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	sessionID := urlParam(r, "id")
	outcomes, err := h.Replay.CompareScenarios(r.Context(), sessionID, req.Scenarios)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, compareScenariosResponse{SessionID: sessionID, Outcomes: outcomes})
}
