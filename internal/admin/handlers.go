package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/goodtune/breaktime/internal/budget"
	"github.com/goodtune/breaktime/internal/rules"
	"github.com/goodtune/breaktime/internal/storage"
)

// StatusResponse describes the current budget state for a display.
type StatusResponse struct {
	Phase          budget.Phase `json:"phase"`
	AllowedMinutes int          `json:"allowed_time_minutes"`
	TimeSpentMS    int64        `json:"time_spent_ms"`
	RemainingMS    int64        `json:"remaining_ms"`
	Countdown      string       `json:"countdown"`
	BreakEndMS     int64        `json:"break_end_ms,omitempty"`
	EditsLocked    bool         `json:"edits_locked"`
}

// ConfigResponse is the editable configuration surface.
type ConfigResponse struct {
	AllowedMinutes int      `json:"allowed_time_minutes"`
	BlockedEntries []string `json:"blocked_entries"`
}

// ConfigRequest is the PUT /api/config body.
type ConfigRequest struct {
	AllowedMinutes int      `json:"allowed_time_minutes"`
	BlockedEntries []string `json:"blocked_entries"`
}

// RuleRequest is the POST and DELETE /api/rules body.
type RuleRequest struct {
	Pattern string `json:"pattern"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.state.Get(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read state")
		writeError(w, http.StatusInternalServerError, "Failed to read state")
		return
	}

	nowMS := storage.NowMS(time.Now())
	phase := s.observedPhase(st, nowMS)

	resp := StatusResponse{
		Phase:          phase,
		AllowedMinutes: st.AllowedMinutes,
		TimeSpentMS:    st.TimeSpentMS,
		RemainingMS:    st.RemainingMS(),
		Countdown:      budget.FormatCountdown(st.RemainingMS()),
		EditsLocked:    phase != budget.PhaseIdle,
	}
	if st.BreakActive(nowMS) {
		resp.BreakEndMS = st.BreakEndMS
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	st, err := s.state.Get(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read state")
		writeError(w, http.StatusInternalServerError, "Failed to read state")
		return
	}

	writeJSON(w, http.StatusOK, ConfigResponse{
		AllowedMinutes: st.AllowedMinutes,
		BlockedEntries: st.BlockedEntries,
	})
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AllowedMinutes < 1 {
		writeError(w, http.StatusBadRequest, "Allowed time must be at least one minute")
		return
	}

	set, err := rules.NewStrictSet(req.BlockedEntries)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if locked, phase := s.editsLocked(ctx); locked {
		writeError(w, http.StatusConflict, "Configuration is locked while phase is "+string(phase))
		return
	}

	if err := s.state.SetConfig(ctx, req.AllowedMinutes, set.Entries()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist configuration")
		writeError(w, http.StatusInternalServerError, "Failed to persist configuration")
		return
	}

	s.logger.Info().
		Int("allowed_minutes", req.AllowedMinutes).
		Int("entries", set.Len()).
		Msg("Configuration updated")

	writeJSON(w, http.StatusOK, ConfigResponse{
		AllowedMinutes: req.AllowedMinutes,
		BlockedEntries: set.Entries(),
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	st, err := s.state.Get(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read state")
		writeError(w, http.StatusInternalServerError, "Failed to read state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": st.BlockedEntries,
		"count": len(st.BlockedEntries),
	})
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeRuleRequest(w, r)
	if !ok {
		return
	}

	if locked, phase := s.editsLocked(ctx); locked {
		writeError(w, http.StatusConflict, "Rules are locked while phase is "+string(phase))
		return
	}

	st, err := s.state.Get(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read state")
		writeError(w, http.StatusInternalServerError, "Failed to read state")
		return
	}

	set := rules.NewSet(st.BlockedEntries)
	if err := set.Add(req.Pattern); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.state.SetConfig(ctx, st.AllowedMinutes, set.Entries()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist rules")
		writeError(w, http.StatusInternalServerError, "Failed to persist rules")
		return
	}

	s.logger.Info().Str("pattern", req.Pattern).Msg("Rule added")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rules": set.Entries(),
		"count": set.Len(),
	})
}

func (s *Server) handleRemoveRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeRuleRequest(w, r)
	if !ok {
		return
	}

	if locked, phase := s.editsLocked(ctx); locked {
		writeError(w, http.StatusConflict, "Rules are locked while phase is "+string(phase))
		return
	}

	st, err := s.state.Get(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read state")
		writeError(w, http.StatusInternalServerError, "Failed to read state")
		return
	}

	set := rules.NewSet(st.BlockedEntries)
	if !set.Remove(req.Pattern) {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}

	if err := s.state.SetConfig(ctx, st.AllowedMinutes, set.Entries()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist rules")
		writeError(w, http.StatusInternalServerError, "Failed to persist rules")
		return
	}

	s.logger.Info().Str("pattern", req.Pattern).Msg("Rule removed")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": set.Entries(),
		"count": set.Len(),
	})
}

// NavigationEvent is the POST /api/events/navigation body, pushed by the
// focus agent when the focused page navigates.
type NavigationEvent struct {
	URL string `json:"url"`
}

func (s *Server) handleNavigationEvent(w http.ResponseWriter, r *http.Request) {
	var ev NavigationEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ev.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "No tracker attached")
		return
	}

	s.tracker.HandleNavigation(r.Context(), ev.URL)
	w.WriteHeader(http.StatusAccepted)
}

func decodeRuleRequest(w http.ResponseWriter, r *http.Request) (RuleRequest, bool) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "Pattern is required")
		return req, false
	}
	return req, true
}

// observedPhase combines the tracker's last observation with the stored
// break window, so an active break reads as BREAK even between background
// cycles.
func (s *Server) observedPhase(st *storage.BudgetState, nowMS int64) budget.Phase {
	if st.BreakActive(nowMS) {
		return budget.PhaseBreak
	}

	phase := budget.PhaseIdle
	if s.tracker != nil {
		phase = s.tracker.Phase()
	}
	if phase == budget.PhaseBreak {
		// The mirrored window is gone; the tracker just hasn't run again.
		phase = budget.PhaseIdle
	}

	return phase
}

// editsLocked reports whether config writes must be rejected: time is
// accumulating or a break is running.
func (s *Server) editsLocked(ctx context.Context) (bool, budget.Phase) {
	st, err := s.state.Get(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read state for edit lock")
		return true, budget.PhaseBreak
	}

	phase := s.observedPhase(st, storage.NowMS(time.Now()))
	return phase != budget.PhaseIdle, phase
}
