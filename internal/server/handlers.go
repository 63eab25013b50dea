package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/breaker"
	"github.com/shrikectl/shrike/internal/types"
)

// pinger is implemented by store backends that can verify connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var ev types.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event JSON: "+err.Error())
		return
	}
	if ev.UserID == "" || ev.EventType == "" || ev.Channel == "" {
		writeError(w, http.StatusBadRequest, "user_id, event_type, and channel are required")
		return
	}

	decision, err := s.engine.Evaluate(r.Context(), &ev)
	if err != nil {
		if r.Context().Err() != nil {
			// Client gone; no decision was recorded.
			return
		}
		s.logger.Error("Evaluation failed", zap.String("event_id", ev.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	action := r.URL.Query().Get("action")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	results := s.engine.Audit().UserHistory(userID, action, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"total":   len(results),
		"results": results,
	})
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var rule types.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule JSON: "+err.Error())
		return
	}
	if err := s.engine.Rules().AddRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "created",
		"rule":   rule,
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": s.engine.Rules().Rules(),
	})
}

// handleForceDispatch acknowledges a manual dispatch override. Delivery
// itself happens outside the engine; this endpoint only logs the operator's
// intent and never touches the audit log.
func (s *Server) handleForceDispatch(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var body struct {
		OverrideReason string `json:"override_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.OverrideReason == "" {
		writeError(w, http.StatusBadRequest, "override_reason is required")
		return
	}

	s.logger.Info("Force dispatch requested",
		zap.String("event_id", eventID),
		zap.String("override_reason", body.OverrideReason),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":        eventID,
		"status":          "dispatched",
		"override_reason": body.OverrideReason,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	scorer := s.engine.Scorer()
	breakerState := scorer.Breaker().State()

	storeStatus := "ok"
	if p, ok := s.engine.Store().(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			storeStatus = "unavailable"
		}
	}

	scorerStatus := "enabled"
	if !scorer.Available() {
		scorerStatus = "disabled"
	}

	status := "ok"
	if breakerState != breaker.StateClosed {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"components": map[string]string{
			"api":             "ok",
			"store":           storeStatus,
			"ai_scorer":       scorerStatus,
			"circuit_breaker": string(breakerState),
		},
		"fallback_mode": scorer.FallbackMode(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Audit().Stats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
