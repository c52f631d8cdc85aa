package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"BetBank/internal/ledger"
)

func (s *Server) handleOpenRound(w http.ResponseWriter, r *http.Request) {
	roundID := s.bank.OpenRound()

	writeJSON(w, map[string]interface{}{
		"round_id": roundID,
		"locked":   false,
	})
}

func (s *Server) handleCloseRound(w http.ResponseWriter, r *http.Request) {
	s.bank.CloseRound()

	writeJSON(w, map[string]interface{}{
		"round_id": s.bank.RoundID(),
		"locked":   true,
	})
}

func (s *Server) handleEvaluateRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WinningTags []string `json:"winning_tags"`
		RoundID     int64    `json:"round_id"` // 0 targets the current round
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RoundID < 0 {
		http.Error(w, "invalid round_id", http.StatusBadRequest)
		return
	}

	result := s.bank.EvaluateRound(req.WinningTags, req.RoundID)
	writeJSON(w, result)
}

func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"round_id": s.bank.RoundID(),
		"locked":   s.bank.IsLocked(),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"results": s.bank.Results(),
	})
}

func (s *Server) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	writeJSON(w, map[string]interface{}{
		"tag":   tag,
		"quota": s.bank.TagQuota(tag),
	})
}

func (s *Server) handleSetQuota(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	var req struct {
		Quota int64 `json:"quota"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quota <= 0 {
		http.Error(w, "quota must be positive", http.StatusBadRequest)
		return
	}

	s.bank.SetTagQuota(tag, req.Quota)
	writeJSON(w, map[string]interface{}{
		"tag":   tag,
		"quota": s.bank.TagQuota(tag),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseParticipantID(r)
	if err != nil {
		http.Error(w, "invalid participant_id", http.StatusBadRequest)
		return
	}

	balance, err := s.bank.BalanceOf(id)
	if err != nil {
		http.Error(w, "unknown participant", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"participant_id": id,
		"balance":        balance,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseParticipantID(r)
	if err != nil {
		http.Error(w, "invalid participant_id", http.StatusBadRequest)
		return
	}

	acct := s.bank.Account(id)
	if acct == nil {
		http.Error(w, "unknown participant", http.StatusNotFound)
		return
	}

	writeJSON(w, acct)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bank.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.bank.Reset()
	s.log.Info().Msg("ledger reset via admin api")

	writeJSON(w, map[string]string{
		"message": "bank reset",
	})
}

func parseParticipantID(r *http.Request) (ledger.ParticipantID, error) {
	raw := mux.Vars(r)["participant_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return ledger.ParticipantID(id), nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
