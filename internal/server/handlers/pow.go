package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shadowlens/shadowlens/internal/core/gate"
)

// PowHandler issues proof-of-work challenges for GET /api/pow/challenge.
type PowHandler struct {
	Gate *gate.ProofOfWorkGate
}

type challengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	Difficulty  int    `json:"difficulty"`
}

// Challenge mints a single-use challenge at the current difficulty.
func (h *PowHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	challenge, difficulty := h.Gate.Issue()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(challengeResponse{
		ChallengeID: challenge.ID,
		Difficulty:  difficulty,
	})
}
