package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
	"github.com/shadowlens/shadowlens/internal/core/gate"
	apperrors "github.com/shadowlens/shadowlens/internal/errors"
)

// CheckHandler runs the full gated check workflow for POST /api/check.
type CheckHandler struct {
	Orchestrator *engine.Orchestrator
	Gateway      *gate.AccessGateway
	Pow          *gate.ProofOfWorkGate
	Monitor      *gate.LoadMonitor
}

type checkRequest struct {
	ScreenName    string `json:"screen_name"`
	IP            string `json:"ip"`
	ChallengeID   string `json:"challenge_id"`
	Nonce         string `json:"nonce"`
	CheckTimeline bool   `json:"check_timeline"`
	CheckReplies  bool   `json:"check_replies"`
}

// Check gates the request through proof-of-work and the IP lists, then runs
// the orchestrated check and returns the result.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Every inbound check attempt counts toward the lockdown window, valid
	// or not.
	h.Monitor.RecordAccess(ctx)

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.ScreenName) == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("screen_name is required"))
		return
	}

	connIP := connIPFrom(r)

	if err := h.Pow.Verify(req.ChallengeID, req.Nonce); err != nil {
		_ = h.Gateway.Deny("proof of work failed", req.IP, req.ScreenName, connIP)
		respondWithError(w, r, apperrors.NewAccessDeniedError())
		return
	}

	if err := h.Gateway.CheckIP(ctx, req.IP, req.ScreenName, connIP); err != nil {
		respondWithError(w, r, apperrors.NewAccessDeniedError())
		return
	}

	result, err := h.Orchestrator.Check(ctx, core.CheckRequest{
		ScreenName:    req.ScreenName,
		IP:            req.IP,
		ConnIP:        connIP,
		CheckTimeline: req.CheckTimeline,
		CheckReplies:  req.CheckReplies,
	})
	if err != nil {
		if errors.Is(err, core.ErrPoolExhausted) {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("no upstream capacity available"))
			return
		}
		respondWithError(w, r, apperrors.WrapInternal(ctx, err, "check failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// connIPFrom extracts the connection address without its port. RealIP
// middleware has already unwrapped proxy headers by the time this runs.
func connIPFrom(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
