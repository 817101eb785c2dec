package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
	"github.com/shadowlens/shadowlens/internal/core/gate"
	"github.com/shadowlens/shadowlens/internal/core/store"
	apperrors "github.com/shadowlens/shadowlens/internal/errors"
)

// AdminHandler exposes the operator surface: access lists, enforcement
// settings, credential management, and check history.
type AdminHandler struct {
	Gateway *gate.AccessGateway
	Pool    *engine.CredentialPool
	Store   *store.Store
}

type accessListResponse struct {
	ListType core.ListType `json:"list_type"`
	IPs      []string      `json:"ips"`
	Count    int           `json:"count"`
}

type replaceListRequest struct {
	IPs []string `json:"ips"`
}

type replaceListResponse struct {
	Replaced int `json:"replaced"`
}

// GetAccessList handles GET /admin/accesslist/{type}.
func (h *AdminHandler) GetAccessList(w http.ResponseWriter, r *http.Request) {
	listType, ok := listTypeParam(w, r)
	if !ok {
		return
	}

	entries, err := h.Store.ListAccessEntries(r.Context(), listType)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to read access list"))
		return
	}

	ips := make([]string, 0, len(entries))
	for _, entry := range entries {
		ips = append(ips, entry.IP)
	}

	writeJSON(w, accessListResponse{ListType: listType, IPs: ips, Count: len(ips)})
}

// ReplaceAccessList handles PUT /admin/accesslist/{type}.
func (h *AdminHandler) ReplaceAccessList(w http.ResponseWriter, r *http.Request) {
	listType, ok := listTypeParam(w, r)
	if !ok {
		return
	}

	var req replaceListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid request body"))
		return
	}

	count, err := h.Gateway.ReplaceList(r.Context(), listType, req.IPs)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to replace access list"))
		return
	}

	writeJSON(w, replaceListResponse{Replaced: count})
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.GetSettings(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to read settings"))
		return
	}
	writeJSON(w, settings)
}

// UpdateSettings handles PUT /admin/settings. The write goes through the
// gateway so its settings cache refreshes atomically.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.AccessSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid request body"))
		return
	}

	if err := h.Gateway.UpdateSettings(r.Context(), settings); err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to update settings"))
		return
	}

	writeJSON(w, settings)
}

type addCredentialRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}

type addCredentialResponse struct {
	ID int64 `json:"id"`
}

// AddCredential handles POST /admin/credentials.
func (h *AdminHandler) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req addCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("token is required"))
		return
	}

	id, err := h.Pool.Upsert(r.Context(), req.Token, req.Account)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to store credential"))
		return
	}

	writeJSON(w, addCredentialResponse{ID: id})
}

// ListCredentials handles GET /admin/credentials. Tokens never serialize.
func (h *AdminHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	credentials, err := h.Store.ListCredentials(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to list credentials"))
		return
	}
	writeJSON(w, credentials)
}

// DeleteCredential handles DELETE /admin/credentials/{id}.
func (h *AdminHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid credential id"))
		return
	}

	if err := h.Store.DeleteCredential(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			respondWithError(w, r, apperrors.NewNotFoundError("credential not found"))
			return
		}
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to delete credential"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /admin/history/{session_id}.
func (h *AdminHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	result, err := h.Store.GetCheckResult(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrHistoryNotFound) {
			respondWithError(w, r, apperrors.NewNotFoundError("no check recorded for session"))
			return
		}
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to read check history"))
		return
	}

	writeJSON(w, result)
}

// ListHistory handles GET /admin/history?screen_name=&limit=.
func (h *AdminHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	screenName := r.URL.Query().Get("screen_name")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, r, apperrors.NewInvalidInputError("invalid limit"))
			return
		}
		limit = parsed
	}

	results, err := h.Store.RecentCheckResults(r.Context(), screenName, limit)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to read check history"))
		return
	}

	writeJSON(w, results)
}

func listTypeParam(w http.ResponseWriter, r *http.Request) (core.ListType, bool) {
	listType := core.ListType(chi.URLParam(r, "type"))
	if !listType.Valid() {
		respondWithError(w, r, apperrors.NewInvalidInputError("list type must be blacklist or whitelist"))
		return "", false
	}
	return listType, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
