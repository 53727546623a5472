package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lacs-team/appfun-api/internal/domain/model"
	apperrors "github.com/lacs-team/appfun-api/internal/errors"
	"github.com/lacs-team/appfun-api/internal/service"
)

// InvitationHandlers provides HTTP handlers for invitation code operations.
type InvitationHandlers struct {
	Svc    *service.InvitationService
	Logger *slog.Logger
}

type validateInvitationRequest struct {
	Code string `json:"code"`
}

// Validate checks an invitation code without consuming it.
// POST /auth/validate-invitation.
func (h *InvitationHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateInvitationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Validate(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, err, "validate_failed")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type useInvitationRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

// Use redeems one use of an invitation code for a user.
// POST /auth/use-invitation.
func (h *InvitationHandlers) Use(w http.ResponseWriter, r *http.Request) {
	var req useInvitationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Redeem(r.Context(), req.Code, req.UserID)
	if err != nil {
		writeServiceError(w, err, "redeem_failed")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type generateInvitationRequest struct {
	GeneratedBy string `json:"generated_by,omitempty"`
	AdWatchID   string `json:"ad_watch_id,omitempty"`
	MaxUses     int    `json:"max_uses,omitempty"`
	TTLDays     int    `json:"ttl_days,omitempty"`
}

// Generate creates a fresh invitation code.
// POST /auth/generate-invitation (API-key gated).
func (h *InvitationHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateInvitationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	inv, err := h.Svc.Generate(r.Context(), model.GenerateInvitationRequest{
		GeneratedBy: req.GeneratedBy,
		AdWatchID:   req.AdWatchID,
		MaxUses:     req.MaxUses,
		TTL:         time.Duration(req.TTLDays) * 24 * time.Hour,
	})
	if err != nil {
		writeServiceError(w, err, "generate_failed")
		return
	}
	WriteJSON(w, http.StatusCreated, inv)
}

// List returns a page of invitation codes.
// GET /auth/invitations?status=&limit=&offset= (API-key gated).
func (h *InvitationHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := model.InvitationListOptions{
		Status: model.InvitationStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	invs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err, "list_failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"invitations": invs, "count": len(invs)})
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error, fallbackCode string) {
	switch {
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	case apperrors.IsNotFound(err):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	case apperrors.IsConflict(err):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: err})
	case apperrors.IsUnavailable(err):
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "unavailable", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: fallbackCode, Err: err})
	}
}
