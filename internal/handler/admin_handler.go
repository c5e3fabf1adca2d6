package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"annonces-api/internal/middleware"
	"annonces-api/internal/model"
	"annonces-api/internal/service"
	"annonces-api/pkg/apierror"
)

// AdminHandler serves the moderation surface. Every route is mounted
// behind RequireAuth and the admin role gate.
type AdminHandler struct {
	moderation *service.ModerationService
	annonces   *service.AnnonceService
	audit      *service.AuditService
}

func NewAdminHandler(moderation *service.ModerationService, annonces *service.AnnonceService, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{moderation: moderation, annonces: annonces, audit: audit}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	annonces, err := h.moderation.ListAll(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AnnonceListResponse{Annonces: annonces}, &model.Meta{Total: len(annonces)})
}

func (h *AdminHandler) Validate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	annonce, err := h.moderation.Validate(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]model.Annonce{"annonce": annonce}, nil)
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.RejectAnnonceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	annonce, err := h.moderation.Reject(r.Context(), claims, chi.URLParam(r, "id"), payload.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]model.Annonce{"annonce": annonce}, nil)
}

// Delete is the admin override of the owner delete path.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	if err := h.annonces.Delete(r.Context(), claims, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string][]model.AuditEntry{"entries": entries}, &model.Meta{Total: len(entries)})
}
