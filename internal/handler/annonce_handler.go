package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"annonces-api/internal/middleware"
	"annonces-api/internal/model"
	"annonces-api/internal/service"
	"annonces-api/pkg/apierror"
)

type AnnonceHandler struct {
	service       *service.AnnonceService
	maxUploadSize int64
}

func NewAnnonceHandler(service *service.AnnonceService, maxUploadSize int64) *AnnonceHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &AnnonceHandler{service: service, maxUploadSize: maxUploadSize}
}

func (h *AnnonceHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	annonces, err := h.service.ListPublic(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AnnonceListResponse{Annonces: annonces}, &model.Meta{Total: len(annonces)})
}

func (h *AnnonceHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	annonces, err := h.service.ListOwn(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AnnonceListResponse{Annonces: annonces}, &model.Meta{Total: len(annonces)})
}

// Create accepts either a JSON body or multipart/form-data with titre,
// description and an optional image part.
func (h *AnnonceHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	req, upload, err := h.decodeCreate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	annonce, err := h.service.Create(r.Context(), claims, req, upload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]model.Annonce{"annonce": annonce}, nil)
}

func (h *AnnonceHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.UpdateAnnonceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	annonce, err := h.service.Update(r.Context(), claims, chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]model.Annonce{"annonce": annonce}, nil)
}

func (h *AnnonceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(r.Context(), claims, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

func (h *AnnonceHandler) decodeCreate(r *http.Request) (model.CreateAnnonceRequest, *service.ImageUpload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var req model.CreateAnnonceRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, h.maxUploadSize)).Decode(&req); err != nil {
			return model.CreateAnnonceRequest{}, nil, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
		}
		return req, nil, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return model.CreateAnnonceRequest{}, nil, apierror.New("BAD_REQUEST", "invalid or oversized multipart body", "", http.StatusBadRequest)
	}

	req := model.CreateAnnonceRequest{
		Titre:       r.FormValue("titre"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return model.CreateAnnonceRequest{}, nil, apierror.New("BAD_REQUEST", "invalid image upload", "", http.StatusBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize))
	if err != nil {
		return model.CreateAnnonceRequest{}, nil, apierror.New("BAD_REQUEST", "failed to read image upload", "", http.StatusBadRequest)
	}

	contentType := ""
	if header != nil {
		contentType = strings.TrimSpace(header.Header.Get("Content-Type"))
	}

	return req, &service.ImageUpload{Data: data, ContentType: contentType}, nil
}
